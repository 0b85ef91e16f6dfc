package server

import (
	"context"
	"time"

	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/adapters/grpc/handler"
	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/platform/logging"
	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/platform/metrics"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// unaryLoggingInterceptor はリクエスト単位のロガーをコンテキストに載せ、完了時に 1 行記録します。
func unaryLoggingInterceptor(logger *logrus.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		entry := logger.WithField("method", info.FullMethod)
		if role := handler.ActorRole(ctx); role != "" {
			entry = entry.WithField("actor_role", role)
		}

		resp, err := next(logging.WithLogger(ctx, entry), req)

		code := status.Code(err)
		entry = entry.WithFields(logrus.Fields{
			"code":     code.String(),
			"duration": time.Since(start),
		})
		switch code {
		case codes.OK:
			entry.Info("rpc completed")
		case codes.Internal, codes.Unknown, codes.DataLoss, codes.Unavailable:
			entry.WithError(err).Error("rpc failed")
		default:
			entry.WithError(err).Warn("rpc rejected")
		}

		return resp, err
	}
}

func unaryMetricsInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		metrics.ObserveRPC(info.FullMethod, status.Code(err), time.Since(start))
		return resp, err
	}
}
