package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/adapters/grpc/handler"
	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/platform/metrics"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
)

const metricsShutdownTimeout = 5 * time.Second

// Services はサーバーに登録する gRPC サービスの実装です。
type Services struct {
	Claims  handler.ClaimServiceServer
	Reports handler.ReportServiceServer
}

// Server は gRPC サーバーと metrics 用 HTTP サーバーのライフサイクルを管理します。
type Server struct {
	listenAddr  string
	metricsAddr string
	grpcServer  *grpc.Server
	logger      *logrus.Logger
}

// New は指定されたアドレスで待ち受ける gRPC サーバーを構築します。
// metricsAddr が空の場合は /metrics を公開しません。
func New(listenAddr, metricsAddr string, services Services, logger *logrus.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	opts = append(opts, grpc.ChainUnaryInterceptor(
		unaryLoggingInterceptor(logger),
		unaryMetricsInterceptor(),
		handler.ActorInterceptor(),
	))
	srv := grpc.NewServer(opts...)

	if services.Claims != nil {
		handler.RegisterClaimServiceServer(srv, services.Claims)
	}
	if services.Reports != nil {
		handler.RegisterReportServiceServer(srv, services.Reports)
	}

	return &Server{
		listenAddr:  listenAddr,
		metricsAddr: metricsAddr,
		grpcServer:  srv,
		logger:      logger,
	}
}

// Run はサーバーを起動し、コンテキストがキャンセルされると GracefulStop します。
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.listenAddr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve は渡されたリスナーで待ち受けます。
// metrics サーバーが起動に失敗した場合は gRPC サーバーも停止し、そのエラーを返します。
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	var metricsSrv *http.Server
	metricsErr := make(chan error, 1)
	if s.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{Addr: s.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		go func() {
			s.logger.WithField("addr", s.metricsAddr).Info("metrics server listening")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				metricsErr <- fmt.Errorf("serve metrics: %w", err)
			}
		}()
	}

	serveDone := make(chan struct{})
	stopErr := make(chan error, 1)
	go func() {
		var err error
		select {
		case <-ctx.Done():
		case <-serveDone:
		case err = <-metricsErr:
			s.logger.WithError(err).Error("metrics server stopped")
		}
		if metricsSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		s.grpcServer.GracefulStop()
		stopErr <- err
	}()

	serveErr := s.grpcServer.Serve(lis)
	close(serveDone)
	metricsFailure := <-stopErr

	if serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
		return errors.Join(fmt.Errorf("serve gRPC: %w", serveErr), metricsFailure)
	}
	return metricsFailure
}

// GracefulStop はサーバーを安全に停止します。
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}
