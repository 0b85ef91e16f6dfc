package handler

import (
	"context"
	"strings"

	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/core/claim"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// 呼び出し元が主張する役割と ID を運ぶメタデータキーです。
const (
	ActorRoleKey = "x-actor-role"
	ActorIDKey   = "x-actor-id"
)

type actorContextKey struct{}

// WithActor は送信メタデータに呼び出し元の役割と ID を付与します。
func WithActor(ctx context.Context, role, id string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, ActorRoleKey, role, ActorIDKey, id)
}

// ActorInterceptor はメタデータから Actor を解決してコンテキストに格納します。
// 役割が無い、または不明な場合は Unauthenticated を返します。
func ActorInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		actor, err := actorFromMetadata(ctx)
		if err != nil {
			return nil, err
		}
		return next(context.WithValue(ctx, actorContextKey{}, actor), req)
	}
}

func actorFrom(ctx context.Context) (claim.Actor, error) {
	if actor, ok := ctx.Value(actorContextKey{}).(claim.Actor); ok {
		return actor, nil
	}
	return actorFromMetadata(ctx)
}

func actorFromMetadata(ctx context.Context) (claim.Actor, error) {
	md, _ := metadata.FromIncomingContext(ctx)

	rawRole := firstValue(md, ActorRoleKey)
	if rawRole == "" {
		return claim.Actor{}, status.Error(codes.Unauthenticated, "missing "+ActorRoleKey+" metadata")
	}
	role, ok := claim.ParseRole(rawRole)
	if !ok {
		return claim.Actor{}, status.Errorf(codes.Unauthenticated, "unknown actor role %q", rawRole)
	}

	return claim.Actor{Role: role, ID: firstValue(md, ActorIDKey)}, nil
}

// ActorRole はログ用にメタデータ上の役割をそのまま返します。
func ActorRole(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	return firstValue(md, ActorRoleKey)
}

func firstValue(md metadata.MD, key string) string {
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
