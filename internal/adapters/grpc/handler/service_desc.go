package handler

import (
	"context"
	"slices"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ClaimServiceName  = "cmcs.claims.v1.ClaimService"
	ReportServiceName = "cmcs.claims.v1.ReportService"
)

// ClaimServiceServer は ClaimService のサーバー側インターフェースです。
// すべてのメッセージは google.protobuf.Struct で表現します。
type ClaimServiceServer interface {
	CreateClaim(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetClaim(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListClaims(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	TransitionClaim(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	TrackClaim(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	DownloadDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ReportServiceServer は ReportService のサーバー側インターフェースです。
type ReportServiceServer interface {
	GetReport(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ClaimServiceDesc は ClaimService の gRPC サービス定義です。
var ClaimServiceDesc = grpc.ServiceDesc{
	ServiceName: ClaimServiceName,
	HandlerType: (*ClaimServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(ClaimServiceName, "CreateClaim", ClaimServiceServer.CreateClaim),
		unaryMethod(ClaimServiceName, "GetClaim", ClaimServiceServer.GetClaim),
		unaryMethod(ClaimServiceName, "ListClaims", ClaimServiceServer.ListClaims),
		unaryMethod(ClaimServiceName, "TransitionClaim", ClaimServiceServer.TransitionClaim),
		unaryMethod(ClaimServiceName, "TrackClaim", ClaimServiceServer.TrackClaim),
		unaryMethod(ClaimServiceName, "DownloadDocument", ClaimServiceServer.DownloadDocument),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cmcs/claims/v1/claims.proto",
}

// ReportServiceDesc は ReportService の gRPC サービス定義です。
var ReportServiceDesc = grpc.ServiceDesc{
	ServiceName: ReportServiceName,
	HandlerType: (*ReportServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(ReportServiceName, "GetReport", ReportServiceServer.GetReport),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cmcs/claims/v1/claims.proto",
}

// RegisterClaimServiceServer は ClaimService を登録します。
func RegisterClaimServiceServer(s grpc.ServiceRegistrar, srv ClaimServiceServer) {
	s.RegisterService(&ClaimServiceDesc, srv)
}

// RegisterReportServiceServer は ReportService を登録します。
func RegisterReportServiceServer(s grpc.ServiceRegistrar, srv ReportServiceServer) {
	s.RegisterService(&ReportServiceDesc, srv)
}

func unaryMethod[S any](service, name string, call func(S, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			next := func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, next)
		},
	}
}

// Client は Struct メッセージで両サービスを呼び出す薄いクライアントです。
type Client struct {
	cc   grpc.ClientConnInterface
	opts []grpc.CallOption
}

// NewClient は Client を生成します。opts はすべての呼び出しに適用されます (ClientCallOptions など)。
func NewClient(cc grpc.ClientConnInterface, opts ...grpc.CallOption) *Client {
	return &Client{cc: cc, opts: opts}
}

// Call は "ClaimService/CreateClaim" のようなサービス名/メソッド名で RPC を実行します。
func (c *Client) Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if req == nil {
		req = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	callOpts := append(slices.Clone(c.opts), opts...)
	if err := c.cc.Invoke(ctx, "/cmcs.claims.v1."+method, req, out, callOpts...); err != nil {
		return nil, err
	}
	return out, nil
}
