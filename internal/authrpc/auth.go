// Package authrpc describes the gophauth.v1.Auth gRPC service. On the wire
// requests and responses are protobuf well-known types (StringValue, Empty,
// Struct); servers and clients work with the typed VerifyTokenResponse and
// Identity messages, converted here.
package authrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "gophauth.v1.Auth"

const (
	VerifyTokenMethod = "/" + ServiceName + "/VerifyToken"
	WhoAmIMethod      = "/" + ServiceName + "/WhoAmI"
)

// Metadata keys read by the server.
const (
	MetadataAccessToken   = "access_token"
	MetadataAuthorization = "authorization"
	MetadataSessionToken  = "session_token"
)

// AuthServer is implemented by the server side.
type AuthServer interface {
	// VerifyToken checks an access token.
	VerifyToken(ctx context.Context, token string) (*VerifyTokenResponse, error)
	// WhoAmI returns the identity resolved from call metadata.
	WhoAmI(ctx context.Context) (*Identity, error)
}

// wireServer adapts AuthServer to the wire message types.
type wireServer struct {
	srv AuthServer
}

func (w wireServer) verifyToken(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	res, err := w.srv.VerifyToken(ctx, in.GetValue())
	if err != nil {
		return nil, err
	}
	return res.toStruct()
}

func (w wireServer) whoAmI(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	id, err := w.srv.WhoAmI(ctx)
	if err != nil {
		return nil, err
	}
	return id.toStruct()
}

func RegisterAuthServer(s grpc.ServiceRegistrar, srv AuthServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func verifyTokenHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	w := wireServer{srv: srv.(AuthServer)}
	if interceptor == nil {
		return w.verifyToken(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: VerifyTokenMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return w.verifyToken(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func whoAmIHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	w := wireServer{srv: srv.(AuthServer)}
	if interceptor == nil {
		return w.whoAmI(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: WhoAmIMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return w.whoAmI(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "VerifyToken", Handler: verifyTokenHandler},
		{MethodName: "WhoAmI", Handler: whoAmIHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gophauth/v1/auth.proto",
}

// AuthClient is the client side of gophauth.v1.Auth.
type AuthClient interface {
	VerifyToken(ctx context.Context, token string, opts ...grpc.CallOption) (*VerifyTokenResponse, error)
	WhoAmI(ctx context.Context, opts ...grpc.CallOption) (*Identity, error)
}

type authClient struct {
	cc grpc.ClientConnInterface
}

func NewAuthClient(cc grpc.ClientConnInterface) AuthClient {
	return &authClient{cc: cc}
}

func (c *authClient) VerifyToken(ctx context.Context, token string, opts ...grpc.CallOption) (*VerifyTokenResponse, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, VerifyTokenMethod, wrapperspb.String(token), out, opts...); err != nil {
		return nil, err
	}
	return verifyTokenResponseFrom(out)
}

func (c *authClient) WhoAmI(ctx context.Context, opts ...grpc.CallOption) (*Identity, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, WhoAmIMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return identityFrom(out)
}
