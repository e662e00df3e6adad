package client

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/authrpc"
	"github.com/dmitrijs2005/gophauth/internal/client/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type GRPCClient struct {
	endpointURL  string
	conn         *grpc.ClientConn
	client       authrpc.AuthClient
	accessToken  string
	sessionToken string
}

func withCredentials(ctx context.Context, accessToken, sessionToken string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	if accessToken != "" {
		md.Set(authrpc.MetadataAccessToken, accessToken)
	}
	if sessionToken != "" {
		md.Set(authrpc.MetadataSessionToken, sessionToken)
	}

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) credentialsInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	ctx = withCredentials(ctx, s.accessToken, s.sessionToken)
	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewGRPCClient connects lazily to endpointURL. Extra dial options are
// appended to the defaults (insecure transport, credentials interceptor).
func NewGRPCClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.credentialsInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = authrpc.NewAuthClient(conn)
	return c, nil
}

// SetAccessToken sets the bearer token sent with every call.
func (s *GRPCClient) SetAccessToken(token string) { s.accessToken = token }

// SetSessionToken sets the session token sent with every call.
func (s *GRPCClient) SetSessionToken(token string) { s.sessionToken = token }

func (s *GRPCClient) VerifyToken(ctx context.Context, token string) (*models.VerifyResult, error) {

	resp, err := s.client.VerifyToken(ctx, token)
	if err != nil {
		return nil, s.mapError(err)
	}

	return &models.VerifyResult{
		Valid:    resp.Valid,
		UserID:   resp.UserID,
		Username: resp.Username,
		Email:    resp.Email,
		UserType: resp.UserType,
		Error:    resp.Error,
	}, nil
}

func (s *GRPCClient) WhoAmI(ctx context.Context) (*models.Identity, error) {

	resp, err := s.client.WhoAmI(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}

	return &models.Identity{
		UserID:   resp.UserID,
		Username: resp.Username,
		Email:    resp.Email,
		UserType: resp.UserType,
		Source:   resp.Source,
	}, nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
