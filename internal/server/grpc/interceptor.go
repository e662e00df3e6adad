package grpc

import (
	"context"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/authrpc"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const identityKey ctxKey = "identity"

// protected lists the methods that need a resolved identity.
var protected = map[string]bool{
	authrpc.WhoAmIMethod: true,
}

func firstValue(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

// credentialsFromMetadata mirrors the HTTP rules: authorization Bearer or
// access_token for the token, session_token for the session.
func credentialsFromMetadata(ctx context.Context) services.Credentials {
	var c services.Credentials
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return c
	}

	if h := firstValue(md, authrpc.MetadataAuthorization); h != "" {
		scheme, tok, found := strings.Cut(h, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			c.BearerToken = strings.TrimSpace(tok)
		}
	}
	if c.BearerToken == "" {
		c.BearerToken = firstValue(md, authrpc.MetadataAccessToken)
	}
	c.SessionToken = firstValue(md, authrpc.MetadataSessionToken)
	return c
}

func (s *GRPCServer) identityInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	if protected[info.FullMethod] {

		id, err := s.resolver.Resolve(ctx, credentialsFromMetadata(ctx))
		if err != nil {
			return nil, s.toStatus(ctx, err)
		}
		if id == nil {
			return nil, status.Error(codes.Unauthenticated, "missing or invalid credentials")
		}

		ctx = context.WithValue(ctx, identityKey, id)
	}

	return handler(ctx, req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Info(ctx, "grpc call",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start),
	)
	return resp, err
}

func identityFrom(ctx context.Context) *models.Identity {
	id, _ := ctx.Value(identityKey).(*models.Identity)
	return id
}
