package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophauth/internal/authrpc"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps error kinds onto gRPC codes.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrRevocationFailed):
		s.logger.Error(ctx, err.Error())
		return status.Error(codes.Internal, common.ErrRevocationFailed.Error())
	case errors.Is(err, common.ErrStoreUnavailable):
		s.logger.Error(ctx, err.Error())
		return status.Error(codes.Unavailable, common.ErrStoreUnavailable.Error())
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
	case errors.Is(err, common.ErrTokenRevoked):
		return status.Error(codes.Unauthenticated, common.ErrTokenRevoked.Error())
	case common.IsAuthError(err):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, common.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, err.Error())
	default:
		s.logger.Error(ctx, err.Error())
		return status.Error(codes.Internal, "internal error")
	}
}

func (s *GRPCServer) VerifyToken(ctx context.Context, token string) (*authrpc.VerifyTokenResponse, error) {

	res, err := s.users.VerifyToken(ctx, token)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &authrpc.VerifyTokenResponse{
		Valid:    res.Valid,
		UserID:   res.UserID,
		Username: res.Username,
		Email:    res.Email,
		UserType: res.UserType,
		Error:    res.Error,
	}, nil
}

func (s *GRPCServer) WhoAmI(ctx context.Context) (*authrpc.Identity, error) {

	id := identityFrom(ctx)
	if err := services.Require(id); err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &authrpc.Identity{
		UserID:   id.UserID,
		Username: id.UserName,
		Email:    id.Email,
		UserType: id.UserType,
		Source:   string(id.Source),
	}, nil
}
