package client

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/client/models"
)

// Client is the API the CLI needs from the server.
type Client interface {
	VerifyToken(ctx context.Context, token string) (*models.VerifyResult, error)
	WhoAmI(ctx context.Context) (*models.Identity, error)
	Close() error
}
