package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/client/config"
	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

// ClientFactory opens a server client configured from cfg.
type ClientFactory func(cfg *config.Config) (client.Client, error)

type App struct {
	config    *config.Config
	newClient ClientFactory
	reader    *bufio.Reader
	out       io.Writer
	errOut    io.Writer
}

func dialClient(cfg *config.Config) (client.Client, error) {
	c, err := client.NewGRPCClient(cfg.ServerEndpointAddr)
	if err != nil {
		return nil, err
	}
	c.SetAccessToken(cfg.AccessToken)
	c.SetSessionToken(cfg.SessionToken)
	return c, nil
}

func NewApp(c *config.Config) *App {
	return &App{
		config:    c,
		newClient: dialClient,
		reader:    bufio.NewReader(os.Stdin),
		out:       os.Stdout,
		errOut:    os.Stderr,
	}
}

const usage = `usage: authctl <command> [flags]

commands:
  hash-password              print an argon2id hash of a prompted password
  verify-token [-t token]    verify an access token against the server
  whoami -t token | -s sess  show the identity behind the credentials

flags:
  -a host:port   gRPC endpoint (default 127.0.0.1:50051)
  -w seconds     request timeout
  -c file        JSON config file
`

// Run executes the command named by args[0] and returns the exit status.
func (a *App) Run(ctx context.Context, args []string) int {
	cmd, _ := flagx.SplitCommand(args)

	var err error
	switch cmd {
	case "hash-password":
		err = a.HashPassword()
	case "verify-token":
		var valid bool
		valid, err = a.VerifyToken(ctx)
		if err == nil && !valid {
			return 1
		}
	case "whoami":
		err = a.WhoAmI(ctx)
	case "", "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return 0
	default:
		fmt.Fprintf(a.errOut, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	if err != nil {
		fmt.Fprintln(a.errOut, "error:", err)
		return 1
	}
	return 0
}
