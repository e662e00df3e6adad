package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/client/config"
	"github.com/dmitrijs2005/gophauth/internal/client/models"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	gotToken string
	verify   *models.VerifyResult
	who      *models.Identity
	err      error
	closed   bool
}

func (f *fakeClient) VerifyToken(_ context.Context, token string) (*models.VerifyResult, error) {
	f.gotToken = token
	return f.verify, f.err
}

func (f *fakeClient) WhoAmI(context.Context) (*models.Identity, error) { return f.who, f.err }

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func newTestApp(cfg *config.Config, fc *fakeClient, stdin string) (*App, *bytes.Buffer, *bytes.Buffer) {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = time.Second
	}
	var out, errOut bytes.Buffer
	return &App{
		config:    cfg,
		newClient: func(*config.Config) (client.Client, error) { return fc, nil },
		reader:    bufio.NewReader(strings.NewReader(stdin)),
		out:       &out,
		errOut:    &errOut,
	}, &out, &errOut
}

func stubPasswords(t *testing.T, answers ...string) {
	t.Helper()
	old := readPassword
	t.Cleanup(func() { readPassword = old })
	i := 0
	readPassword = func(int) ([]byte, error) {
		if i >= len(answers) {
			return nil, errors.New("no more input")
		}
		pw := []byte(answers[i])
		i++
		return pw, nil
	}
}

func TestRun_HashPassword(t *testing.T) {
	stubPasswords(t, "test1234", "test1234")
	app, out, _ := newTestApp(&config.Config{}, &fakeClient{}, "")

	code := app.Run(context.Background(), []string{"hash-password"})
	require.Equal(t, 0, code)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	hash := lines[len(lines)-1]
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
	assert.True(t, cryptox.VerifyPassword("test1234", hash))
}

func TestRun_HashPasswordMismatch(t *testing.T) {
	stubPasswords(t, "test1234", "test9999")
	app, _, errOut := newTestApp(&config.Config{}, &fakeClient{}, "")

	assert.Equal(t, 1, app.Run(context.Background(), []string{"hash-password"}))
	assert.Contains(t, errOut.String(), errPasswordMismatch.Error())
}

func TestRun_VerifyToken(t *testing.T) {
	fc := &fakeClient{verify: &models.VerifyResult{Valid: true, UserID: "u1", Username: "ana", Email: "ana@example.com", UserType: "normal"}}
	app, out, _ := newTestApp(&config.Config{AccessToken: "tok"}, fc, "")

	assert.Equal(t, 0, app.Run(context.Background(), []string{"verify-token", "-t", "tok"}))
	assert.Equal(t, "tok", fc.gotToken)
	assert.True(t, fc.closed)
	assert.Contains(t, out.String(), "valid: ana")
}

func TestRun_VerifyTokenPromptsAndReportsInvalid(t *testing.T) {
	fc := &fakeClient{verify: &models.VerifyResult{Valid: false, Error: "token expired"}}
	app, out, _ := newTestApp(&config.Config{}, fc, "typed-token\n")

	assert.Equal(t, 1, app.Run(context.Background(), []string{"verify-token"}))
	assert.Equal(t, "typed-token", fc.gotToken)
	assert.Contains(t, out.String(), "invalid: token expired")
}

func TestRun_VerifyTokenServerDown(t *testing.T) {
	fc := &fakeClient{err: client.ErrUnavailable}
	app, _, errOut := newTestApp(&config.Config{AccessToken: "tok"}, fc, "")

	assert.Equal(t, 1, app.Run(context.Background(), []string{"verify-token"}))
	assert.Contains(t, errOut.String(), "server unavailable")
}

func TestRun_WhoAmI(t *testing.T) {
	fc := &fakeClient{who: &models.Identity{UserID: "u1", Username: "ana", Source: "session"}}
	app, out, _ := newTestApp(&config.Config{SessionToken: "s"}, fc, "")
	assert.Equal(t, 0, app.Run(context.Background(), []string{"whoami"}))
	assert.Contains(t, out.String(), "via session")

	app, _, errOut := newTestApp(&config.Config{}, fc, "")
	assert.Equal(t, 1, app.Run(context.Background(), []string{"whoami"}))
	assert.Contains(t, errOut.String(), "-t or -s")
}

func TestRun_HelpAndUnknown(t *testing.T) {
	app, out, _ := newTestApp(&config.Config{}, &fakeClient{}, "")
	assert.Equal(t, 0, app.Run(context.Background(), nil))
	assert.Contains(t, out.String(), "usage: authctl")

	app, _, errOut := newTestApp(&config.Config{}, &fakeClient{}, "")
	assert.Equal(t, 2, app.Run(context.Background(), []string{"frobnicate"}))
	assert.Contains(t, errOut.String(), `unknown command "frobnicate"`)
}
