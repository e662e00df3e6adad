package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
)

var errPasswordMismatch = errors.New("passwords do not match")

func (a *App) HashPassword() error {
	pw, err := GetPassword(a.out, "Enter password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	again, err := GetPassword(a.out, "Repeat password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(again)

	if string(pw) != string(again) {
		return errPasswordMismatch
	}

	hash, err := cryptox.HashPassword(string(pw))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, hash)
	return nil
}

// VerifyToken reports whether the server accepted the token.
func (a *App) VerifyToken(ctx context.Context) (bool, error) {
	token := a.config.AccessToken
	if token == "" {
		var err error
		token, err = GetSimpleText(a.reader, "Access token", a.out)
		if err != nil {
			return false, err
		}
	}

	c, err := a.newClient(a.config)
	if err != nil {
		return false, err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(ctx, a.config.RequestTimeout)
	defer cancel()

	res, err := c.VerifyToken(ctx, token)
	if err != nil {
		return false, err
	}

	if !res.Valid {
		fmt.Fprintf(a.out, "invalid: %s\n", res.Error)
		return false, nil
	}
	fmt.Fprintf(a.out, "valid: %s <%s> id=%s type=%s\n", res.Username, res.Email, res.UserID, res.UserType)
	return true, nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	if a.config.AccessToken == "" && a.config.SessionToken == "" {
		return fmt.Errorf("%w: pass -t or -s", common.ErrUnauthorized)
	}

	c, err := a.newClient(a.config)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(ctx, a.config.RequestTimeout)
	defer cancel()

	id, err := c.WhoAmI(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s <%s> id=%s type=%s via %s\n", id.Username, id.Email, id.UserID, id.UserType, id.Source)
	return nil
}
