package services

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// storeErr translates a raw backend failure into ErrStoreUnavailable while
// keeping the original error in the chain. Known repository conditions and
// errors that already carry a kind pass through untouched.
func storeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrStoreUnavailable),
		errors.Is(err, common.ErrorNotFound),
		errors.Is(err, common.ErrConflict),
		errors.Is(err, common.ErrValidation),
		common.IsAuthError(err),
		errors.Is(err, common.ErrForbidden),
		errors.Is(err, common.ErrRevocationFailed):
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, common.ErrStoreUnavailable, err)
}
