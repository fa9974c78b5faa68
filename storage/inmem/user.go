package inmem

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/hsannu/connect/core/user"
)

type authenticator struct {
	db *userTable
}

var _ user.Authenticator = (*authenticator)(nil) // interface compliance check

func NewAuthenticator(db *DB) user.Authenticator {
	return &authenticator{db: db.user}
}

// Authenticate matches the username (or email) case-insensitively and checks the password hash.
func (auth *authenticator) Authenticate(ctx context.Context, lr user.LoginRequest) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	if lr.Username == "" {
		return user.User{}, user.ErrAuthenticationFailed
	}

	auth.db.RLock()
	defer auth.db.RUnlock()

	for _, acc := range auth.db.table {
		if !strings.EqualFold(acc.user.Username, lr.Username) && !strings.EqualFold(acc.user.Email, lr.Username) {
			continue
		}
		if bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(lr.Password)) != nil {
			break
		}
		return acc.user, nil
	}
	return user.User{}, user.ErrAuthenticationFailed
}
