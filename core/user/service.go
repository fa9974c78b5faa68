package user

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"
)

var (
	// errors
	ErrNoSession            = errors.New("no user logged in")
	ErrAuthenticationFailed = errors.New("authentication failed")
)

type (
	// Authenticator checks credentials against the portal API.
	Authenticator interface {
		Authenticate(ctx context.Context, lr LoginRequest) (User, error)
	}

	// Store is the local identity store: it persists the logged-in User between runs.
	Store interface {
		// Load returns ErrNoSession when nobody is logged in.
		Load() (User, error)
		Save(usr User) error
		Clear() error
	}

	Service struct {
		auth  Authenticator
		store Store
	}
)

// NewService returns a user Service. store may be nil when sessions are not persisted locally
// (the portal server keeps them in signed tokens).
func NewService(auth Authenticator, store Store) *Service {
	return &Service{auth: auth, store: store}
}

// Login authenticates the (already validated) LoginRequest and persists the User.
func (svc *Service) Login(ctx context.Context, lr LoginRequest) (User, error) {
	usr, err := svc.auth.Authenticate(ctx, lr)
	if err != nil {
		return User{}, err
	}
	if !usr.Resolvable() {
		return User{}, ErrAuthenticationFailed
	}
	if svc.store != nil {
		if err = svc.store.Save(usr); err != nil {
			return User{}, pkgerrors.Wrap(err, "saving session")
		}
	}
	return usr, nil
}

func (svc *Service) Logout() error {
	if svc.store == nil {
		return nil
	}
	return svc.store.Clear()
}

// Current returns the logged-in User; ErrNoSession unless its id is resolvable.
func (svc *Service) Current() (User, error) {
	if svc.store == nil {
		return User{}, ErrNoSession
	}
	usr, err := svc.store.Load()
	if err != nil {
		return User{}, err
	}
	if !usr.Resolvable() {
		return User{}, ErrNoSession
	}
	return usr, nil
}
