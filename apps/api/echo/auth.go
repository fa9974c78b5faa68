package echoapi

import (
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hsannu/connect/core"
	"github.com/hsannu/connect/core/user"
)

const (
	tokenContextKey = "userToken"
	userContextKey  = "user"
	tokenAudience   = "Connect"
)

// Claims represents the authorization claims transmitted via a JWT.
// The portal keeps no user database: the token carries the identity returned at login.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt    int64    `json:"oriat,omitempty"`
	Username        string   `json:"username,omitempty"`
	Name            string   `json:"name,omitempty"`
	Email           string   `json:"email,omitempty"`
	Role            string   `json:"role,omitempty"`
	AdditionalRoles []string `json:"additional_roles,omitempty"`
	IsStudent       bool     `json:"is_student,omitempty"` // -> STUDENT PORTAL
	IsStaff         bool     `json:"is_staff,omitempty"`   // -> STAFF PORTAL
}

// User rebuilds the identity carried by the claims.
func (c Claims) User() user.User {
	id, _ := strconv.Atoi(c.Subject)
	return user.User{
		ID:              id,
		Role:            c.Role,
		Username:        c.Username,
		Name:            c.Name,
		Email:           c.Email,
		AdditionalRoles: c.AdditionalRoles,
	}
}

// auth signs and checks portal tokens.
type auth struct {
	appName      string
	signingKey   []byte
	expiration   time.Duration
	refreshDelta time.Duration
	nowFunc      func() time.Time
}

func newAuth(conf *core.Config) *auth {
	return &auth{
		appName:      conf.AppName,
		signingKey:   []byte(conf.SecretKey),
		expiration:   conf.Server.JWTExpirationDelta,
		refreshDelta: conf.Server.JWTRefreshExpirationDelta,
		nowFunc:      time.Now,
	}
}

// middleware returns the JWT auth middleware.
func (a *auth) middleware() echo.MiddlewareFunc {
	return middleware.JWTWithConfig(middleware.JWTConfig{
		SigningKey:    a.signingKey,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
	})
}

func (a *auth) userClaims(usr user.User, origIat ...int64) *Claims {
	now := a.nowFunc()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    a.appName,
			Subject:   strconv.Itoa(usr.ID),
			Audience:  tokenAudience,
			ExpiresAt: now.Add(a.expiration).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt:    oriat,
		Username:        usr.Username,
		Name:            usr.Name,
		Email:           usr.Email,
		Role:            usr.Role,
		AdditionalRoles: usr.AdditionalRoles,
		IsStudent:       usr.IsStudent(),
		IsStaff:         usr.IsStaff(),
	}
}

// generateToken generates a signed JWT token string representing the user Claims.
func (a *auth) generateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(middleware.AlgorithmHS256)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(a.signingKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// refreshToken issues a new token for the context user, within the refresh window of the first login.
func (a *auth) refreshToken(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.refreshDelta)
	if a.nowFunc().After(expTime) {
		return "", errRefreshExpired
	}

	newClaims := a.userClaims(claims.User(), claims.OrigIssuedAt)
	token, err := a.generateToken(newClaims)
	return token, errors.Wrap(err, "generating token")
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextUser returns the identity of the request's token.
func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(userContextKey).(user.User); ok {
		return usr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, errors.Wrap(err, "getting context claims")
	}
	usr := claims.User()
	if !usr.Resolvable() {
		return user.User{}, errUnauthorized
	}
	ctx.Set(userContextKey, usr)
	return usr, nil
}
