package authtransport

import (
	"context"

	stdjwt "github.com/dgrijalva/jwt-go"
	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/go-kit/kit/endpoint"
	"github.com/ichigozero/todokit/authsvc"
	"github.com/ichigozero/todokit/authsvc/pkg/authservice"
)

// NewParser verifies the bearer token that kitjwt.HTTPToContext put in the
// context and stores its claims under kitjwt.JWTClaimsContextKey.
func NewParser() endpoint.Middleware {
	return kitjwt.NewParser(
		authservice.KeyFunc,
		stdjwt.SigningMethodHS256,
		kitjwt.MapClaimsFactory,
	)
}

// NewAuthenticater rejects tokens that do not carry both the token uuid and
// the owner uid.
func NewAuthenticater() endpoint.Middleware {
	return func(next endpoint.Endpoint) endpoint.Endpoint {
		return func(ctx context.Context, request interface{}) (response interface{}, err error) {
			claims, ok := ctx.Value(kitjwt.JWTClaimsContextKey).(stdjwt.MapClaims)
			if !ok {
				return nil, authsvc.ErrClaimsMissing
			}

			if uuid, ok := claims["uuid"].(string); !ok || uuid == "" {
				return nil, authsvc.ErrClaimsInvalid
			}
			if uid, ok := claims["uid"].(string); !ok || uid == "" {
				return nil, authsvc.ErrClaimsInvalid
			}

			return next(ctx, request)
		}
	}
}
