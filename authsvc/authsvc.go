package authsvc

import (
	"errors"
	"os"
)

var (
	AppEnv         = getEnv("APP_ENV", "")
	AccessSecret   = getEnv("ACCESS_SECRET", "access-secret")
	CookieHashKey  = getEnv("COOKIE_HASH_KEY", "very-secret")
	CookieBlockKey = getEnv("COOKIE_BLOCK_KEY", "a-lots-of-secret")
)

func getEnv(key, fallback string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		value = fallback
	}
	return value
}

// IsProduction reports whether cookies must be marked secure.
func IsProduction() bool {
	return AppEnv == "production"
}

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrClaimsMissing   = errors.New("JWT claims was not passed through the context")
	ErrClaimsInvalid   = errors.New("JWT claims was invalid")
	ErrTokenRevoked    = errors.New("access token was revoked")
)
