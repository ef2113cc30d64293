package authservice

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/ichigozero/todokit/authsvc"
	"github.com/twinj/uuid"
)

type AccessToken struct {
	UUID   string `json:"uuid"`
	Hash   string `json:"access"`
	Expiry int64  `json:"exp"`
}

type Tokenizer interface {
	Generate(uid string) (*AccessToken, error)
}

type tokenizer struct{}

func NewTokenizer() Tokenizer {
	return &tokenizer{}
}

var (
	uuidV4 = uuid.NewV4
	now    = time.Now
)

// Generate signs an HS256 access token carrying the owner uid and a fresh
// token uuid.
func (t *tokenizer) Generate(uid string) (*AccessToken, error) {
	if uid == "" {
		return nil, authsvc.ErrInvalidArgument
	}

	id := uuidV4().String()
	expiry := now().Add(AccessTokenExpiry()).Unix()

	claims := jwt.MapClaims{
		"uuid": id,
		"uid":  uid,
		"exp":  expiry,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	hash, err := token.SignedString([]byte(authsvc.AccessSecret))
	if err != nil {
		return nil, err
	}

	return &AccessToken{UUID: id, Hash: hash, Expiry: expiry}, nil
}

// KeyFunc resolves the signing key for tokens made by Generate.
func KeyFunc(token *jwt.Token) (interface{}, error) {
	return []byte(authsvc.AccessSecret), nil
}

func AccessTokenExpiry() time.Duration {
	return time.Hour * 24
}
