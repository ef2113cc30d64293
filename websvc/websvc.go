package websvc

import "errors"

// Principal is the signed-in user as reported by the identity provider,
// together with the access token minted for the session.
type Principal struct {
	UID           string `json:"uid"`
	DisplayName   string `json:"displayName,omitempty"`
	Email         string `json:"email,omitempty"`
	AvatarURL     string `json:"avatarURL,omitempty"`
	EmailVerified bool   `json:"emailVerified"`

	AccessToken string `json:"-"`
	AccessUUID  string `json:"-"`
}

var (
	ErrUnauthenticated = errors.New("no signed-in principal")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrTaskNotFound    = errors.New("task not found")
)
