package webtransport

import (
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/ichigozero/todokit/authsvc"
	"github.com/ichigozero/todokit/websvc"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
)

// IdentityProvider is the external sign-in provider. CompleteAuth reports
// the signed-in user; the access token fields of the principal are left for
// the caller to fill.
type IdentityProvider interface {
	BeginAuth(w http.ResponseWriter, r *http.Request, provider string) error
	CompleteAuth(w http.ResponseWriter, r *http.Request, provider string) (websvc.Principal, error)
	SignOut(w http.ResponseWriter, r *http.Request) error
}

// UseGoogle registers the Google provider and the cookie store gothic keeps
// its own state in. Call once at startup.
func UseGoogle(callbackBaseURL, clientID, clientSecret string) {
	goth.UseProviders(google.New(clientID, clientSecret, callbackBaseURL+"/auth/google/callback", "email", "profile"))

	store := sessions.NewCookieStore([]byte(authsvc.CookieHashKey))
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = authsvc.IsProduction()
	gothic.Store = store
}

type gothProvider struct{}

// NewGothProvider signs users in through the providers registered with goth.
func NewGothProvider() IdentityProvider {
	return gothProvider{}
}

// withProvider returns a copy of r carrying the provider in the query,
// where gothic looks for it.
func withProvider(r *http.Request, provider string) *http.Request {
	r2 := r.Clone(r.Context())
	q := r2.URL.Query()
	q.Set("provider", provider)
	r2.URL.RawQuery = q.Encode()
	return r2
}

func (gothProvider) BeginAuth(w http.ResponseWriter, r *http.Request, provider string) error {
	if _, err := goth.GetProvider(provider); err != nil {
		return websvc.ErrInvalidArgument
	}

	authURL, err := gothic.GetAuthURL(w, withProvider(r, provider))
	if err != nil {
		return err
	}
	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
	return nil
}

func (gothProvider) CompleteAuth(w http.ResponseWriter, r *http.Request, provider string) (websvc.Principal, error) {
	user, err := gothic.CompleteUserAuth(w, withProvider(r, provider))
	if err != nil {
		return websvc.Principal{}, err
	}
	return principalOf(user), nil
}

func (gothProvider) SignOut(w http.ResponseWriter, r *http.Request) error {
	return gothic.Logout(w, r)
}

func principalOf(user goth.User) websvc.Principal {
	name := user.Name
	if name == "" {
		name = user.NickName
	}

	verified, _ := user.RawData["verified_email"].(bool)

	return websvc.Principal{
		UID:           user.UserID,
		DisplayName:   name,
		Email:         user.Email,
		AvatarURL:     user.AvatarURL,
		EmailVerified: verified,
	}
}
