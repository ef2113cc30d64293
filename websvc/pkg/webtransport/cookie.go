package webtransport

import (
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/ichigozero/todokit/authsvc"
)

const sessionCookie = "todokit_session"

// cookieCodec keeps the browser session id in a signed and encrypted cookie.
type cookieCodec struct {
	sc     *securecookie.SecureCookie
	secure bool
}

func newCookieCodec(hashKey, blockKey []byte) cookieCodec {
	return cookieCodec{
		sc:     securecookie.New(hashKey, blockKey),
		secure: authsvc.IsProduction(),
	}
}

func defaultCookieCodec() cookieCodec {
	return newCookieCodec([]byte(authsvc.CookieHashKey), []byte(authsvc.CookieBlockKey))
}

func (c cookieCodec) read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", false
	}

	var id string
	if err := c.sc.Decode(sessionCookie, cookie.Value, &id); err != nil || id == "" {
		return "", false
	}
	return id, true
}

func (c cookieCodec) write(w http.ResponseWriter, id string) error {
	encoded, err := c.sc.Encode(sessionCookie, id)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (c cookieCodec) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
	})
}
