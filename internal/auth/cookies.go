package auth

import (
	"net/http"
	"time"
)

const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refresh_token"
)

// Cookies writes the auth cookies. Both are httpOnly and SameSite=Lax.
type Cookies struct {
	Secure bool
	Path   string
}

func (c Cookies) path() string {
	if c.Path == "" {
		return "/"
	}
	return c.Path
}

func (c Cookies) SetAccess(w http.ResponseWriter, value string, expires time.Time) {
	http.SetCookie(w, c.cookie(AccessCookie, value, expires))
}

func (c Cookies) SetRefresh(w http.ResponseWriter, value string, expires time.Time) {
	http.SetCookie(w, c.cookie(RefreshCookie, value, expires))
}

func (c Cookies) Clear(w http.ResponseWriter) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		ck := c.cookie(name, "", time.Unix(0, 0))
		ck.MaxAge = -1
		http.SetCookie(w, ck)
	}
}

func (c Cookies) cookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     c.path(),
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
