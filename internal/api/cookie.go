package api

import (
	"net/http"
	"time"
)

// TokenCookieName is the cookie carrying the session token.
const TokenCookieName = "token"

// CookieConfig decides the security attributes of the token cookie. In
// production the cookie is Secure and SameSite=None so a client on another
// origin can send it; elsewhere it is SameSite=Strict over plain HTTP.
type CookieConfig struct {
	Production bool
	MaxAge     time.Duration
}

func (c CookieConfig) base() *http.Cookie {
	cookie := &http.Cookie{
		Name:     TokenCookieName,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Production,
		SameSite: http.SameSiteStrictMode,
	}
	if c.Production {
		cookie.SameSite = http.SameSiteNoneMode
	}
	return cookie
}

// Session returns the cookie that stores token.
func (c CookieConfig) Session(token string, now time.Time) *http.Cookie {
	cookie := c.base()
	cookie.Value = token
	cookie.MaxAge = int(c.MaxAge.Seconds())
	cookie.Expires = now.Add(c.MaxAge)
	return cookie
}

// Cleared returns a cookie that removes the token. Browsers only drop it when
// the name, path and security attributes match the ones it was set with.
func (c CookieConfig) Cleared() *http.Cookie {
	cookie := c.base()
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0)
	return cookie
}
