package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	// SessionCookieName carries the anonymous session id in browsers.
	SessionCookieName = "pm_session"
	// SessionHeader lets API clients pick their session explicitly.
	SessionHeader = "X-Session-ID"
	// TokenCookieName keeps the bearer token for browser pages, whose links
	// and forms cannot carry an Authorization header.
	TokenCookieName = "pm_token"

	sessionContextKey = "pm.session"
	sessionCookieAge  = 30 * 24 * time.Hour
)

// SessionMiddleware resolves the session id of every request. With an
// Authenticator the token subject is used. The token is read from the
// Authorization header, the token query parameter or the token cookie, and a
// verified query token is stored in the cookie. Without an Authenticator the
// session header or cookie is used, minting a new cookie when neither holds a
// valid id.
func SessionMiddleware(auth Authenticator, secureCookie bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if auth != nil {
				header := c.Request().Header.Get(echo.HeaderAuthorization)
				queryToken := c.QueryParam("token")
				if header == "" {
					if queryToken != "" {
						header = "Bearer " + queryToken
					} else if cookie, err := c.Cookie(TokenCookieName); err == nil && cookie.Value != "" {
						header = "Bearer " + cookie.Value
					}
				}
				userID, err := auth.UserIDFromAuthHeader(header)
				if err != nil {
					return c.String(http.StatusUnauthorized, err.Error())
				}
				if queryToken != "" && header == "Bearer "+queryToken {
					c.SetCookie(&http.Cookie{
						Name:     TokenCookieName,
						Value:    queryToken,
						Path:     "/",
						HttpOnly: true,
						Secure:   secureCookie,
						SameSite: http.SameSiteLaxMode,
					})
				}
				c.Set(sessionContextKey, userID)
				return next(c)
			}

			if id, ok := validSessionID(c.Request().Header.Get(SessionHeader)); ok {
				c.Set(sessionContextKey, id)
				return next(c)
			}
			if cookie, err := c.Cookie(SessionCookieName); err == nil {
				if id, ok := validSessionID(cookie.Value); ok {
					c.Set(sessionContextKey, id)
					return next(c)
				}
			}

			id := uuid.NewString()
			c.SetCookie(&http.Cookie{
				Name:     SessionCookieName,
				Value:    id,
				Path:     "/",
				MaxAge:   int(sessionCookieAge / time.Second),
				HttpOnly: true,
				Secure:   secureCookie,
				SameSite: http.SameSiteLaxMode,
			})
			c.Set(sessionContextKey, id)
			return next(c)
		}
	}
}

func validSessionID(v string) (string, bool) {
	if v == "" {
		return "", false
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// sessionID returns the id resolved by SessionMiddleware.
func sessionID(c echo.Context) string {
	id, _ := c.Get(sessionContextKey).(string)
	return id
}
