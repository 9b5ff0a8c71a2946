package middleware

import (
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const (
	SessionName  = "learner_portal"
	sessionIDKey = "sid"
)

// SessionMiddleware gives every browser a stable id that keys its watch
// sessions and payment surfaces.
func SessionMiddleware(store sessions.Store, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess, err := store.Get(c.Request(), SessionName)
			if err != nil {
				// undecodable cookie, start over with the fresh session
				log.Debug().Err(err).Msg("discard invalid session cookie")
			}

			sid, _ := sess.Values[sessionIDKey].(string)
			if sid == "" {
				sid = uuid.NewString()
				sess.Values[sessionIDKey] = sid
				if err := sess.Save(c.Request(), c.Response()); err != nil {
					log.Error().Err(err).Msg("save session")
				}
			}

			c.Set(sessionIDKey, sid)
			return next(c)
		}
	}
}

func SessionIDFrom(c echo.Context) string {
	sid, _ := c.Get(sessionIDKey).(string)
	return sid
}

func NewCookieStore(key string) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(key))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
	}
	return store
}
