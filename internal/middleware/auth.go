package middleware

import (
	"net/http"

	"learner-portal/internal/apperror"
	"learner-portal/internal/client"
	"learner-portal/internal/model"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const viewerKey = "viewer"

// ViewerMiddleware forwards the caller's cookies to the backend and resolves
// who is calling. A token the verifier accepts is trusted as is, anything else
// goes through the profile endpoint. Any failure leaves the caller anonymous.
func ViewerMiddleware(courseClient client.CourseClient, verifier *TokenVerifier, tokenCookie string, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			cookies := backendCookies(req.Cookies())
			ctx := client.WithCredentials(req.Context(), cookies)
			c.SetRequest(req.WithContext(ctx))

			viewer := model.Anonymous
			resolved := false

			if verifier != nil {
				if ck, err := req.Cookie(tokenCookie); err == nil {
					v, err := verifier.Verify(ck.Value)
					if err == nil {
						viewer, resolved = v, true
					} else {
						log.Debug().Err(err).Msg("token rejected locally, asking backend")
					}
				}
			}

			if !resolved && len(cookies) > 0 {
				profile, err := courseClient.GetProfile(ctx)
				switch {
				case err == nil:
					viewer = *profile
				case apperror.IsUnauthorized(err):
				default:
					log.Warn().Err(err).Msg("resolve viewer profile")
				}
			}

			c.Set(viewerKey, viewer)
			return next(c)
		}
	}
}

// backendCookies drops our own session cookie, the backend has no use for it.
func backendCookies(cookies []*http.Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(cookies))
	for _, ck := range cookies {
		if ck.Name != SessionName {
			out = append(out, ck)
		}
	}
	return out
}

func ViewerFrom(c echo.Context) model.Viewer {
	viewer, ok := c.Get(viewerKey).(model.Viewer)
	if !ok {
		return model.Anonymous
	}
	return viewer
}
