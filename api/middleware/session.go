package middleware

import (
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/foodmarketplace/pkg/logger"
)

const sessionHeader = "X-Cart-Session"

var sessionPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// SessionOptions controls the cart session cookie.
type SessionOptions struct {
	CookieName string
	MaxAge     time.Duration
	Secure     bool
}

// CartSession resolves the anonymous cart session from the X-Cart-Session
// header or the session cookie, minting a new one when neither carries a
// usable value. The session is echoed in both the header and the cookie.
func CartSession(opts SessionOptions, logg *logger.Logger) func(http.Handler) http.Handler {
	if opts.CookieName == "" {
		opts.CookieName = "fm_cart_session"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := r.Header.Get(sessionHeader)
			if !sessionPattern.MatchString(session) {
				session = ""
				if c, err := r.Cookie(opts.CookieName); err == nil && sessionPattern.MatchString(c.Value) {
					session = c.Value
				}
			}
			if session == "" {
				session = uuid.NewString()
			}

			w.Header().Set(sessionHeader, session)
			http.SetCookie(w, &http.Cookie{
				Name:     opts.CookieName,
				Value:    session,
				Path:     "/",
				MaxAge:   int(opts.MaxAge.Seconds()),
				HttpOnly: true,
				Secure:   opts.Secure,
				SameSite: http.SameSiteLaxMode,
			})

			ctx := WithSession(r.Context(), session)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, session)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
