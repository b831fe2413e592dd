package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sarpras-lapor/apiserver/internal/auth"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// Authenticator resolves bearer tokens to identities.
type Authenticator struct {
	tokens      *auth.TokenManager
	revocations auth.RevocationList
	logger      logrus.FieldLogger
}

// NewAuthenticator builds the auth middleware. revocations may be nil.
func NewAuthenticator(tokens *auth.TokenManager, revocations auth.RevocationList, logger logrus.FieldLogger) *Authenticator {
	return &Authenticator{
		tokens:      tokens,
		revocations: revocations,
		logger:      logger.WithField("component", "auth"),
	}
}

// RequireAuth rejects requests without a valid, unrevoked bearer token and
// attaches the caller's identity to the request context.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		identity, err := a.tokens.Verify(tokenString)
		if err != nil {
			message := "unauthorized"
			if errors.Is(err, auth.ErrTokenExpired) {
				message = "session expired"
			}
			writeError(w, http.StatusUnauthorized, message)
			return
		}

		if a.revocations != nil {
			revoked, err := a.revocations.IsRevoked(r.Context(), identity.SessionID)
			if err != nil {
				a.logger.WithError(err).WithField("request_id", middleware.GetReqID(r.Context())).Error("revocation lookup failed")
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if revoked {
				writeError(w, http.StatusUnauthorized, "session ended")
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
	})
}

// RequireAdmin rejects authenticated callers whose role is not admin. It
// must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !identity.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs one line per request.
func RequestLogger(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	logger = logger.WithField("component", "http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				entry := logger.WithFields(logrus.Fields{
					"request_id":  middleware.GetReqID(r.Context()),
					"method":      r.Method,
					"path":        r.URL.Path,
					"status":      ww.Status(),
					"bytes":       ww.BytesWritten(),
					"duration_ms": time.Since(start).Milliseconds(),
					"remote_addr": r.RemoteAddr,
				})
				switch {
				case ww.Status() >= http.StatusInternalServerError:
					entry.Error("request completed")
				case ww.Status() >= http.StatusBadRequest:
					entry.Warn("request completed")
				default:
					entry.Info("request completed")
				}
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// RateLimit limits requests per client IP using an in-memory store. rate
// uses the limiter format, e.g. "20-M".
func RateLimit(rate string) (func(http.Handler) http.Handler, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, err
	}
	instance := limiter.New(memory.NewStore(), parsed)
	mw := stdlib.NewMiddleware(instance, stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusTooManyRequests, "too many requests, try again later")
	}))
	return mw.Handler, nil
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
