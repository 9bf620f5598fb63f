package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/openhis/slotkit/internal/web/auth"
)

// Session attaches the session carried by the request, if any and valid, to
// its context. Requests without a session pass through unchanged.
func Session(svc *auth.SessionService, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.TokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			sess, err := svc.Parse(token)
			if err != nil {
				logger.Debug("ignoring invalid session",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), sess)))
		})
	}
}
