// Package identity adapts external identity sources into a verified farmer
// principal carried in the request context. The loan packages only ever see
// the resulting farmer id.
package identity

import (
	"log/slog"
	"net/http"

	dErrors "kilimokredo/pkg/domain-errors"
	"kilimokredo/pkg/platform/httputil"
	"kilimokredo/pkg/requestcontext"
)

// Principal is an already-verified farmer identity.
type Principal struct {
	FarmerID string
}

// Resolver extracts a principal from a request. ok is false when the request
// carries no credentials at all; err is set when it carries bad ones.
type Resolver interface {
	Resolve(r *http.Request) (p Principal, ok bool, err error)
}

// Anonymous never resolves a principal. Used in placeholder mode.
type Anonymous struct{}

func (Anonymous) Resolve(*http.Request) (Principal, bool, error) {
	return Principal{}, false, nil
}

// Middleware attaches the resolved principal to the request context.
// Requests without credentials pass through anonymously; invalid
// credentials are rejected with 401.
func Middleware(resolver Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok, err := resolver.Resolve(r)
			if err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "rejected credentials",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				if _, coded := dErrors.As(err); !coded {
					err = dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid credentials")
				}
				httputil.WriteError(w, err)
				return
			}
			if ok && p.FarmerID != "" {
				r = r.WithContext(requestcontext.WithFarmerID(r.Context(), p.FarmerID))
			}
			next.ServeHTTP(w, r)
		})
	}
}
