package testutil

import (
	"net/http"
	"time"

	"kilimokredo/pkg/requestcontext"
)

// WithFarmer attaches a verified farmer identity, as the identity middleware
// would for an authenticated request.
func WithFarmer(req *http.Request, farmerID string) *http.Request {
	return req.WithContext(requestcontext.WithFarmerID(req.Context(), farmerID))
}

// AtTime pins the request-scoped clock.
func AtTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
