package sentinel

import "errors"

// Infrastructure facts returned by stores, optionally wrapped. The service
// layer translates them into domain errors; stores never build coded errors.
//
//   - ErrNotFound: no document with that identity
//   - ErrInvalidState: a conditional write found the document in the wrong state
//   - ErrUnavailable: the backing store could not be reached
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
