package identity

import (
	"net/http"
	"strings"
)

// HeaderFarmerID is trusted verbatim by HeaderResolver.
const HeaderFarmerID = "X-Farmer-ID"

// HeaderResolver trusts the X-Farmer-ID header. Development only: anything
// that can reach the service can claim any identity.
type HeaderResolver struct{}

func (HeaderResolver) Resolve(r *http.Request) (Principal, bool, error) {
	id := strings.TrimSpace(r.Header.Get(HeaderFarmerID))
	if id == "" {
		return Principal{}, false, nil
	}
	return Principal{FarmerID: id}, true, nil
}
