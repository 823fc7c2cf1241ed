package identity

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "kilimokredo/pkg/domain-errors"
)

// JWTResolver verifies HS256 bearer tokens and takes the farmer id from the
// subject claim.
type JWTResolver struct {
	signingKey []byte
	now        func() time.Time
}

// NewJWTResolver builds a resolver for tokens signed with signingKey.
func NewJWTResolver(signingKey string) *JWTResolver {
	return &JWTResolver{signingKey: []byte(signingKey), now: time.Now}
}

func (j *JWTResolver) Resolve(r *http.Request) (Principal, bool, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return Principal{}, false, nil
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return Principal{}, false, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header")
	}
	farmerID, err := j.Validate(strings.TrimSpace(token))
	if err != nil {
		return Principal{}, false, err
	}
	return Principal{FarmerID: farmerID}, true, nil
}

// Validate checks the token and returns its subject.
func (j *JWTResolver) Validate(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return j.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return claims.Subject, nil
}

// Issue signs a token for farmerID. Used by tests and local tooling; the
// production identity collaborator issues its own tokens.
func (j *JWTResolver) Issue(farmerID string, ttl time.Duration) (string, error) {
	now := j.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   farmerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	})
	return token.SignedString(j.signingKey)
}
