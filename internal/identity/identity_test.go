package identity

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	dErrors "kilimokredo/pkg/domain-errors"
	"kilimokredo/pkg/requestcontext"
)

type MiddlewareSuite struct {
	suite.Suite
	resolver *JWTResolver
	seen     string
	handler  http.Handler
}

func TestMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareSuite))
}

func (s *MiddlewareSuite) SetupTest() {
	s.resolver = NewJWTResolver("test-signing-key")
	s.seen = ""
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.seen = requestcontext.FarmerID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	s.handler = Middleware(s.resolver, slog.New(slog.NewTextHandler(io.Discard, nil)))(next)
}

func (s *MiddlewareSuite) do(auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *MiddlewareSuite) TestValidToken() {
	token, err := s.resolver.Issue("f1", time.Hour)
	s.Require().NoError(err)

	rec := s.do("Bearer " + token)
	s.Equal(http.StatusNoContent, rec.Code)
	s.Equal("f1", s.seen)
}

func (s *MiddlewareSuite) TestAnonymousPassesThrough() {
	rec := s.do("")
	s.Equal(http.StatusNoContent, rec.Code)
	s.Empty(s.seen)
}

func (s *MiddlewareSuite) TestRejectsBadCredentials() {
	expired := &JWTResolver{signingKey: []byte("test-signing-key"), now: func() time.Time { return time.Now().Add(-2 * time.Hour) }}
	stale, err := expired.Issue("f1", time.Hour)
	s.Require().NoError(err)

	foreign, err := NewJWTResolver("other-key").Issue("f1", time.Hour)
	s.Require().NoError(err)

	for name, auth := range map[string]string{
		"garbage":      "Bearer not-a-token",
		"wrong scheme": "Basic Zm9vOmJhcg==",
		"expired":      "Bearer " + stale,
		"wrong key":    "Bearer " + foreign,
		"empty bearer": "Bearer ",
	} {
		s.Run(name, func() {
			rec := s.do(auth)
			s.Equal(http.StatusUnauthorized, rec.Code)
			s.Contains(rec.Body.String(), `"error":"unauthorized"`)
			s.Empty(s.seen)
		})
	}
}

func TestValidateRejectsMissingSubject(t *testing.T) {
	r := NewJWTResolver("k")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
	signed, err := token.SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = r.Validate(signed)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidateRejectsOtherAlgorithms(t *testing.T) {
	r := NewJWTResolver("k")
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{Subject: "f1"})
	signed, err := token.SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = r.Validate(signed)
	assert.Error(t, err)
}

func TestHeaderResolver(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok, err := HeaderResolver{}.Resolve(req)
	require.NoError(t, err)
	assert.False(t, ok)

	req.Header.Set(HeaderFarmerID, " f7 ")
	p, ok, err := HeaderResolver{}.Resolve(req)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "f7", p.FarmerID)
}

func TestAnonymous(t *testing.T) {
	_, ok, err := Anonymous{}.Resolve(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NoError(t, err)
	assert.False(t, ok)
}
