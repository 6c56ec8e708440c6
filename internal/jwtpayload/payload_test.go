package jwtpayload_test

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/session-client/internal/jwtpayload"
)

var signingKey = []byte("0123456789abcdef0123456789abcdef")

func signedToken(t *testing.T, claims any) string {
	t.Helper()

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: signingKey},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(t, err)

	raw, err := jwt.Signed(signer).Claims(claims).Serialize()
	require.NoError(t, err)

	return raw
}

func b64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "one segment", token: "abc"},
		{name: "two segments", token: "abc." + b64(`{"sub":"x"}`)},
		{name: "four segments", token: "abc." + b64(`{"sub":"x"}`) + ".ghi.jkl"},
		{name: "header not base64url", token: "!!!." + b64(`{}`) + ".ghi"},
		{name: "signature not base64url", token: "abc." + b64(`{}`) + ".###"},
		{name: "header and signature not base64url", token: "!!!.e30.###"},
		{name: "header with a dangling character", token: "abcde." + b64(`{}`) + ".ghi"},
		{name: "payload not base64url", token: "abc.!!!.ghi"},
		{name: "payload not json", token: "abc." + b64("not json") + ".ghi"},
		{name: "payload json array", token: "abc." + b64(`["exp", 1]`) + ".ghi"},
		{name: "payload json null", token: "abc." + b64("null") + ".ghi"},
		{name: "payload empty", token: "abc..ghi"},
		{name: "exp not numeric", token: "abc." + b64(`{"exp":"tomorrow"}`) + ".ghi"},
		{name: "exp object", token: "abc." + b64(`{"exp":{"at":1}}`) + ".ghi"},
		{name: "only dots", token: ".."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				p  *jwtpayload.Payload
				ok bool
			)
			assert.NotPanics(t, func() { p, ok = jwtpayload.Decode(tt.token) })
			assert.False(t, ok)
			assert.Nil(t, p)
		})
	}
}

func TestDecode_ClaimTypes(t *testing.T) {
	header := b64(`{"alg":"HS256"}`)

	tests := []struct {
		name        string
		payload     string
		wantSubject string
		wantIssuer  string
		wantExp     int64
		wantHasExp  bool
	}{
		{
			name:       "numeric subject",
			payload:    `{"sub":42,"exp":4102444800}`,
			wantExp:    4102444800,
			wantHasExp: true,
		},
		{
			name:        "numeric audience",
			payload:     `{"sub":"parent-1","aud":123}`,
			wantSubject: "parent-1",
		},
		{
			name:       "string issued at",
			payload:    `{"iss":"https://portal.example.com","iat":"yesterday","exp":1}`,
			wantIssuer: "https://portal.example.com",
			wantExp:    1,
			wantHasExp: true,
		},
		{
			name:    "object issuer and array subject",
			payload: `{"iss":{"name":"portal"},"sub":["a","b"]}`,
		},
		{
			name:    "null exp",
			payload: `{"exp":null}`,
		},
		{
			name:       "fractional exp",
			payload:    `{"exp":1.5}`,
			wantExp:    1,
			wantHasExp: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := jwtpayload.Decode(header + "." + b64(tt.payload) + ".sig")
			require.True(t, ok)

			assert.Equal(t, tt.wantSubject, p.Subject)
			assert.Equal(t, tt.wantIssuer, p.Issuer)

			exp, hasExp := p.ExpiresAt()
			assert.Equal(t, tt.wantHasExp, hasExp)
			if tt.wantHasExp {
				assert.Equal(t, tt.wantExp, exp.Unix())
			}
		})
	}
}

func TestDecode_SignedToken(t *testing.T) {
	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	raw := signedToken(t, struct {
		jwt.Claims
		Role string `json:"role"`
	}{
		Claims: jwt.Claims{
			Subject: "parent-42",
			Issuer:  "https://portal.example.com",
			Expiry:  jwt.NewNumericDate(exp),
		},
		Role: "parent",
	})

	p, ok := jwtpayload.Decode(raw)
	require.True(t, ok)

	assert.Equal(t, "parent-42", p.Subject)
	assert.Equal(t, "https://portal.example.com", p.Issuer)
	assert.Equal(t, "parent", p.Raw["role"])

	gotExp, ok := p.ExpiresAt()
	require.True(t, ok)
	assert.True(t, exp.Equal(gotExp))
}

func TestDecode_HeaderAndSignatureNotInterpreted(t *testing.T) {
	p, ok := jwtpayload.Decode("abc." + b64(`{"exp":1}`) + ".ghi")
	require.True(t, ok)

	exp, ok := p.ExpiresAt()
	require.True(t, ok)
	assert.Equal(t, int64(1), exp.Unix())
}

func TestDecode_ToleratesPadding(t *testing.T) {
	payload := base64.URLEncoding.EncodeToString([]byte(`{"sub":"a"}`))
	require.Contains(t, payload, "=")

	p, ok := jwtpayload.Decode("abc." + payload + ".ghi")
	require.True(t, ok)
	assert.Equal(t, "a", p.Subject)
}

func TestDecode_NoExpiry(t *testing.T) {
	p, ok := jwtpayload.Decode("abc." + b64(`{"sub":"a"}`) + ".ghi")
	require.True(t, ok)

	_, ok = p.ExpiresAt()
	assert.False(t, ok)
}
