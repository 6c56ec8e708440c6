// Package jwtpayload decodes the payload of a JSON Web Token and checks its
// expiry.
//
// No signature is verified. A decoded payload is a hint for the client (is
// the token worth sending, when does it expire) and never a proof of
// identity; the backend authorizes every request on its own.
package jwtpayload

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4/jwt"
)

var (
	ErrMalformed = errors.New("malformed token")
	ErrExpired   = errors.New("token expired")
)

// Payload is the decoded middle segment of a token. Subject and Issuer are
// only set when the claims are strings; the other claims are left in Raw
// whatever their type.
type Payload struct {
	Subject  string
	Issuer   string
	Expiry   *jwt.NumericDate
	IssuedAt *jwt.NumericDate

	// Raw holds every claim of the payload, including the standard ones.
	// Numbers are kept as json.Number.
	Raw map[string]any
}

// ExpiresAt returns the exp claim, if present.
func (p *Payload) ExpiresAt() (time.Time, bool) {
	if p.Expiry == nil {
		return time.Time{}, false
	}

	return p.Expiry.Time(), true
}

// Decode returns the payload of a token made of exactly three base64url
// segments, or false otherwise. The payload segment must hold a JSON object
// whose exp claim, when set, is a number. Header and signature are decoded
// but not interpreted.
func Decode(token string) (*Payload, bool) {
	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return nil, false
	}

	decoded := make([][]byte, len(segments))
	for i, segment := range segments {
		data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(segment, "="))
		if err != nil {
			return nil, false
		}
		decoded[i] = data
	}

	data := bytes.TrimSpace(decoded[1])
	if len(data) == 0 || data[0] != '{' {
		return nil, false
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	p := Payload{}
	if err := dec.Decode(&p.Raw); err != nil || p.Raw == nil {
		return nil, false
	}

	exp, ok := numericClaim(p.Raw["exp"])
	if !ok {
		return nil, false
	}
	p.Expiry = exp

	p.IssuedAt, _ = numericClaim(p.Raw["iat"])
	p.Subject, _ = p.Raw["sub"].(string)
	p.Issuer, _ = p.Raw["iss"].(string)

	return &p, true
}

// numericClaim reads a NumericDate claim. An absent or null claim is nil;
// a claim of any other type than a number is reported as not ok.
func numericClaim(v any) (*jwt.NumericDate, bool) {
	if v == nil {
		return nil, true
	}

	n, ok := v.(json.Number)
	if !ok {
		return nil, false
	}

	f, err := n.Float64()
	if err != nil {
		return nil, false
	}

	date := jwt.NumericDate(int64(f))

	return &date, true
}
