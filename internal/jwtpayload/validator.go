package jwtpayload

import (
	"time"
)

type Validator struct {
	now func() time.Time
}

type ValidatorOption func(*Validator)

// WithClock replaces the wall clock used for expiry checks.
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) { v.now = now }
}

func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// Validate decodes token and checks that its exp claim, if present, lies
// strictly in the future. A token without exp never expires.
func (v *Validator) Validate(token string) (*Payload, error) {
	p, ok := Decode(token)
	if !ok {
		return nil, ErrMalformed
	}

	if exp, ok := p.ExpiresAt(); ok && !exp.After(v.now()) {
		return p, ErrExpired
	}

	return p, nil
}

// IsValid reports whether token is well-formed and unexpired.
func (v *Validator) IsValid(token string) bool {
	_, err := v.Validate(token)
	return err == nil
}
