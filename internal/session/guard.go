// Package session tracks whether the client holds a usable session token and
// forces a logout when it does not.
package session

import (
	"context"
	"errors"
	"sync"

	evbus "github.com/asaskevich/EventBus"
	"golang.org/x/sync/singleflight"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/session-client/internal/jwtpayload"
	"github.com/openkcm/session-client/internal/serviceerr"
)

// TopicStateChanged is the event bus topic every Transition is published on.
const TopicStateChanged = "session:state"

const validateKey = "validate"

type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateValidating      State = "validating"
	StateAuthenticated   State = "authenticated"
	StateInvalid         State = "invalid"
)

// Transition describes a state change of the guard.
type Transition struct {
	From   State
	To     State
	Reason string
}

// TokenStore persists the session token.
type TokenStore interface {
	Store(ctx context.Context, token string) error
	Retrieve(ctx context.Context) (string, bool)
	Clear(ctx context.Context) error
}

// TokenValidator checks the shape and expiry of a token.
type TokenValidator interface {
	Validate(token string) (*jwtpayload.Payload, error)
}

// Guard is the session state machine. It is safe for concurrent use:
// overlapping Validate calls share a single pass, and a token is only
// cleared while it is still the stored one.
type Guard struct {
	tokens    TokenStore
	validator TokenValidator
	bus       evbus.Bus

	group singleflight.Group

	mu    sync.Mutex
	state State

	qmu      sync.Mutex
	queue    []Transition
	draining bool
}

type GuardOption func(*Guard)

// WithBus publishes transitions on bus instead of a private one.
func WithBus(bus evbus.Bus) GuardOption {
	return func(g *Guard) {
		if bus != nil {
			g.bus = bus
		}
	}
}

// NewGuard starts in StateValidating when a token is stored and in
// StateUnauthenticated otherwise.
func NewGuard(ctx context.Context, tokens TokenStore, validator TokenValidator, opts ...GuardOption) *Guard {
	g := &Guard{
		tokens:    tokens,
		validator: validator,
		bus:       evbus.New(),
		state:     StateUnauthenticated,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	if _, ok := tokens.Retrieve(ctx); ok {
		g.state = StateValidating
	}

	return g
}

func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.state
}

// Subscribe registers fn for every future transition. fn runs on its own
// goroutine, one transition at a time in the order they happened, and may
// call back into the guard.
func (g *Guard) Subscribe(fn func(Transition)) error {
	return g.bus.SubscribeAsync(TopicStateChanged, fn, true)
}

func (g *Guard) Unsubscribe(fn func(Transition)) error {
	return g.bus.Unsubscribe(TopicStateChanged, fn)
}

// Validate checks the stored token and clears it when it is malformed or
// expired. Concurrent calls are coalesced; each caller gets the outcome of
// the shared pass. The pass itself is not cancelled when ctx is.
func (g *Guard) Validate(ctx context.Context) (State, error) {
	ch := g.group.DoChan(validateKey, func() (any, error) {
		return g.validate(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return g.State(), ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return g.State(), res.Err
		}
		return res.Val.(State), nil
	}
}

func (g *Guard) validate(ctx context.Context) (State, error) {
	token, ok := g.begin(ctx)
	if !ok {
		return StateUnauthenticated, nil
	}

	payload, err := g.validator.Validate(token)

	g.mu.Lock()
	defer g.mu.Unlock()

	current, ok := g.tokens.Retrieve(ctx)
	if !ok || current != token {
		slogctx.Debug(ctx, "Session token changed during validation, keeping the new state", "state", g.state)
		return g.state, nil
	}

	if err == nil {
		g.transition(StateAuthenticated, "token valid")
		if payload != nil && payload.Subject != "" {
			slogctx.Debug(ctx, "Session token is valid", "subject", payload.Subject)
		}
		return g.state, nil
	}

	reason := "token malformed"
	if errors.Is(err, jwtpayload.ErrExpired) {
		reason = "token expired"
	}
	slogctx.Info(ctx, "Session token is invalid, logging out", "reason", reason)
	g.transition(StateInvalid, reason)

	if err := g.tokens.Clear(ctx); err != nil {
		slogctx.Error(ctx, "Could not clear the invalid session token", "error", err)
		return g.state, err
	}

	g.transition(StateUnauthenticated, "token cleared")

	return g.state, nil
}

// begin reads the stored token and moves to StateValidating.
func (g *Guard) begin(ctx context.Context) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	token, ok := g.tokens.Retrieve(ctx)
	if !ok {
		g.transition(StateUnauthenticated, "no token")
		return "", false
	}

	g.transition(StateValidating, "token found")

	return token, true
}

// Login checks and stores token. A malformed or expired token is rejected
// without touching the stored one.
func (g *Guard) Login(ctx context.Context, token string) error {
	if _, err := g.validator.Validate(token); err != nil {
		if errors.Is(err, jwtpayload.ErrExpired) {
			return serviceerr.New(serviceerr.KindValidation, "The token has expired", err)
		}
		return serviceerr.New(serviceerr.KindValidation, "The token is malformed", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.tokens.Store(ctx, token); err != nil {
		return err
	}

	g.transition(StateAuthenticated, "login")
	slogctx.Info(ctx, "Logged in")

	return nil
}

// Logout clears the stored token unconditionally. The guard ends up in
// StateUnauthenticated even if the token could not be cleared; the storage
// error is returned.
func (g *Guard) Logout(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.logout(ctx, "logout")
}

// HandleError forces a logout when err reports a missing or rejected
// token. It reports whether a logout happened; other errors are ignored.
// When err records the token its request was sent with and another token
// has been stored since, the session is kept.
func (g *Guard) HandleError(ctx context.Context, err error) (bool, error) {
	if !serviceerr.IsAuthRequired(err) {
		return false, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if sent, ok := serviceerr.RequestToken(err); ok {
		if current, stored := g.tokens.Retrieve(ctx); stored && current != sent {
			slogctx.Info(ctx, "Authentication rejected for a replaced token, keeping the session")
			return false, nil
		}
	}

	slogctx.Info(ctx, "Authentication rejected, logging out", "error", err)

	return true, g.logout(ctx, "authentication rejected")
}

// logout must be called with mu held.
func (g *Guard) logout(ctx context.Context, reason string) error {
	err := g.tokens.Clear(ctx)
	if err != nil {
		slogctx.Error(ctx, "Could not clear the session token", "error", err)
	}

	g.transition(StateUnauthenticated, reason)

	return err
}

// transition must be called with mu held.
func (g *Guard) transition(to State, reason string) {
	if g.state == to {
		return
	}

	g.enqueue(Transition{From: g.state, To: to, Reason: reason})
	g.state = to
}

func (g *Guard) enqueue(tr Transition) {
	g.qmu.Lock()
	defer g.qmu.Unlock()

	g.queue = append(g.queue, tr)
	if !g.draining {
		g.draining = true
		go g.drain()
	}
}

// drain publishes queued transitions in order until the queue is empty.
func (g *Guard) drain() {
	for {
		g.qmu.Lock()
		if len(g.queue) == 0 {
			g.draining = false
			g.qmu.Unlock()
			return
		}
		tr := g.queue[0]
		g.queue = g.queue[1:]
		g.qmu.Unlock()

		g.bus.Publish(TopicStateChanged, tr)
	}
}
