// Package access scopes hidden-entity visibility to a single request.
//
// A Gate starts with hidden entities invisible. Privileged reads call
// Elevate and must Release the returned Token on every exit path:
//
//	ctx, gate := access.Ensure(ctx)
//	tok := gate.Elevate()
//	defer tok.Release()
package access

import (
	"context"
	"net/http"
	"sync"
)

type Gate struct {
	mu         sync.Mutex
	showHidden bool
}

func NewGate() *Gate {
	return &Gate{}
}

// ShowHidden reports whether hidden entities are currently visible.
func (g *Gate) ShowHidden() bool {
	if g == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.showHidden
}

// Elevate makes hidden entities visible until the token is released.
func (g *Gate) Elevate() *Token {
	g.mu.Lock()
	defer g.mu.Unlock()

	t := &Token{gate: g, prior: g.showHidden}
	g.showHidden = true
	return t
}

// Token restores the visibility that was in effect before Elevate.
type Token struct {
	gate  *Gate
	prior bool
	once  sync.Once
}

// Release is safe to call more than once; only the first call has effect.
func (t *Token) Release() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		t.gate.mu.Lock()
		t.gate.showHidden = t.prior
		t.gate.mu.Unlock()
	})
}

type gateKey struct{}

func WithGate(ctx context.Context, g *Gate) context.Context {
	return context.WithValue(ctx, gateKey{}, g)
}

func FromContext(ctx context.Context) (*Gate, bool) {
	if ctx == nil {
		return nil, false
	}
	g, ok := ctx.Value(gateKey{}).(*Gate)
	return g, ok && g != nil
}

// Ensure returns the gate attached to ctx, attaching a new one when absent.
func Ensure(ctx context.Context) (context.Context, *Gate) {
	if g, ok := FromContext(ctx); ok {
		return ctx, g
	}
	g := NewGate()
	return WithGate(ctx, g), g
}

// HiddenVisible reports whether the gate on ctx currently shows hidden entities.
func HiddenVisible(ctx context.Context) bool {
	g, ok := FromContext(ctx)
	return ok && g.ShowHidden()
}

// Middleware attaches a fresh gate to every request.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithGate(r.Context(), NewGate())))
		})
	}
}
