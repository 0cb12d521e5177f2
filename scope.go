package hashi

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Scope tracks the active-span stack for one execution context: a goroutine,
// or a task that may hop between goroutines across suspension points. It is
// the implicit-parent source for spans created without an explicit parent
// and the attribution target for events.
//
// A Scope is intentionally NOT safe for concurrent use. Each execution
// context owns its own Scope; when work moves to another goroutine, carry
// the Scope across explicitly or through a context.Context prepared with
// ContextWithScope.
type Scope struct {
	stack  []ID
	remote trace.SpanContext
}

// NewScope returns an empty scope.
func NewScope() *Scope {
	return &Scope{}
}

// SetRemote installs an extracted remote context as the lowest-precedence
// parent candidate for spans subsequently created in this scope. An invalid
// context clears it.
func (s *Scope) SetRemote(sc trace.SpanContext) {
	s.remote = sc
}

// Remote returns the extracted remote context, which is invalid when none
// has been set.
func (s *Scope) Remote() trace.SpanContext {
	return s.remote
}

// Current returns the innermost active span identity, or false when no span
// is entered in this scope.
func (s *Scope) Current() (ID, bool) {
	if len(s.stack) == 0 {
		return 0, false
	}
	return s.stack[len(s.stack)-1], true
}

// Fork returns a new scope seeded with this scope's current state, for
// handing to a child execution context. The stacks evolve independently
// afterwards.
func (s *Scope) Fork() *Scope {
	child := &Scope{remote: s.remote}
	if len(s.stack) > 0 {
		child.stack = append(child.stack, s.stack[len(s.stack)-1])
	}
	return child
}

func (s *Scope) push(id ID) {
	s.stack = append(s.stack, id)
}

// pop removes the deepest entry matching id. Exits normally arrive in LIFO
// order, but a front-end interleaving enter/exit pairs across suspended
// tasks may exit out of order; removing the deepest match keeps the rest of
// the stack intact.
func (s *Scope) pop(id ID) {
	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.stack[i] == id {
			s.stack = append(s.stack[:i], s.stack[i+1:]...)
			return
		}
	}
}

// scopeKeyType keeps the context key private to this package.
type scopeKeyType struct{}

var scopeKey scopeKeyType

// ContextWithScope returns a context carrying the scope, so the active-span
// state can ride along API boundaries that already pass a context.Context.
func ContextWithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey, s)
}

// ScopeFromContext extracts the scope from a context. Returns nil when the
// context carries none.
func ScopeFromContext(ctx context.Context) *Scope {
	if ctx == nil {
		return nil
	}
	if s, ok := ctx.Value(scopeKey).(*Scope); ok {
		return s
	}
	return nil
}
