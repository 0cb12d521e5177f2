package hashi

import (
	"go.opentelemetry.io/otel/trace"
)

// ParentRef declares how a new span relates to the rest of the trace. The
// zero value is contextual: the span inherits the scope's current active
// span, falling back to the scope's extracted remote context, falling back
// to a new root.
type ParentRef struct {
	kind parentKind
	id   ID
}

type parentKind int

const (
	parentContextual parentKind = iota
	parentExplicit
	parentRoot
)

// ChildOf declares an explicit parent span, overriding the contextual one.
func ChildOf(id ID) ParentRef {
	return ParentRef{kind: parentExplicit, id: id}
}

// Root declares the span explicitly parentless, forcing a new trace even
// when another span is active.
func Root() ParentRef {
	return ParentRef{kind: parentRoot}
}

// resolveParent picks the single effective parent context for a new span.
// Precedence: explicit parent, then the scope's active span, then the
// scope's extracted remote context, then none (root).
//
// An explicit parent unknown to the registry does NOT fall back to the
// contextual chain: the span becomes a root. The declared relationship was
// to a specific span; silently attaching elsewhere would fabricate
// linkage, so a smaller trace tree is preferred.
func resolveParent(ref ParentRef, scope *Scope, reg Registry, self ID) trace.SpanContext {
	switch ref.kind {
	case parentRoot:
		return trace.SpanContext{}
	case parentExplicit:
		if ref.id == self {
			// A span can never be its own parent.
			return trace.SpanContext{}
		}
		if b := reg.Lookup(ref.id); b != nil {
			return b.SpanContext()
		}
		return trace.SpanContext{}
	default:
		if scope == nil {
			return trace.SpanContext{}
		}
		if cur, ok := scope.Current(); ok && cur != self {
			if b := reg.Lookup(cur); b != nil {
				return b.SpanContext()
			}
		}
		return scope.remote
	}
}
