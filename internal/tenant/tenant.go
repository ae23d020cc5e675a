package tenant

import "context"

// ID identifies one site of a multi-site deployment. Single-site deployments
// only ever see the primary tenant.
type ID int64

type ctxKey struct{}

// With returns a context scoped to tenant id.
func With(ctx context.Context, id ID) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// From returns the tenant carried by ctx, if any.
func From(ctx context.Context) (ID, bool) {
	id, ok := ctx.Value(ctxKey{}).(ID)
	return id, ok
}

// FromOr returns the tenant carried by ctx or fallback.
func FromOr(ctx context.Context, fallback ID) ID {
	if id, ok := From(ctx); ok {
		return id
	}
	return fallback
}

// Switcher is implemented by hosts that keep a process-level "current site"
// which must follow the tenant being worked on.
type Switcher interface {
	Current() ID
	SwitchTo(id ID)
}

// Within runs fn with ctx scoped to id. When sw is non-nil the host is
// switched to id first and switched back when fn returns, panics included.
func Within(ctx context.Context, sw Switcher, id ID, fn func(ctx context.Context) error) error {
	if sw != nil {
		prev := sw.Current()
		if prev != id {
			sw.SwitchTo(id)
			defer sw.SwitchTo(prev)
		}
	}
	return fn(With(ctx, id))
}
