package logging

import (
	"context"
	"log/slog"
	"slices"
)

// ContextProvider returns the attributes stamped on every record, typically
// the loaded world and the current siege state.
type ContextProvider func() []slog.Attr

// ContextHandler stamps provider attributes onto each record. Keys the caller
// already set, on the record or through Logger.With, win over the provider.
type ContextHandler struct {
	inner    slog.Handler
	provider ContextProvider
	bound    []string
}

func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{inner: inner, provider: provider}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider == nil {
		return h.inner.Handle(ctx, r)
	}
	attrs := h.provider()
	if len(attrs) == 0 {
		return h.inner.Handle(ctx, r)
	}

	set := slices.Clone(h.bound)
	r.Attrs(func(a slog.Attr) bool {
		set = append(set, a.Key)
		return true
	})
	for _, a := range attrs {
		if !slices.Contains(set, a.Key) {
			r.AddAttrs(a)
		}
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := slices.Clone(h.bound)
	for _, a := range attrs {
		bound = append(bound, a.Key)
	}
	return &ContextHandler{inner: h.inner.WithAttrs(attrs), provider: h.provider, bound: bound}
}

// WithGroup nests later attributes, so provider keys no longer collide with
// anything the caller adds.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{inner: h.inner.WithGroup(name), provider: h.provider, bound: h.bound}
}
