package logger

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"
)

type BroadcastHandler struct {
	next   slog.Handler
	attrs  []slog.Attr
	groups []string
}

func NewBroadcastHandler(next slog.Handler) slog.Handler {
	return &BroadcastHandler{next: next}
}

func (h *BroadcastHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *BroadcastHandler) Handle(ctx context.Context, r slog.Record) error {
	err := h.next.Handle(ctx, r)

	attrs := map[string]any{}
	for _, a := range h.attrs {
		addAttr(attrs, h.groups, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(attrs, h.groups, a)
		return true
	})
	evt := Event{
		Time:  formatTime(r.Time),
		Level: r.Level.String(),
		Msg:   r.Message,
		Attrs: attrs,
	}
	addEvent(evt)

	if events.count() > 0 {
		if b, mErr := json.Marshal(evt); mErr == nil {
			events.publish(append(b, '\n'))
		}
	}
	return err
}

func (h *BroadcastHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &BroadcastHandler{
		next:   h.next.WithAttrs(attrs),
		attrs:  append(append([]slog.Attr(nil), h.attrs...), attrs...),
		groups: append([]string(nil), h.groups...),
	}
}

func (h *BroadcastHandler) WithGroup(name string) slog.Handler {
	out := &BroadcastHandler{
		next:   h.next.WithGroup(name),
		attrs:  append([]slog.Attr(nil), h.attrs...),
		groups: append([]string(nil), h.groups...),
	}
	if name = strings.TrimSpace(name); name != "" {
		out.groups = append(out.groups, name)
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func addAttr(dst map[string]any, groups []string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	m := dst
	for _, g := range groups {
		next, ok := m[g].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[g] = next
		}
		m = next
	}
	m[a.Key] = valueToAny(a.Value)
}

func valueToAny(v slog.Value) any {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindBool:
		return v.Bool()
	case slog.KindFloat64:
		return v.Float64()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339Nano)
	case slog.KindGroup:
		m := map[string]any{}
		for _, a := range v.Group() {
			addAttr(m, nil, a)
		}
		return m
	default:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.Any()
	}
}
