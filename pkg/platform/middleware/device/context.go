package device

import "context"

type labelKey struct{}

// Label returns the device label set by WithLabel, or "".
func Label(ctx context.Context) string {
	label, _ := ctx.Value(labelKey{}).(string)
	return label
}

// WithLabel stores the human-readable device label recorded on sign-in audit
// events.
func WithLabel(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, labelKey{}, label)
}
