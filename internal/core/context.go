package core

import "context"

type contextKey string

const ctxKeyTrigger contextKey = "run_trigger"

// Trigger records who started a run, for the audit table.
type Trigger struct {
	Source    string `json:"source"` // cli, watch, api, menu
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

func (t Trigger) String() string {
	if t.Source == "" {
		return ""
	}
	if t.IPAddress == "" {
		return t.Source
	}
	return t.Source + " " + t.IPAddress
}

// ContextWithTrigger adds the run trigger to ctx.
func ContextWithTrigger(ctx context.Context, t Trigger) context.Context {
	return context.WithValue(ctx, ctxKeyTrigger, t)
}

// TriggerFromContext extracts the run trigger from ctx.
func TriggerFromContext(ctx context.Context) Trigger {
	if v, ok := ctx.Value(ctxKeyTrigger).(Trigger); ok {
		return v
	}
	return Trigger{}
}
