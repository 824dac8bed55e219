package fingerprint

import (
	"context"
	"time"
)

// Submission sources.
const (
	SourceHTTP    = "http"
	SourceLegacy  = "legacy"
	SourceMQTT    = "mqtt"
	SourceUnknown = "unknown"
)

// CommandRecord is one submission outcome.
type CommandRecord struct {
	Command  CommandKind
	FingerID string // as supplied, may be empty or invalid
	Source   string
	Accepted bool
	Code     string // rejection code, empty when accepted
	Message  string
	At       time.Time
}

// CommandAuditor receives every submission outcome. RecordCommand is called
// on the submitting goroutine and must not block.
type CommandAuditor interface {
	RecordCommand(rec CommandRecord)
}

type sourceKey struct{}

// WithSource tags ctx with the surface a command arrived on.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFrom returns the source set by WithSource, or SourceUnknown.
func SourceFrom(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return SourceUnknown
}
