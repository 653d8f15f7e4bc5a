package service

import "context"

// Pipeline phases as reported to a ProgressFunc.
const (
	PhaseExtract   = "extract"
	PhaseTransform = "transform"
	PhaseLoad      = "load"
	PhaseSnapshot  = "snapshot"
)

// ProgressFunc receives the current phase. During load, done and total count
// finished writes; other phases report zeros. It may be called concurrently.
type ProgressFunc func(phase string, done, total int)

type progressKey struct{}

// WithProgress returns a context whose pipeline runs report to fn.
func WithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

func reportProgress(ctx context.Context, phase string, done, total int) {
	if fn, ok := ctx.Value(progressKey{}).(ProgressFunc); ok && fn != nil {
		fn(phase, done, total)
	}
}
