package relay

import "context"

// Report describes an unhandled failure in a turn.
type Report struct {
	Error     string `json:"error"`
	Source    string `json:"source"`
	Traceback string `json:"traceback"`
}

// Reporter delivers reports to an error-reporting sink. Implementations must
// not block the caller on network I/O and must swallow their own failures.
type Reporter interface {
	Report(ctx context.Context, r Report)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, r Report)

// Report calls f.
func (f ReporterFunc) Report(ctx context.Context, r Report) { f(ctx, r) }

// NopReporter discards reports.
var NopReporter Reporter = ReporterFunc(func(context.Context, Report) {})
