package pipeline

import (
	"fmt"
	"time"
)

// Severity classifies a diagnostic.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityFatal:
		return "fatal"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Task names used in diagnostics.
const (
	TaskSimulation = "simulation"
	TaskDisplay    = "display"
)

// Diagnostic is a condition reported by a task instead of halting silently.
type Diagnostic struct {
	Task     string
	Severity Severity
	Err      error
	At       time.Time
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s %s: %v", d.Task, d.Severity, d.Err)
}

// reporter delivers diagnostics without ever blocking the reporting task.
type reporter struct {
	ch      chan Diagnostic
	dropped func()
}

func (r reporter) report(task string, sev Severity, err error) {
	if r.ch == nil {
		return
	}
	select {
	case r.ch <- Diagnostic{Task: task, Severity: sev, Err: err, At: time.Now()}:
	default:
		if r.dropped != nil {
			r.dropped()
		}
	}
}
