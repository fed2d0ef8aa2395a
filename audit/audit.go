// Package audit implements Grizzly's structured audit event stream: a
// queryable in-process log of optimizer decisions, DDL, DML, refresh,
// schedule, and attach events. The Stream doubles as a logrus sink, so
// every audit event is both kept in-process (queryable by the engine) and
// emitted as a structured log line through the same logging path the rest
// of the engine uses.
package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Operation enumerates the audit event categories.
type Operation string

const (
	OpOptimizer Operation = "optimizer"
	OpDDL       Operation = "ddl"
	OpDML       Operation = "dml"
	OpRefresh   Operation = "refresh"
	OpSchedule  Operation = "schedule"
	OpAttach    Operation = "attach"
)

// Severity grades an event, letting a reader distinguish routine
// decisions from failures without parsing Message text.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Event is one audit record: {timestamp, operation, subject, message,
// rows_affected, plan_excerpt} plus Component/Severity so events can be
// grouped and triaged by the subsystem that raised them.
type Event struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Operation    Operation `json:"operation"`
	Component    string    `json:"component"`
	Severity     Severity  `json:"severity"`
	Subject      string    `json:"subject"`
	Message      string    `json:"message"`
	RowsAffected int64     `json:"rows_affected"`
	PlanExcerpt  string    `json:"plan_excerpt,omitempty"`
}

// Stream is an in-memory, mutex-guarded ring of audit events: every Log
// call both appends to the in-process slice (queryable via Recent) and
// writes the event through the attached logrus.Logger, if any, at a level
// matching Severity.
type Stream struct {
	mu     sync.Mutex
	events []Event
	max    int
	logger *logrus.Logger
}

// New creates a Stream retaining at most max events (0 means unbounded).
// logger may be nil, in which case events are kept in-process only.
func New(max int, logger *logrus.Logger) *Stream {
	return &Stream{max: max, logger: logger}
}

// Log appends e (stamping ID/Timestamp if unset) to the stream and emits
// it through the attached logrus.Logger, if any.
func (s *Stream) Log(e Event) Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Severity == "" {
		e.Severity = SeverityInfo
	}

	s.mu.Lock()
	s.events = append(s.events, e)
	if s.max > 0 && len(s.events) > s.max {
		s.events = s.events[len(s.events)-s.max:]
	}
	s.mu.Unlock()

	if s.logger != nil {
		fields := logrus.Fields{
			"audit_id":      e.ID,
			"operation":     string(e.Operation),
			"component":     e.Component,
			"subject":       e.Subject,
			"rows_affected": e.RowsAffected,
		}
		entry := s.logger.WithFields(fields)
		switch e.Severity {
		case SeverityWarn:
			entry.Warn(e.Message)
		case SeverityError:
			entry.Error(e.Message)
		default:
			entry.Info(e.Message)
		}
	}
	return e
}

// Recent returns a copy of the last n events (all of them if n <= 0),
// oldest first.
func (s *Stream) Recent(n int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.events) {
		n = len(s.events)
	}
	out := make([]Event, n)
	copy(out, s.events[len(s.events)-n:])
	return out
}

// ForSubject filters Recent(0) down to events whose Subject matches.
func (s *Stream) ForSubject(subject string) []Event {
	all := s.Recent(0)
	out := make([]Event, 0, len(all))
	for _, e := range all {
		if e.Subject == subject {
			out = append(out, e)
		}
	}
	return out
}
