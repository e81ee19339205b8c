// Package notice carries user-visible messages out of the view models.
package notice

import (
	"sync"

	"go.uber.org/zap"

	"teakspice-storefront/internal/apperr"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Err     error  `json:"-"`
}

// Sink receives notices raised by views.
type Sink interface {
	Notify(n Notice)
}

func Info(msg string) Notice {
	return Notice{Level: LevelInfo, Message: msg}
}

// Failure builds an error notice; the kind is taken from err.
func Failure(msg string, err error) Notice {
	n := Notice{Level: LevelError, Message: msg, Err: err}
	if err != nil {
		n.Kind = apperr.KindOf(err).String()
	}
	return n
}

// Recorder keeps notices until they are drained by a front end.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
	next    Sink
}

// NewRecorder returns a Recorder that also forwards to next when non-nil.
func NewRecorder(next Sink) *Recorder {
	return &Recorder{next: next}
}

func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
	if r.next != nil {
		r.next.Notify(n)
	}
}

// Drain returns and forgets every recorded notice.
func (r *Recorder) Drain() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.notices
	r.notices = nil
	return out
}

// Peek returns a copy of the recorded notices without clearing them.
func (r *Recorder) Peek() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Logger writes notices to a zap logger.
type Logger struct {
	log *zap.Logger
}

func NewLogger(log *zap.Logger) *Logger {
	if log == nil {
		log = zap.L()
	}
	return &Logger{log: log.Named("notice")}
}

func (l *Logger) Notify(n Notice) {
	if n.Level == LevelError {
		l.log.Warn(n.Message, zap.String("kind", n.Kind), zap.Error(n.Err))
		return
	}
	l.log.Info(n.Message)
}

// Discard drops every notice.
var Discard Sink = discard{}

type discard struct{}

func (discard) Notify(Notice) {}
