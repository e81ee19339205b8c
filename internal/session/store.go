// Package session holds who is logged in and with what privilege.
//
// A Store is created once per process and handed to every view. It is the
// only writer of the session: Login, Logout, Invalidate and Restore. Every
// other component reads synchronous snapshots through Current, CurrentRole
// and Token, and may Subscribe to be told when the session changes.
package session

import (
	"context"
	"maps"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	EventBus "github.com/asaskevich/EventBus"
	"go.uber.org/zap"

	"teakspice-storefront/internal/apperr"
	"teakspice-storefront/internal/model"
	"teakspice-storefront/internal/notice"
)

// TopicChanged is the bus topic carrying Change events.
const TopicChanged = "session:changed"

type Event string

const (
	EventLogin       Event = "login"
	EventLogout      Event = "logout"
	EventInvalidated Event = "invalidated"
	EventRestored    Event = "restored"
)

type Change struct {
	Event  Event
	Role   model.Role
	Reason string
}

// Authenticator exchanges credentials for a login response.
type Authenticator interface {
	Login(ctx context.Context, creds model.Credentials) (map[string]any, error)
}

type Store struct {
	mu      sync.RWMutex
	current *model.Session

	auth    Authenticator
	persist Persister
	bus     EventBus.Bus
	notices notice.Sink
	log     *zap.Logger
	now     func() time.Time
}

type Option func(*Store)

func WithLogger(log *zap.Logger) Option {
	return func(s *Store) { s.log = log }
}

func WithNotices(n notice.Sink) Option {
	return func(s *Store) { s.notices = n }
}

// WithClock overrides the clock used for token expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(auth Authenticator, p Persister, opts ...Option) *Store {
	if p == nil {
		p = &MemoryPersister{}
	}
	s := &Store{
		auth:    auth,
		persist: p,
		bus:     EventBus.New(),
		notices: notice.Discard,
		log:     zap.L(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.Named("session")
	return s
}

// Restore loads the persisted session on process start. An unreadable or
// expired session is discarded and the store starts anonymous.
func (s *Store) Restore() error {
	stored, err := s.persist.Load()
	if err != nil {
		s.log.Warn("discarding unreadable session", zap.Error(err))
		_ = s.persist.Clear()
		return nil
	}
	if stored == nil || stored.Token == "" {
		return nil
	}
	if stored.Expired(s.now()) {
		s.log.Info("stored session expired")
		return s.persist.Clear()
	}

	s.mu.Lock()
	s.current = stored
	s.mu.Unlock()

	s.log.Info("session restored", zap.String("role", stored.RoleOf().String()))
	s.publish(Change{Event: EventRestored, Role: stored.RoleOf()})
	return nil
}

// Login replaces the active session with the one issued for creds.
func (s *Store) Login(ctx context.Context, creds model.Credentials) (model.Session, error) {
	const op = "session.login"
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		err := apperr.Validation(op, "email and password are required")
		s.notices.Notify(notice.Failure("Email and password are required", err))
		return model.Session{}, err
	}

	raw, err := s.auth.Login(ctx, creds)
	if err != nil {
		s.notices.Notify(notice.Failure("Invalid Credentials", err))
		return model.Session{}, err
	}
	next, err := decodeLogin(raw)
	if err != nil {
		s.notices.Notify(notice.Failure("Invalid Credentials", err))
		return model.Session{}, err
	}

	// Storage and memory change together so overlapping logins agree on
	// the winner.
	s.mu.Lock()
	if err := s.persist.Save(next); err != nil {
		s.log.Error("persist session", zap.Error(err))
	}
	s.current = next
	s.mu.Unlock()

	s.log.Info("logged in",
		zap.String("user_id", next.UserID),
		zap.String("role", next.RoleOf().String()),
	)
	s.publish(Change{Event: EventLogin, Role: next.RoleOf()})
	return clone(next), nil
}

// Logout clears the session from memory and storage. Calling it while
// anonymous is a no-op apart from clearing storage.
func (s *Store) Logout() {
	s.mu.Lock()
	had := s.current != nil
	s.current = nil
	if err := s.persist.Clear(); err != nil {
		s.log.Error("clear stored session", zap.Error(err))
	}
	s.mu.Unlock()
	if had {
		s.log.Info("logged out")
		s.publish(Change{Event: EventLogout, Role: model.RoleAnonymous})
	}
}

// Invalidate destroys the active session, for example after the backend
// rejected its token.
func (s *Store) Invalidate(reason string) {
	s.mu.RLock()
	cur := s.current
	s.mu.RUnlock()
	s.invalidate(cur, reason)
}

func (s *Store) invalidate(expected *model.Session, reason string) {
	if expected == nil {
		return
	}
	s.mu.Lock()
	if s.current != expected {
		// A newer login already replaced it.
		s.mu.Unlock()
		return
	}
	s.current = nil
	if err := s.persist.Clear(); err != nil {
		s.log.Error("clear stored session", zap.Error(err))
	}
	s.mu.Unlock()

	s.log.Info("session invalidated", zap.String("reason", reason))
	s.publish(Change{Event: EventInvalidated, Role: model.RoleAnonymous, Reason: reason})
}

func (s *Store) snapshot() *model.Session {
	s.mu.RLock()
	cur := s.current
	s.mu.RUnlock()
	if cur != nil && cur.Expired(s.now()) {
		s.invalidate(cur, "token expired")
		return nil
	}
	return cur
}

// Current returns a copy of the active session.
func (s *Store) Current() (model.Session, bool) {
	cur := s.snapshot()
	if cur == nil {
		return model.Session{}, false
	}
	return clone(cur), true
}

func (s *Store) CurrentRole() model.Role {
	return s.snapshot().RoleOf()
}

// Token returns the bearer token, or "" when anonymous.
func (s *Store) Token() string {
	if cur := s.snapshot(); cur != nil {
		return cur.Token
	}
	return ""
}

// Subscribe calls fn synchronously after every session change. The returned
// func stops delivery.
func (s *Store) Subscribe(fn func(Change)) (cancel func()) {
	// EventBus matches handlers by code pointer, so closures built from the
	// same literal cannot be told apart on Unsubscribe. Cancelled handlers
	// are muted instead.
	var stopped atomic.Bool
	handler := func(c Change) {
		if !stopped.Load() {
			fn(c)
		}
	}
	if err := s.bus.Subscribe(TopicChanged, handler); err != nil {
		s.log.Error("subscribe", zap.Error(err))
	}
	return func() { stopped.Store(true) }
}

func (s *Store) publish(c Change) {
	s.bus.Publish(TopicChanged, c)
}

func clone(s *model.Session) model.Session {
	out := *s
	out.Identity = maps.Clone(s.Identity)
	return out
}
