// Package session tracks, per dashboard session, which identity is signed in
// and which profile and role it resolved to.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/surgicast/surgicast/internal/domain/profile"
	"github.com/surgicast/surgicast/internal/platform/auth"
	"github.com/surgicast/surgicast/internal/platform/notice"
)

// AuthService names the identity backend in user-facing notices.
const AuthService = "Authentication"

var (
	ErrInvalidRole  = errors.New("role must be patient or surgeon")
	ErrNameRequired = errors.New("full name is required")
)

// Session is the per-dashboard-session view of who is signed in. Role stays
// empty until the identity resolves to a known profile. Expired is set only on
// the final snapshot emitted when an idle session is swept.
type Session struct {
	ID       string           `json:"id"`
	Identity string           `json:"identity,omitempty"`
	Profile  *profile.Profile `json:"profile,omitempty"`
	Role     string           `json:"role"`
	Loading  bool             `json:"loading"`
	Expired  bool             `json:"-"`
}

// Profiles is the profile lookup the store needs.
type Profiles interface {
	Get(ctx context.Context, id uuid.UUID) (*profile.Profile, error)
	CreateSelf(ctx context.Context, p *profile.Profile) error
}

// Env bundles the process-wide collaborators handed to session-aware
// components.
type Env struct {
	Store   *Store
	Notices *notice.Center
	Logger  zerolog.Logger
}

// Store holds every dashboard session and notifies subscribers of each change.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	lastSeen map[string]time.Time
	subs     map[int]func(Session)
	nextSub  int
	now      func() time.Time

	provider auth.Provider
	profiles Profiles
	notices  *notice.Center
	logger   zerolog.Logger
}

func NewStore(provider auth.Provider, profiles Profiles, notices *notice.Center, logger zerolog.Logger) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		lastSeen: make(map[string]time.Time),
		subs:     make(map[int]func(Session)),
		now:      time.Now,
		provider: provider,
		profiles: profiles,
		notices:  notices,
		logger:   logger.With().Str("component", "session").Logger(),
	}
}

// Subscribe registers fn for session snapshots and returns its cancel func.
// Callbacks run synchronously, in change order, and must not call back into
// the Store.
func (s *Store) Subscribe(fn func(Session)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// emitLocked must be called with s.mu held.
func (s *Store) emitLocked(sess *Session) {
	snap := *sess
	for _, fn := range s.subs {
		fn(snap)
	}
}

// Get returns a snapshot of the session, if it exists.
func (s *Store) Get(sid string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sid]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

func (s *Store) getOrCreateLocked(sid string) *Session {
	s.lastSeen[sid] = s.now()
	sess, ok := s.sessions[sid]
	if !ok {
		sess = &Session{ID: sid}
		s.sessions[sid] = sess
		s.emitLocked(sess)
	}
	return sess
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops sessions not seen for idle and returns how many it dropped.
// Subscribers receive a final snapshot with Expired set.
func (s *Store) Sweep(idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-idle)
	dropped := 0
	for sid, seen := range s.lastSeen {
		if seen.After(cutoff) {
			continue
		}
		delete(s.sessions, sid)
		delete(s.lastSeen, sid)
		if s.notices != nil {
			s.notices.Forget(sid)
		}
		s.emitLocked(&Session{ID: sid, Expired: true})
		dropped++
	}
	return dropped
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, idle, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(idle); n > 0 {
				s.logger.Debug().Int("dropped", n).Int("live", s.Len()).Msg("idle sessions swept")
			}
		}
	}
}

// Observe reconciles the session with the identity the current request
// authenticated as. A changed identity clears the profile, marks the session
// loading and resolves the new profile.
func (s *Store) Observe(ctx context.Context, sid, identity string) (Session, error) {
	s.mu.Lock()
	sess := s.getOrCreateLocked(sid)
	if sess.Identity == identity && !sess.Loading {
		snap := *sess
		s.mu.Unlock()
		return snap, nil
	}
	s.setIdentityLocked(sess, identity)
	s.mu.Unlock()

	if identity == "" {
		snap, _ := s.Get(sid)
		return snap, nil
	}
	return s.resolve(ctx, sid, identity)
}

func (s *Store) setIdentityLocked(sess *Session, identity string) {
	sess.Identity = identity
	sess.Profile = nil
	sess.Role = ""
	sess.Loading = identity != ""
	s.emitLocked(sess)
}

// resolve loads the profile for identity and applies it if the session is
// still bound to that identity.
func (s *Store) resolve(ctx context.Context, sid, identity string) (Session, error) {
	var (
		p   *profile.Profile
		err error
	)
	if id, perr := uuid.Parse(identity); perr == nil {
		p, err = s.profiles.Get(ctx, id)
	} else {
		err = profile.ErrNotFound
	}
	if errors.Is(err, profile.ErrNotFound) {
		s.logger.Info().Str("session_id", sid).Str("identity", identity).Msg("no profile found for identity")
		p, err = nil, nil
	}
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sid).Msg("fetch profile failed")
		s.notices.OperationFailed(sid, "fetch profile", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(sid)
	if sess.Identity != identity {
		return *sess, nil
	}
	sess.Profile = p
	sess.Role = ""
	if p != nil {
		sess.Role = p.Role
	}
	sess.Loading = false
	s.emitLocked(sess)
	return *sess, err
}

// CheckAvailability pings the identity provider and, the first time it is
// down for this session, posts the service-unavailable notice.
func (s *Store) CheckAvailability(ctx context.Context, sid string) bool {
	if err := s.provider.Ping(ctx); err != nil {
		s.reportUnavailable(ctx, sid, "sign in/sign up", err)
		return false
	}
	return true
}

func (s *Store) reportUnavailable(ctx context.Context, sid, operation string, cause error) {
	s.logger.Warn().Err(cause).Str("session_id", sid).Msg("identity provider unavailable")
	if _, err := s.notices.ServiceUnavailable(ctx, sid, AuthService, operation); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sid).Msg("service unavailable notice skipped")
	}
}

func (s *Store) authFailed(ctx context.Context, sid, operation string, err error) error {
	if auth.IsUnavailable(err) {
		s.reportUnavailable(ctx, sid, operation, err)
		return err
	}
	s.logger.Warn().Err(err).Str("session_id", sid).Str("operation", operation).Msg("auth operation failed")
	s.notices.OperationFailed(sid, operation, err)
	return err
}

// SignIn authenticates with the provider and binds the identity to sid.
func (s *Store) SignIn(ctx context.Context, sid, email, password string) (*auth.Grant, Session, error) {
	grant, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, Session{}, s.authFailed(ctx, sid, "sign in", err)
	}
	sess, err := s.Observe(ctx, sid, grant.IdentityID.String())
	return grant, sess, err
}

// SignUp creates the identity and its profile, then binds it to sid. Only
// patient and surgeon may be chosen here.
func (s *Store) SignUp(ctx context.Context, sid, email, password, fullName, role string) (*auth.Grant, Session, error) {
	if !profile.SelfServiceRoles[role] {
		return nil, Session{}, ErrInvalidRole
	}
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, Session{}, ErrNameRequired
	}

	grant, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		return nil, Session{}, s.authFailed(ctx, sid, "sign up", err)
	}
	p := &profile.Profile{ID: grant.IdentityID, Email: grant.Email, FullName: fullName, Role: role}
	if err := s.profiles.CreateSelf(ctx, p); err != nil {
		s.notices.OperationFailed(sid, "sign up", err)
		return grant, Session{}, fmt.Errorf("create profile: %w", err)
	}
	sess, err := s.Observe(ctx, sid, grant.IdentityID.String())
	return grant, sess, err
}

// SignOut invalidates the bearer token and clears the session identity.
func (s *Store) SignOut(ctx context.Context, sid string, token auth.TokenInfo) (Session, error) {
	if err := s.provider.SignOut(ctx, token.ID, token.ExpiresAt); err != nil {
		return Session{}, s.authFailed(ctx, sid, "sign out", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(sid)
	s.setIdentityLocked(sess, "")
	return *sess, nil
}

// GetProfile returns the profile record for an identity.
func (s *Store) GetProfile(ctx context.Context, id uuid.UUID) (*profile.Profile, error) {
	return s.profiles.Get(ctx, id)
}

// ProfileChanged re-resolves every session bound to id.
func (s *Store) ProfileChanged(ctx context.Context, id uuid.UUID) {
	identity := id.String()
	s.mu.Lock()
	var sids []string
	for sid, sess := range s.sessions {
		if sess.Identity == identity {
			sids = append(sids, sid)
		}
	}
	s.mu.Unlock()

	for _, sid := range sids {
		if _, err := s.resolve(ctx, sid, identity); err != nil {
			s.logger.Warn().Err(err).Str("session_id", sid).Msg("profile refresh failed")
		}
	}
}
