package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surgicast/surgicast/internal/domain/profile"
	"github.com/surgicast/surgicast/internal/platform/auth"
	"github.com/surgicast/surgicast/internal/platform/notice"
)

// -- Fakes --

type fakeProvider struct {
	mu        sync.Mutex
	users     map[string]string // email -> password
	ids       map[string]uuid.UUID
	pingErr   error
	revoked   []string
	signInErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{users: map[string]string{}, ids: map[string]uuid.UUID{}}
}

func (f *fakeProvider) grant(email string) *auth.Grant {
	return &auth.Grant{
		IdentityID: f.ids[email],
		Email:      email,
		Token:      "token-" + email,
		TokenID:    uuid.NewString(),
		ExpiresAt:  time.Now().Add(time.Hour),
	}
}

func (f *fakeProvider) SignIn(_ context.Context, email, password string) (*auth.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	pw, ok := f.users[email]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	if pw != password {
		return nil, auth.ErrWrongPassword
	}
	return f.grant(email), nil
}

func (f *fakeProvider) SignUp(_ context.Context, email, password string) (*auth.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[email]; ok {
		return nil, auth.ErrEmailInUse
	}
	f.users[email] = password
	f.ids[email] = uuid.New()
	return f.grant(email), nil
}

func (f *fakeProvider) SignOut(_ context.Context, tokenID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, tokenID)
	return nil
}

func (f *fakeProvider) Ping(context.Context) error { return f.pingErr }

type fakeProfiles struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*profile.Profile
	getErr error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{byID: map[uuid.UUID]*profile.Profile{}}
}

func (f *fakeProfiles) Get(_ context.Context, id uuid.UUID) (*profile.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.byID[id]
	if !ok {
		return nil, profile.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) CreateSelf(_ context.Context, p *profile.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.byID[p.ID] = &cp
	return nil
}

func (f *fakeProfiles) put(id uuid.UUID, role string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[id] = &profile.Profile{ID: id, Email: id.String() + "@example.com", FullName: "Test " + role, Role: role}
}

type testEnv struct {
	store    *Store
	provider *fakeProvider
	profiles *fakeProfiles
	notices  *notice.Center
}

func newTestEnv() *testEnv {
	provider := newFakeProvider()
	profiles := newFakeProfiles()
	notices := notice.NewCenter(notice.NewMemoryFlags(), zerolog.Nop())
	return &testEnv{
		store:    NewStore(provider, profiles, notices, zerolog.Nop()),
		provider: provider,
		profiles: profiles,
		notices:  notices,
	}
}

// -- Tests --

func TestStore_ObserveResolvesRole(t *testing.T) {
	env := newTestEnv()
	id := uuid.New()
	env.profiles.put(id, profile.RoleSurgeon)

	var snaps []Session
	env.store.Subscribe(func(s Session) { snaps = append(snaps, s) })

	sess, err := env.store.Observe(context.Background(), "s1", id.String())
	require.NoError(t, err)
	assert.Equal(t, profile.RoleSurgeon, sess.Role)
	assert.False(t, sess.Loading)
	require.NotNil(t, sess.Profile)

	// created, loading, resolved
	require.Len(t, snaps, 3)
	assert.Equal(t, "", snaps[0].Identity)
	assert.True(t, snaps[1].Loading)
	assert.Equal(t, "", snaps[1].Role, "role stays empty while loading")
	assert.Equal(t, profile.RoleSurgeon, snaps[2].Role)
}

func TestStore_ObserveSameIdentityIsQuiet(t *testing.T) {
	env := newTestEnv()
	id := uuid.New()
	env.profiles.put(id, profile.RolePatient)
	_, err := env.store.Observe(context.Background(), "s1", id.String())
	require.NoError(t, err)

	calls := 0
	env.store.Subscribe(func(Session) { calls++ })
	_, err = env.store.Observe(context.Background(), "s1", id.String())
	require.NoError(t, err)
	assert.Equal(t, 0, calls)
}

func TestStore_ObserveUnknownProfile(t *testing.T) {
	env := newTestEnv()
	sess, err := env.store.Observe(context.Background(), "s1", uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, sess.Profile)
	assert.Equal(t, "", sess.Role)
	assert.False(t, sess.Loading)

	sess, err = env.store.Observe(context.Background(), "s2", "external|not-a-uuid")
	require.NoError(t, err)
	assert.Equal(t, "", sess.Role)
}

func TestStore_ObserveProfileError(t *testing.T) {
	env := newTestEnv()
	env.profiles.getErr = errors.New("db down")

	sess, err := env.store.Observe(context.Background(), "s1", uuid.NewString())
	assert.Error(t, err)
	assert.False(t, sess.Loading)
	assert.Equal(t, "", sess.Role)

	notices := env.notices.Drain("s1")
	require.Len(t, notices, 1)
	assert.Equal(t, "Fetch profile Failed", notices[0].Title)
}

func TestStore_ObserveSwitchIdentity(t *testing.T) {
	env := newTestEnv()
	patient, admin := uuid.New(), uuid.New()
	env.profiles.put(patient, profile.RolePatient)
	env.profiles.put(admin, profile.RoleAdmin)

	sess, _ := env.store.Observe(context.Background(), "s1", patient.String())
	assert.Equal(t, profile.RolePatient, sess.Role)
	sess, _ = env.store.Observe(context.Background(), "s1", admin.String())
	assert.Equal(t, profile.RoleAdmin, sess.Role)
	sess, _ = env.store.Observe(context.Background(), "s1", "")
	assert.Equal(t, "", sess.Role)
	assert.Nil(t, sess.Profile)
}

func TestStore_SignUpCreatesProfile(t *testing.T) {
	env := newTestEnv()
	grant, sess, err := env.store.SignUp(context.Background(), "s1", "jane@example.com", "secret1", " Jane Doe ", profile.RolePatient)
	require.NoError(t, err)
	assert.Equal(t, grant.IdentityID.String(), sess.Identity)
	assert.Equal(t, profile.RolePatient, sess.Role)
	require.NotNil(t, sess.Profile)
	assert.Equal(t, "Jane Doe", sess.Profile.FullName)
}

func TestStore_SignUpRejectsAdminAndBlankName(t *testing.T) {
	env := newTestEnv()
	_, _, err := env.store.SignUp(context.Background(), "s1", "a@b.co", "secret1", "A", profile.RoleAdmin)
	assert.ErrorIs(t, err, ErrInvalidRole)
	_, _, err = env.store.SignUp(context.Background(), "s1", "a@b.co", "secret1", "  ", profile.RolePatient)
	assert.ErrorIs(t, err, ErrNameRequired)
	assert.Empty(t, env.provider.users, "nothing reaches the provider")
}

func TestStore_SignInErrorPostsNotice(t *testing.T) {
	env := newTestEnv()
	_, _, err := env.store.SignIn(context.Background(), "s1", "nobody@example.com", "x")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	notices := env.notices.Drain("s1")
	require.Len(t, notices, 1)
	assert.Equal(t, "Sign in Failed", notices[0].Title)
	assert.Equal(t, notice.KindError, notices[0].Kind)
}

func TestStore_SignInUnavailableShowsNoticeOnce(t *testing.T) {
	env := newTestEnv()
	env.provider.signInErr = auth.ErrUnavailable

	for i := 0; i < 3; i++ {
		_, _, err := env.store.SignIn(context.Background(), "s1", "a@b.co", "secret1")
		assert.True(t, auth.IsUnavailable(err))
	}
	notices := env.notices.Drain("s1")
	require.Len(t, notices, 1)
	assert.Equal(t, "Authentication Service Unavailable", notices[0].Title)
}

func TestStore_SignOut(t *testing.T) {
	env := newTestEnv()
	grant, _, err := env.store.SignUp(context.Background(), "s1", "jane@example.com", "secret1", "Jane", profile.RoleSurgeon)
	require.NoError(t, err)

	sess, err := env.store.SignOut(context.Background(), "s1", auth.TokenInfo{ID: grant.TokenID, ExpiresAt: grant.ExpiresAt})
	require.NoError(t, err)
	assert.Equal(t, "", sess.Identity)
	assert.Equal(t, "", sess.Role)
	assert.Equal(t, []string{grant.TokenID}, env.provider.revoked)
}

func TestStore_CheckAvailability(t *testing.T) {
	env := newTestEnv()
	assert.True(t, env.store.CheckAvailability(context.Background(), "s1"))
	assert.Empty(t, env.notices.Drain("s1"))

	env.provider.pingErr = auth.ErrUnavailable
	assert.False(t, env.store.CheckAvailability(context.Background(), "s1"))
	assert.False(t, env.store.CheckAvailability(context.Background(), "s1"))
	assert.Len(t, env.notices.Drain("s1"), 1)
}

func TestStore_ProfileChanged(t *testing.T) {
	env := newTestEnv()
	id := uuid.New()
	env.profiles.put(id, profile.RolePatient)
	_, _ = env.store.Observe(context.Background(), "s1", id.String())
	_, _ = env.store.Observe(context.Background(), "s2", id.String())

	env.profiles.byID[id].FullName = "Renamed"
	env.store.ProfileChanged(context.Background(), id)

	for _, sid := range []string{"s1", "s2"} {
		sess, ok := env.store.Get(sid)
		require.True(t, ok)
		assert.Equal(t, "Renamed", sess.Profile.FullName)
	}
}

func TestStore_Unsubscribe(t *testing.T) {
	env := newTestEnv()
	calls := 0
	cancel := env.store.Subscribe(func(Session) { calls++ })
	_, _ = env.store.Observe(context.Background(), "s1", "")
	cancel()
	_, _ = env.store.Observe(context.Background(), "s2", "")
	assert.Equal(t, 1, calls)
}

func TestStore_SweepDropsIdleSessions(t *testing.T) {
	env := newTestEnv()
	base := time.Now()
	env.store.now = func() time.Time { return base }

	_, err := env.store.Observe(context.Background(), "idle", "")
	require.NoError(t, err)
	env.notices.Post("idle", notice.Notice{Kind: notice.KindInfo, Title: "stale"})

	env.store.now = func() time.Time { return base.Add(20 * time.Minute) }
	_, err = env.store.Observe(context.Background(), "active", "")
	require.NoError(t, err)

	var expired []string
	env.store.Subscribe(func(s Session) {
		if s.Expired {
			expired = append(expired, s.ID)
		}
	})

	env.store.now = func() time.Time { return base.Add(31 * time.Minute) }
	assert.Equal(t, 1, env.store.Sweep(30*time.Minute))
	assert.Equal(t, []string{"idle"}, expired)
	assert.Equal(t, 1, env.store.Len())

	_, ok := env.store.Get("idle")
	assert.False(t, ok)
	_, ok = env.store.Get("active")
	assert.True(t, ok)
	assert.Empty(t, env.notices.Drain("idle"), "pending notices go with the session")
}

func TestStore_ObserveKeepsSessionAlive(t *testing.T) {
	env := newTestEnv()
	base := time.Now()
	env.store.now = func() time.Time { return base }
	_, err := env.store.Observe(context.Background(), "s1", "")
	require.NoError(t, err)

	env.store.now = func() time.Time { return base.Add(25 * time.Minute) }
	_, err = env.store.Observe(context.Background(), "s1", "")
	require.NoError(t, err)

	env.store.now = func() time.Time { return base.Add(50 * time.Minute) }
	assert.Equal(t, 0, env.store.Sweep(30*time.Minute))
	assert.Equal(t, 1, env.store.Len())
}

func TestStore_RunSweeperStopsWithContext(t *testing.T) {
	env := newTestEnv()
	_, err := env.store.Observe(context.Background(), "s1", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		env.store.RunSweeper(ctx, time.Nanosecond, time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return env.store.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
