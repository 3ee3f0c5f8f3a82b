package dashboard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surgicast/surgicast/internal/domain/healthrecord"
	"github.com/surgicast/surgicast/internal/domain/profile"
	"github.com/surgicast/surgicast/internal/domain/session"
	"github.com/surgicast/surgicast/internal/platform/auth"
	"github.com/surgicast/surgicast/internal/platform/notice"
)

type stubProvider struct{}

func (stubProvider) SignIn(context.Context, string, string) (*auth.Grant, error) {
	return nil, auth.ErrUnavailable
}
func (stubProvider) SignUp(context.Context, string, string) (*auth.Grant, error) {
	return nil, auth.ErrUnavailable
}
func (stubProvider) SignOut(context.Context, string, time.Time) error { return nil }
func (stubProvider) Ping(context.Context) error                       { return nil }

type mapProfiles struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*profile.Profile
}

func (m *mapProfiles) Get(_ context.Context, id uuid.UUID) (*profile.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, profile.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mapProfiles) CreateSelf(_ context.Context, p *profile.Profile) error {
	m.put(p.ID, p.Role)
	return nil
}

func (m *mapProfiles) put(id uuid.UUID, role string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id] = &profile.Profile{ID: id, Email: role + "@example.com", FullName: "Test " + role, Role: role}
}

type fixture struct {
	store    *session.Store
	profiles *mapProfiles
	spaces   *Workspaces
	built    []uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{profiles: &mapProfiles{byID: make(map[uuid.UUID]*profile.Profile)}}
	notices := notice.NewCenter(notice.NewMemoryFlags(), zerolog.Nop())
	f.store = session.NewStore(stubProvider{}, f.profiles, notices, zerolog.Nop())
	factory := func(sid string, pid uuid.UUID) *healthrecord.Editor {
		f.built = append(f.built, pid)
		return healthrecord.NewEditor(sid, pid, healthrecord.Stores{}, nil, zerolog.Nop())
	}
	f.spaces = NewWorkspaces(f.store, factory, zerolog.Nop())
	t.Cleanup(f.spaces.Close)
	return f
}

func (f *fixture) signIn(t *testing.T, sid string, id uuid.UUID) {
	t.Helper()
	_, err := f.store.Observe(context.Background(), sid, id.String())
	require.NoError(t, err)
}

func TestWorkspaces_PatientGetsEditor(t *testing.T) {
	f := newFixture(t)
	pid := uuid.New()
	f.profiles.put(pid, profile.RolePatient)

	f.signIn(t, "s1", pid)

	ed, ok := f.spaces.Editor("s1")
	require.True(t, ok)
	assert.Equal(t, pid, ed.PatientID())
	assert.Equal(t, "patient", f.spaces.Router("s1").State().Role)
	assert.Equal(t, []uuid.UUID{pid}, f.built)
}

func TestWorkspaces_NonPatientHasNoEditor(t *testing.T) {
	f := newFixture(t)
	sid := uuid.New()
	f.profiles.put(sid, profile.RoleSurgeon)

	f.signIn(t, "s1", sid)

	_, ok := f.spaces.Editor("s1")
	assert.False(t, ok)
	assert.Empty(t, f.built)
}

func TestWorkspaces_PatientToAdminResetsTab(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	f.profiles.put(id, profile.RolePatient)
	f.signIn(t, "s1", id)

	f.spaces.Router("s1").SelectTab("health-profile")
	require.Equal(t, "health-profile", f.spaces.Router("s1").ActiveTab())

	f.profiles.put(id, profile.RoleAdmin)
	f.store.ProfileChanged(context.Background(), id)

	st := f.spaces.Router("s1").State()
	assert.Equal(t, "admin", st.Role)
	assert.Equal(t, TabDashboard, st.Active)
	assert.Equal(t, "surgicast", st.View.Name)
	_, ok := f.spaces.Editor("s1")
	assert.False(t, ok, "editor is dropped when the role leaves patient")
}

func TestWorkspaces_IdentitySwitchReplacesEditor(t *testing.T) {
	f := newFixture(t)
	a, b := uuid.New(), uuid.New()
	f.profiles.put(a, profile.RolePatient)
	f.profiles.put(b, profile.RolePatient)

	f.signIn(t, "s1", a)
	first, _ := f.spaces.Editor("s1")
	_, err := first.Open(healthrecord.KindVitals, nil)
	require.NoError(t, err)
	f.spaces.Router("s1").SelectTab("appointments")

	f.signIn(t, "s1", b)

	second, ok := f.spaces.Editor("s1")
	require.True(t, ok)
	assert.NotSame(t, first, second)
	assert.Equal(t, b, second.PatientID())
	assert.False(t, second.View().Open, "draft of the previous identity is not carried over")
	assert.Equal(t, TabDashboard, f.spaces.Router("s1").ActiveTab())
}

func TestWorkspaces_SameSnapshotKeepsTab(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	f.profiles.put(id, profile.RolePatient)
	f.signIn(t, "s1", id)
	f.spaces.Router("s1").SelectTab("find-surgeon")

	f.store.ProfileChanged(context.Background(), id)

	assert.Equal(t, "find-surgeon", f.spaces.Router("s1").ActiveTab())
}

func TestWorkspaces_SessionsAreIsolated(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	f.profiles.put(id, profile.RolePatient)
	f.signIn(t, "s1", id)
	f.signIn(t, "s2", id)

	f.spaces.Router("s1").SelectTab("appointments")

	assert.Equal(t, TabDashboard, f.spaces.Router("s2").ActiveTab())
	e1, _ := f.spaces.Editor("s1")
	e2, _ := f.spaces.Editor("s2")
	assert.NotSame(t, e1, e2)
}

func TestWorkspaces_SweptSessionDropsWorkspace(t *testing.T) {
	f := newFixture(t)
	pid := uuid.New()
	f.profiles.put(pid, profile.RolePatient)
	f.signIn(t, "s1", pid)
	_, err := f.store.Observe(context.Background(), "anon", "")
	require.NoError(t, err)
	require.Equal(t, 2, f.spaces.Len())

	assert.Equal(t, 2, f.store.Sweep(0))
	assert.Equal(t, 0, f.spaces.Len())
	_, ok := f.spaces.Editor("s1")
	assert.False(t, ok)

	f.signIn(t, "s1", pid)
	_, ok = f.spaces.Editor("s1")
	assert.True(t, ok, "a returning session gets a fresh workspace")
}
