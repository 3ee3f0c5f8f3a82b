package dashboard

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/surgicast/surgicast/internal/domain/healthrecord"
	"github.com/surgicast/surgicast/internal/domain/profile"
	"github.com/surgicast/surgicast/internal/domain/session"
)

// EditorFactory builds the record editor of a patient's dashboard session.
type EditorFactory func(sessionID string, patientID uuid.UUID) *healthrecord.Editor

type workspace struct {
	identity string
	role     string
	router   *Router
	editor   *healthrecord.Editor
}

// Workspaces keeps the router and record editor of every dashboard session,
// following the session store: a new identity resets both, a new role resets
// the router.
type Workspaces struct {
	mu        sync.Mutex
	spaces    map[string]*workspace
	newEditor EditorFactory
	logger    zerolog.Logger
	cancel    func()
}

func NewWorkspaces(store *session.Store, newEditor EditorFactory, logger zerolog.Logger) *Workspaces {
	w := &Workspaces{
		spaces:    make(map[string]*workspace),
		newEditor: newEditor,
		logger:    logger.With().Str("component", "workspaces").Logger(),
	}
	if store != nil {
		w.cancel = store.Subscribe(w.apply)
	}
	return w
}

// Close stops following the session store.
func (w *Workspaces) Close() {
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *Workspaces) getLocked(sid string) *workspace {
	ws, ok := w.spaces[sid]
	if !ok {
		ws = &workspace{router: NewRouter("")}
		w.spaces[sid] = ws
	}
	return ws
}

// apply reconciles the workspace of s.ID with a session snapshot.
func (w *Workspaces) apply(s session.Session) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if s.Expired {
		delete(w.spaces, s.ID)
		return
	}
	ws := w.getLocked(s.ID)

	identityChanged := ws.identity != s.Identity
	roleChanged := ws.role != s.Role
	if !identityChanged && !roleChanged {
		return
	}
	if identityChanged {
		ws.editor = nil
	}
	ws.identity = s.Identity
	ws.role = s.Role
	ws.router.SetRole(s.Role)

	if s.Role != profile.RolePatient {
		ws.editor = nil
		return
	}
	if ws.editor != nil || w.newEditor == nil {
		return
	}
	pid, err := uuid.Parse(s.Identity)
	if err != nil {
		w.logger.Warn().Str("session_id", s.ID).Msg("patient identity is not a uuid, no editor")
		return
	}
	ws.editor = w.newEditor(s.ID, pid)
}

// Len returns the number of live workspaces.
func (w *Workspaces) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.spaces)
}

// Router returns the router of a dashboard session, creating it if needed.
func (w *Workspaces) Router(sid string) *Router {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.getLocked(sid).router
}

// Editor returns the record editor of a patient's dashboard session.
func (w *Workspaces) Editor(sid string) (*healthrecord.Editor, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ws, ok := w.spaces[sid]
	if !ok || ws.editor == nil {
		return nil, false
	}
	return ws.editor, true
}
