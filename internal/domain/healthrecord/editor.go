package healthrecord

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrNoDraft      = errors.New("no draft is open")
	ErrKindMismatch = errors.New("record does not match draft kind")
	ErrUnknownKind  = errors.New("unknown record kind")
)

// Refresher reloads the health profile after a successful save.
type Refresher func(ctx context.Context) (*HealthProfile, error)

// Editor owns the single open draft of one dashboard session. Mutations are
// applied in call order; Save runs its store call without holding the lock.
type Editor struct {
	mu        sync.Mutex
	sessionID string
	patientID uuid.UUID
	stores    Stores
	refresh   Refresher
	logger    zerolog.Logger

	draft  Draft
	gen    uint64
	latest *HealthProfile
}

func NewEditor(sessionID string, patientID uuid.UUID, stores Stores, refresh Refresher, logger zerolog.Logger) *Editor {
	return &Editor{
		sessionID: sessionID,
		patientID: patientID,
		stores:    stores,
		refresh:   refresh,
		logger:    logger.With().Str("component", "editor").Str("session_id", sessionID).Logger(),
	}
}

func (e *Editor) PatientID() uuid.UUID { return e.patientID }

// Open starts a draft, discarding any draft that was open. A nil existing
// record opens in create mode.
func (e *Editor) Open(kind Kind, existing Record) (Draft, error) {
	d, err := NewDraft(kind, existing)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.draft = d
	e.gen++
	return d.clone(), nil
}

func (e *Editor) UpdateField(name, raw string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.draft == nil {
		return ErrNoDraft
	}
	return e.draft.Set(name, raw)
}

// UpdateFields applies several raw values at once. Nothing is applied if
// any name is unknown.
func (e *Editor) UpdateFields(fields map[string]string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.draft == nil {
		return ErrNoDraft
	}
	known := e.draft.Fields()
	for name := range fields {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownField, name)
		}
	}
	for name, raw := range fields {
		if err := e.draft.Set(name, raw); err != nil {
			return err
		}
	}
	return nil
}

// Close discards the open draft, if any.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.draft = nil
	e.gen++
}

// Current returns a copy of the open draft.
func (e *Editor) Current() (Draft, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.draft == nil {
		return nil, false
	}
	return e.draft.clone(), true
}

// Save writes the draft as it is when Save is called. On success it runs the
// refresher and closes the draft, unless another draft was opened or the
// draft was closed meanwhile. On failure the draft stays open and untouched.
func (e *Editor) Save(ctx context.Context) error {
	e.mu.Lock()
	if e.draft == nil {
		e.mu.Unlock()
		return ErrNoDraft
	}
	snapshot := e.draft.clone()
	gen := e.gen
	e.mu.Unlock()

	if err := snapshot.persist(ctx, e.stores, e.patientID); err != nil {
		e.logger.Error().Err(err).
			Str("kind", string(snapshot.Kind())).
			Bool("editing", snapshot.Editing()).
			Msg("error saving record")
		return fmt.Errorf("save %s: %w", snapshot.Kind(), err)
	}

	var latest *HealthProfile
	if e.refresh != nil {
		hp, err := e.refresh(ctx)
		if err != nil {
			e.logger.Warn().Err(err).Msg("refresh after save failed")
		}
		latest = hp
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if latest != nil {
		e.latest = latest
	}
	if e.gen == gen {
		e.draft = nil
		e.gen++
	}
	return nil
}

// Latest returns the health profile loaded by the last successful refresh.
func (e *Editor) Latest() *HealthProfile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latest
}

// View is the serializable editor state.
type View struct {
	Open    bool              `json:"open"`
	Kind    Kind              `json:"kind,omitempty"`
	Editing bool              `json:"editing"`
	Title   string            `json:"title,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	Order   []string          `json:"field_order,omitempty"`
}

func ViewOf(d Draft) View {
	if d == nil {
		return View{}
	}
	action := "Add"
	if d.Editing() {
		action = "Edit"
	}
	return View{
		Open:    true,
		Kind:    d.Kind(),
		Editing: d.Editing(),
		Title:   action + " " + d.Kind().Label(),
		Fields:  d.Fields(),
		Order:   fieldOrder(d),
	}
}

func fieldOrder(d Draft) []string {
	switch d.(type) {
	case *VitalsDraft:
		return vitalsFields
	case *SurgeryDraft:
		return surgeryFields
	case *PersonalDraft:
		return personalFields
	}
	return nil
}

// View returns the state of the open draft.
func (e *Editor) View() View {
	d, _ := e.Current()
	return ViewOf(d)
}
