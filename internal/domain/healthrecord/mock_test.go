package healthrecord

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// -- Mock Repositories --

type mockDetailsRepo struct {
	mu      sync.Mutex
	byUser  map[uuid.UUID]*PatientDetails
	inserts int
	updates int
	failErr error
}

func newMockDetailsRepo() *mockDetailsRepo {
	return &mockDetailsRepo{byUser: make(map[uuid.UUID]*PatientDetails)}
}

func (m *mockDetailsRepo) GetByUser(_ context.Context, userID uuid.UUID) (*PatientDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.byUser[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockDetailsRepo) Insert(_ context.Context, d *PatientDetails) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	if _, ok := m.byUser[d.UserID]; ok {
		return errors.New("duplicate key value violates unique constraint")
	}
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	cp := *d
	m.byUser[d.UserID] = &cp
	m.inserts++
	return nil
}

func (m *mockDetailsRepo) UpdateByUser(_ context.Context, d *PatientDetails) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	old, ok := m.byUser[d.UserID]
	if !ok {
		return ErrNotFound
	}
	d.ID = old.ID
	cp := *d
	m.byUser[d.UserID] = &cp
	m.updates++
	return nil
}

type mockVitalsRepo struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]*VitalSigns
	inserts []*VitalSigns
	updates []*VitalSigns
	failErr error
	// gate, when set, blocks writes until it is closed.
	gate    chan struct{}
	entered chan struct{}
}

func newMockVitalsRepo() *mockVitalsRepo {
	return &mockVitalsRepo{rows: make(map[uuid.UUID]*VitalSigns)}
}

func (m *mockVitalsRepo) wait() {
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.gate != nil {
		<-m.gate
	}
}

func (m *mockVitalsRepo) GetByID(_ context.Context, patientID, id uuid.UUID) (*VitalSigns, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.rows[id]
	if !ok || v.PatientID != patientID {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *mockVitalsRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*VitalSigns, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*VitalSigns
	for _, v := range m.rows {
		if v.PatientID == patientID {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockVitalsRepo) Insert(_ context.Context, v *VitalSigns) error {
	m.wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	v.ID = uuid.New()
	v.CreatedAt = time.Now()
	cp := *v
	m.rows[v.ID] = &cp
	m.inserts = append(m.inserts, &cp)
	return nil
}

func (m *mockVitalsRepo) Update(_ context.Context, v *VitalSigns) error {
	m.wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	old, ok := m.rows[v.ID]
	if !ok || old.PatientID != v.PatientID {
		return ErrNotFound
	}
	v.CreatedAt = old.CreatedAt
	cp := *v
	m.rows[v.ID] = &cp
	m.updates = append(m.updates, &cp)
	return nil
}

func (m *mockVitalsRepo) seed(v *VitalSigns) *VitalSigns {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	cp := *v
	m.rows[v.ID] = &cp
	return v
}

type mockSurgeryRepo struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]*SurgicalHistory
	inserts []*SurgicalHistory
	updates []*SurgicalHistory
}

func newMockSurgeryRepo() *mockSurgeryRepo {
	return &mockSurgeryRepo{rows: make(map[uuid.UUID]*SurgicalHistory)}
}

func (m *mockSurgeryRepo) GetByID(_ context.Context, patientID, id uuid.UUID) (*SurgicalHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok || s.PatientID != patientID {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockSurgeryRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*SurgicalHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*SurgicalHistory
	for _, s := range m.rows {
		if s.PatientID == patientID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SurgeryDate > out[j].SurgeryDate })
	return out, nil
}

func (m *mockSurgeryRepo) Insert(_ context.Context, s *SurgicalHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = uuid.New()
	cp := *s
	m.rows[s.ID] = &cp
	m.inserts = append(m.inserts, &cp)
	return nil
}

func (m *mockSurgeryRepo) Update(_ context.Context, s *SurgicalHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.rows[s.ID]
	if !ok || old.PatientID != s.PatientID {
		return ErrNotFound
	}
	cp := *s
	m.rows[s.ID] = &cp
	m.updates = append(m.updates, &cp)
	return nil
}

type mockStores struct {
	details   *mockDetailsRepo
	vitals    *mockVitalsRepo
	surgeries *mockSurgeryRepo
}

func newMockStores() (Stores, *mockStores) {
	m := &mockStores{
		details:   newMockDetailsRepo(),
		vitals:    newMockVitalsRepo(),
		surgeries: newMockSurgeryRepo(),
	}
	return Stores{Details: m.details, Vitals: m.vitals, Surgeries: m.surgeries}, m
}

func strPtr(s string) *string { return &s }
