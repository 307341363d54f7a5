package license_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fxforge/platform/internal/license"
	"github.com/fxforge/platform/internal/plan"
)

// memStore is an in-memory license.Store used by the service tests.
type memStore struct {
	mu          sync.Mutex
	events      map[string]license.Event // provider:event_id
	licenses    map[uuid.UUID]*license.License
	sessions    map[string]*license.Session // ea_instance_id
	validations []license.ValidationRecord
}

func newMemStore() *memStore {
	return &memStore{
		events:   make(map[string]license.Event),
		licenses: make(map[uuid.UUID]*license.License),
		sessions: make(map[string]*license.Session),
	}
}

func (m *memStore) InsertEvent(_ context.Context, ev license.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ev.Provider + ":" + ev.EventID
	if _, ok := m.events[key]; ok {
		return license.ErrDuplicateEvent
	}
	m.events[key] = ev
	return nil
}

func (m *memStore) InsertLicense(_ context.Context, l *license.License) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.licenses {
		if existing.Key == l.Key {
			return license.ErrDuplicateKey
		}
	}
	cp := *l
	m.licenses[l.ID] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*license.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.licenses[id]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, license.ErrNotFound
}

func (m *memStore) GetByKey(_ context.Context, key string) (*license.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.licenses {
		if l.Key == key {
			cp := *l
			return &cp, nil
		}
	}
	return nil, license.ErrNotFound
}

func (m *memStore) GetByCheckoutID(_ context.Context, provider, checkoutID string) (*license.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.licenses {
		if l.Provider == provider && l.CheckoutID == checkoutID && checkoutID != "" {
			cp := *l
			return &cp, nil
		}
	}
	return nil, license.ErrNotFound
}

func (m *memStore) ListByUser(_ context.Context, userID uuid.UUID) ([]license.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []license.License
	for _, l := range m.licenses {
		if l.UserID == userID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (m *memStore) SetStatus(_ context.Context, id uuid.UUID, status license.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.licenses[id]
	if !ok {
		return license.ErrNotFound
	}
	l.Status = status
	return nil
}

func (m *memStore) BindHardware(_ context.Context, id uuid.UUID, fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.licenses[id]; ok && l.HardwareFingerprint == "" {
		l.HardwareFingerprint = fingerprint
	}
	return nil
}

func (m *memStore) TouchValidation(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.licenses[id]; ok {
		l.ValidationCount++
		l.LastValidatedAt = &at
	}
	return nil
}

func (m *memStore) CountActiveSessions(_ context.Context, licenseID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s.LicenseID == licenseID && s.Active {
			n++
		}
	}
	return n, nil
}

func (m *memStore) ActiveSessionByInstance(_ context.Context, licenseID uuid.UUID, instanceID string) (*license.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[instanceID]; ok && s.LicenseID == licenseID && s.Active {
		cp := *s
		return &cp, nil
	}
	return nil, license.ErrSessionNotFound
}

func (m *memStore) UpsertSession(_ context.Context, s *license.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.EAInstanceID] = &cp
	return nil
}

func (m *memStore) RefreshSession(_ context.Context, token, instanceID string, heartbeat, expiry time.Time) (*license.SessionLicense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[instanceID]
	if !ok || !s.Active || s.Token != token {
		return nil, license.ErrSessionNotFound
	}
	s.LastHeartbeat = heartbeat
	s.ExpiresAt = expiry

	l, ok := m.licenses[s.LicenseID]
	if !ok {
		return nil, license.ErrSessionNotFound
	}
	return &license.SessionLicense{
		Session:          *s,
		LicenseStatus:    l.Status,
		LicenseExpiresAt: l.ExpiresAt,
	}, nil
}

func (m *memStore) DeactivateSession(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.ID == id {
			s.Active = false
		}
	}
	return nil
}

func (m *memStore) DeactivateExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.sessions {
		if s.Active && s.ExpiresAt.Before(now) {
			s.Active = false
			n++
		}
	}
	return n, nil
}

func (m *memStore) RecordValidation(_ context.Context, rec license.ValidationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validations = append(m.validations, rec)
	return nil
}

func (m *memStore) licenseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.licenses)
}

func (m *memStore) lastValidation() license.ValidationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validations[len(m.validations)-1]
}

// memPlans is a map-backed plan.Store.
type memPlans struct {
	plans map[uuid.UUID]plan.Plan
}

func (m *memPlans) Get(_ context.Context, id uuid.UUID) (*plan.Plan, error) {
	if p, ok := m.plans[id]; ok {
		cp := p
		return &cp, nil
	}
	return nil, plan.ErrPlanNotFound
}

func (m *memPlans) ListActive(_ context.Context, eaID uuid.UUID) ([]plan.Plan, error) {
	var out []plan.Plan
	for _, p := range m.plans {
		if p.EAID == eaID && p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}
