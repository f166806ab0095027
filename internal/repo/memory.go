package repo

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/savitara/auth-service/internal/domain"
)

// Memory is an in-process Store used by handler tests and local hacking.
// It mirrors the Mongo implementation's semantics, including unique-email
// enforcement on insert.
type Memory struct {
	mu       sync.Mutex
	byID     map[string]*domain.User
	byEmail  map[string]string
	profiles map[string]map[string]bool // profile collection -> user ids
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		byID:     make(map[string]*domain.User),
		byEmail:  make(map[string]string),
		profiles: make(map[string]map[string]bool),
	}
}

func (m *Memory) FindUserByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, nil
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *Memory) FindUserByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) CreateUser(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byEmail[u.Email]; exists {
		return ErrDuplicateEmail
	}
	u.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.DeviceTokens == nil {
		u.DeviceTokens = []string{}
	}
	cp := *u
	m.byID[u.ID.Hex()] = &cp
	m.byEmail[u.Email] = u.ID.Hex()
	return nil
}

func (m *Memory) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		t := at.UTC()
		u.LastLogin = &t
		u.UpdatedAt = t
	}
	return nil
}

func (m *Memory) UpdateOAuthLink(_ context.Context, email, googleID, picture string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil
	}
	u := m.byID[id]
	u.GoogleID = googleID
	if picture != "" {
		u.ProfilePicture = picture
	}
	t := at.UTC()
	u.LastLogin = &t
	u.UpdatedAt = t
	return nil
}

func (m *Memory) SetUserStatus(_ context.Context, id string, st domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		u.Status = st
		u.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *Memory) HasProfile(_ context.Context, userID string, role domain.Role) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profiles[role.ProfileCollection()][userID], nil
}

func (m *Memory) CreateProfile(_ context.Context, userID string, role domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll := role.ProfileCollection()
	if m.profiles[coll] == nil {
		m.profiles[coll] = make(map[string]bool)
	}
	m.profiles[coll][userID] = true
	return nil
}

func (m *Memory) CountUsers(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.byID)), nil
}

func (m *Memory) DeleteAllUsers(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.byID))
	m.byID = make(map[string]*domain.User)
	m.byEmail = make(map[string]string)
	return n, nil
}

func (m *Memory) Ping(context.Context) error  { return nil }
func (m *Memory) Close(context.Context) error { return nil }
