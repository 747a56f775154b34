package store

import (
	"context"
	"sync"
	"time"

	"mailauth/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryUserStore is a process-local store with the same semantics as
// MongoUserStore. Records are copied in and out so callers never share state.
type MemoryUserStore struct {
	mu      sync.RWMutex
	byID    map[primitive.ObjectID]models.User
	byEmail map[string]primitive.ObjectID
	now     func() time.Time
}

// NewMemoryUserStore returns an empty store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    make(map[primitive.ObjectID]models.User),
		byEmail: make(map[string]primitive.ObjectID),
		now:     time.Now,
	}
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	user := s.byID[id]
	return &user, nil
}

func (s *MemoryUserStore) FindByID(_ context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.byID[oid]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (s *MemoryUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[user.Email]; exists {
		return ErrDuplicate
	}

	now := s.now().UTC()
	doc := *user
	doc.ID = primitive.NewObjectID()
	doc.Version = 1
	doc.CreatedAt = now
	doc.UpdatedAt = now

	s.byID[doc.ID] = doc
	s.byEmail[doc.Email] = doc.ID
	*user = doc
	return nil
}

func (s *MemoryUserStore) Save(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[user.ID]
	if !ok || current.Version != user.Version {
		return ErrStale
	}
	if current.Email != user.Email {
		if _, taken := s.byEmail[user.Email]; taken {
			return ErrDuplicate
		}
		delete(s.byEmail, current.Email)
		s.byEmail[user.Email] = user.ID
	}

	doc := *user
	doc.Version = user.Version + 1
	doc.UpdatedAt = s.now().UTC()
	s.byID[doc.ID] = doc
	*user = doc
	return nil
}

// Len reports the number of stored users.
func (s *MemoryUserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
