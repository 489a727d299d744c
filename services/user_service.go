package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"meetupStreakAPI/internal/store"
)

// UserService maps auth subjects to member ids. Resolved ids never change,
// so they are kept for the life of the process.
type UserService struct {
	users store.UserStore

	mu    sync.RWMutex
	known map[string]uuid.UUID
}

func NewUserService(users store.UserStore) *UserService {
	return &UserService{
		users: users,
		known: make(map[string]uuid.UUID),
	}
}

func (s *UserService) ResolveMemberID(ctx context.Context, subject string) (uuid.UUID, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return uuid.Nil, errors.New("empty auth subject")
	}

	s.mu.RLock()
	id, ok := s.known[subject]
	s.mu.RUnlock()
	if ok {
		return id, nil
	}

	id, err := s.users.ResolveUserID(ctx, subject)
	if err != nil {
		return uuid.Nil, err
	}

	s.mu.Lock()
	s.known[subject] = id
	s.mu.Unlock()
	return id, nil
}
