package magiclink

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements UserRepository and MagicLinkRepository in memory.
// Records are copied in and out, callers never share state with the store.
// It's safe to use it concurrently from multiple goroutines.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]*User // by ID
	links      map[string]MagicLink
	tokenBytes int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      map[string]*User{},
		links:      map[string]MagicLink{},
		tokenBytes: DefaultTokenBytes,
	}
}

// userByEmailLocked must be called with mu held.
func (s *MemoryStore) userByEmailLocked(email string) *User {
	for _, u := range s.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

// InsertUser implements UserRepository.
func (s *MemoryStore) InsertUser(ctx context.Context, user *User) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[user.ID]; ok {
		return u.clone(), nil
	}
	if u := s.userByEmailLocked(user.Email); u != nil {
		return u.clone(), nil
	}
	s.users[user.ID] = user.clone()
	return user, nil
}

// UserByID implements UserRepository.
func (s *MemoryStore) UserByID(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u.clone(), nil
}

// UserByEmail implements UserRepository.
func (s *MemoryStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u := s.userByEmailLocked(email)
	if u == nil {
		return nil, ErrNotFound
	}
	return u.clone(), nil
}

// UpdateUser implements UserRepository.
func (s *MemoryStore) UpdateUser(ctx context.Context, user *User) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return nil, ErrNotFound
	}
	if u := s.userByEmailLocked(user.Email); u != nil && u.ID != user.ID {
		return nil, ErrEmailTaken
	}
	s.users[user.ID] = user.clone()
	return user.clone(), nil
}

// DeleteUser implements UserRepository.
func (s *MemoryStore) DeleteUser(ctx context.Context, user *User) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return nil, ErrNotFound
	}
	delete(s.users, user.ID)
	return user, nil
}

// InsertMagicLink implements MagicLinkRepository.
func (s *MemoryStore) InsertMagicLink(ctx context.Context, userID string, expiration time.Duration) (*MagicLink, error) {
	link, err := NewMagicLink(userID, s.tokenBytes, expiration, time.Now())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.links[link.Token] = *link
	return link, nil
}

// MagicLinkByToken implements MagicLinkRepository.
func (s *MemoryStore) MagicLinkByToken(ctx context.Context, token string) (*MagicLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.links[token]
	if !ok {
		return nil, ErrNotFound
	}
	return &link, nil
}

// UpdateMagicLink implements MagicLinkRepository.
func (s *MemoryStore) UpdateMagicLink(ctx context.Context, link *MagicLink) (*MagicLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.links[link.Token]; !ok {
		return nil, ErrNotFound
	}
	s.links[link.Token] = *link
	stored := *link
	return &stored, nil
}

// ConsumeMagicLink implements MagicLinkRepository.
func (s *MemoryStore) ConsumeMagicLink(ctx context.Context, token string, now time.Time) (*MagicLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[token]
	if !ok || link.IsUsed || link.Expired(now) {
		return nil, ErrNotFound
	}
	link.IsUsed = true
	s.links[token] = link
	return &link, nil
}
