package magiclink

import (
	"context"
	"sync"
	"time"
)

// Outcome is the remembered result of a sign-in attempt with a token.
// Either User is set (success) or Reason tells why the token was rejected.
type Outcome struct {
	User   *User  `json:"user,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// rejectionReasons maps Outcome.Reason values to errors.
var rejectionReasons = map[string]error{
	"not found":      ErrUnknownToken,
	"already used":   ErrAlreadyUsed,
	"expired":        ErrExpired,
	"user not found": ErrOrphanedLink,
}

// reasonOf returns the Outcome.Reason for err.
func reasonOf(err error) string {
	for reason, e := range rejectionReasons {
		if err == e {
			return reason
		}
	}
	return "invalid"
}

// Err returns the rejection error of the outcome, nil on success.
func (o Outcome) Err() error {
	if o.User != nil {
		return nil
	}
	if err, ok := rejectionReasons[o.Reason]; ok {
		return err
	}
	return ErrInvalidToken
}

// Memo remembers sign-in outcomes per token for a short time, so repeated
// renders of the same sign-in report the same result instead of finding
// the token already used by the first one.
type Memo interface {
	// Get returns the remembered outcome for token.
	Get(ctx context.Context, token string) (o Outcome, ok bool, err error)

	// Put remembers o for token for ttl.
	Put(ctx context.Context, token string, o Outcome, ttl time.Duration) error
}

type memoEntry struct {
	o       Outcome
	expires time.Time
}

// memoryMemo is an in-process Memo.
type memoryMemo struct {
	mu      sync.Mutex
	entries map[string]memoEntry
	now     func() time.Time
}

// NewMemoryMemo returns a Memo keeping outcomes in process memory.
func NewMemoryMemo() Memo {
	return newMemoryMemo(time.Now)
}

func newMemoryMemo(now func() time.Time) *memoryMemo {
	return &memoryMemo{entries: map[string]memoEntry{}, now: now}
}

func (m *memoryMemo) Get(ctx context.Context, token string) (Outcome, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[token]
	if !ok || !m.now().Before(e.expires) {
		return Outcome{}, false, nil
	}
	o := e.o
	if o.User != nil {
		o.User = o.User.clone()
	}
	return o, true, nil
}

func (m *memoryMemo) Put(ctx context.Context, token string, o Outcome, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
	if o.User != nil {
		o.User = o.User.clone()
	}
	m.entries[token] = memoEntry{o: o, expires: now.Add(ttl)}
	return nil
}
