// Package memory keeps everything in process memory.
// Used by service tests and by the dev server when no database is configured.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/nkiryanov/sessionkeeper/internal/models"
	"github.com/nkiryanov/sessionkeeper/internal/repository"
)

type loginFailures struct {
	windowStart int64 // unix nano
	count       int
}

type data struct {
	principals map[string]models.Principal
	tokens     map[uuid.UUID]models.RenewalToken
	byHash     map[string]uuid.UUID
	failures   map[string]loginFailures
	events     []models.SecurityEvent
}

func newData() *data {
	return &data{
		principals: make(map[string]models.Principal),
		tokens:     make(map[uuid.UUID]models.RenewalToken),
		byHash:     make(map[string]uuid.UUID),
		failures:   make(map[string]loginFailures),
	}
}

func (d *data) clone() *data {
	return &data{
		principals: maps.Clone(d.principals),
		tokens:     maps.Clone(d.tokens),
		byHash:     maps.Clone(d.byHash),
		failures:   maps.Clone(d.failures),
		events:     append([]models.SecurityEvent(nil), d.events...),
	}
}

// Single lock guards all data. A transaction holds it until the end,
// so nobody sees intermediate state and rollback never loses foreign writes
type state struct {
	mu   sync.Mutex
	data *data
}

func (st *state) lock(inTx bool) func() {
	if inTx {
		return func() {}
	}
	st.mu.Lock()
	return st.mu.Unlock
}

type Storage struct {
	st   *state
	inTx bool
}

func NewStorage() *Storage {
	return &Storage{st: &state{data: newData()}}
}

func (s *Storage) Principal() repository.PrincipalRepo {
	return &PrincipalRepo{st: s.st, inTx: s.inTx}
}

func (s *Storage) RenewalToken() repository.RenewalTokenRepo {
	return &RenewalTokenRepo{st: s.st, inTx: s.inTx}
}

func (s *Storage) LoginAttempt() repository.LoginAttemptRepo {
	return &LoginAttemptRepo{st: s.st, inTx: s.inTx}
}

func (s *Storage) SecurityEvent() repository.SecurityEventRepo {
	return &SecurityEventRepo{st: s.st, inTx: s.inTx}
}

// Transactions are serialized. State is restored from snapshot if fn fails
// Nested calls join the outer transaction
func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) error {
	if s.inTx {
		return fn(s)
	}

	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	snapshot := s.st.data.clone()

	err := fn(&Storage{st: s.st, inTx: true})
	if err != nil {
		s.st.data = snapshot
	}

	return err
}

// Saved security events in order of saving
func (s *Storage) Events() []models.SecurityEvent {
	defer s.st.lock(s.inTx)()
	return append([]models.SecurityEvent(nil), s.st.data.events...)
}
