// Package sessionStore holds the cached identity of each chat. The balance
// inside is a read cache of the authoritative server-side value: it is only
// ever overwritten with values observed from the backend (login, portfolio
// fetch, accepted investment, deposit/withdraw), never computed locally.
package sessionStore

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hedgie-app/hedgie_tgbot/internal/model"
)

// Persister stores the identity record under a fixed per-chat key.
type Persister interface {
	LoadIdentity(ctx context.Context, chatID int64) (model.Identity, error)
	SaveIdentity(ctx context.Context, chatID int64, identity model.Identity) error
	DeleteIdentity(ctx context.Context, chatID int64) error
}

// Observer is called synchronously after every store mutation, while the
// store lock is held. Observers must not call back into the store.
type Observer func(identity model.Identity, signedIn bool)

// Store holds at most one identity for one chat.
//
// The generation counter guards against stale fetch results: a caller records
// Generation() before a network call and passes it back with the balance; if
// the owner changed in between (sign-out, sign-in as someone else) the write
// is silently dropped.
type Store struct {
	chatID    int64
	persister Persister

	mu        sync.Mutex
	identity  model.Identity
	signedIn  bool
	gen       uint64
	observers []Observer
}

func NewStore(chatID int64, persister Persister) *Store {
	return &Store{chatID: chatID, persister: persister}
}

func (s *Store) ChatID() int64 {
	return s.chatID
}

func (s *Store) Subscribe(obs Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, obs)
}

// Identity returns the cached identity and whether one is held.
func (s *Store) Identity() (model.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity, s.signedIn
}

// Generation returns the current owner generation. Record it before starting
// a fetch whose result will be reconciled back into the store.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// SignIn replaces the held identity wholesale and persists it. On persistence
// failure nothing changes: either the whole identity is replaced or nothing.
func (s *Store) SignIn(ctx context.Context, identity model.Identity) error {
	if err := s.persister.SaveIdentity(ctx, s.chatID, identity); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = identity
	s.signedIn = true
	s.gen++
	s.notifyLocked()
	return nil
}

// SignOut clears the identity and removes the persisted copy. Calling it with
// no active identity is a no-op.
func (s *Store) SignOut(ctx context.Context) error {
	s.mu.Lock()
	if !s.signedIn {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.persister.DeleteIdentity(ctx, s.chatID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = model.Identity{}
	s.signedIn = false
	s.gen++
	s.notifyLocked()
	return nil
}

// ReconcileBalance overwrites only the cached balance with an authoritative
// value observed under generation gen. It is a silent no-op when no identity
// is held or when the owner changed since gen was recorded (a fetch that
// resolved after sign-out or a user switch). Memory-only: background
// reconciliations are not persisted.
func (s *Store) ReconcileBalance(gen uint64, balanceCLP int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.signedIn || gen != s.gen {
		return false
	}

	s.identity.BalanceCLP = balanceCLP
	s.notifyLocked()
	return true
}

// UpdateBalance is the explicit-update variant of ReconcileBalance used by
// user-initiated write paths (accepted investment, deposit, withdraw, direct
// balance query): it also persists the refreshed identity. The in-memory
// value is applied even if persistence fails, since it was observed from the
// authoritative source either way.
func (s *Store) UpdateBalance(ctx context.Context, gen uint64, balanceCLP int64) error {
	if !s.ReconcileBalance(gen, balanceCLP) {
		return nil
	}

	identity, ok := s.Identity()
	if !ok {
		return nil
	}

	return s.persister.SaveIdentity(ctx, s.chatID, identity)
}

// load restores a persisted identity. Called by the Manager exactly once,
// before the store is handed to anyone, so no notification is needed. A chat
// without a restorable identity simply starts signed out.
func (s *Store) load(ctx context.Context) {
	identity, err := s.persister.LoadIdentity(ctx, s.chatID)
	if err != nil {
		slog.Debug("no persisted identity restored", slog.Int64("chatID", s.chatID))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = identity
	s.signedIn = true
}

func (s *Store) notifyLocked() {
	for _, obs := range s.observers {
		obs(s.identity, s.signedIn)
	}
}
