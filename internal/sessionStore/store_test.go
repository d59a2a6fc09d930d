package sessionStore

import (
	"context"
	"errors"
	"testing"

	"github.com/hedgie-app/hedgie_tgbot/internal/model"
)

type fakePersister struct {
	records   map[int64]model.Identity
	saveErr   error
	deleteErr error
	saveCalls int
}

func newFakePersister() *fakePersister {
	return &fakePersister{records: make(map[int64]model.Identity)}
}

func (p *fakePersister) LoadIdentity(_ context.Context, chatID int64) (model.Identity, error) {
	identity, ok := p.records[chatID]
	if !ok {
		return model.Identity{}, errors.New("not found")
	}
	return identity, nil
}

func (p *fakePersister) SaveIdentity(_ context.Context, chatID int64, identity model.Identity) error {
	p.saveCalls++
	if p.saveErr != nil {
		return p.saveErr
	}
	p.records[chatID] = identity
	return nil
}

func (p *fakePersister) DeleteIdentity(_ context.Context, chatID int64) error {
	if p.deleteErr != nil {
		return p.deleteErr
	}
	delete(p.records, chatID)
	return nil
}

func TestSignInReplacesIdentityAndPersists(t *testing.T) {
	p := newFakePersister()
	store := NewStore(1, p)

	identity := model.Identity{ID: 42, Name: "Ana", BalanceCLP: 1000000}
	if err := store.SignIn(context.Background(), identity); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	got, ok := store.Identity()
	if !ok {
		t.Fatal("expected signed-in store")
	}
	if got != identity {
		t.Errorf("Identity() = %+v, want %+v", got, identity)
	}

	if persisted := p.records[1]; persisted != identity {
		t.Errorf("persisted identity = %+v, want %+v", persisted, identity)
	}
}

func TestSignInPersistFailureChangesNothing(t *testing.T) {
	p := newFakePersister()
	p.saveErr = errors.New("redis down")
	store := NewStore(1, p)

	err := store.SignIn(context.Background(), model.Identity{ID: 42})
	if err == nil {
		t.Fatal("expected error")
	}

	if _, ok := store.Identity(); ok {
		t.Error("store should stay signed out after persist failure")
	}
}

func TestSignOutIsIdempotent(t *testing.T) {
	p := newFakePersister()
	store := NewStore(1, p)

	if err := store.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut on empty store: %v", err)
	}

	_ = store.SignIn(context.Background(), model.Identity{ID: 42, BalanceCLP: 500})
	if err := store.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}

	if _, ok := store.Identity(); ok {
		t.Error("identity should be cleared")
	}
	if _, ok := p.records[1]; ok {
		t.Error("persisted identity should be deleted")
	}

	if err := store.SignOut(context.Background()); err != nil {
		t.Fatalf("second SignOut: %v", err)
	}
}

func TestReconcileBalanceNoOpWhenSignedOut(t *testing.T) {
	store := NewStore(1, newFakePersister())

	gen := store.Generation()
	if store.ReconcileBalance(gen, 100000) {
		t.Error("reconcile against an empty store should be dropped")
	}
}

func TestReconcileBalanceDropsStaleGeneration(t *testing.T) {
	p := newFakePersister()
	store := NewStore(1, p)

	_ = store.SignIn(context.Background(), model.Identity{ID: 42, BalanceCLP: 1000000})

	// a fetch started under the old owner...
	staleGen := store.Generation()

	// ...resolves only after the user switched accounts
	_ = store.SignOut(context.Background())
	_ = store.SignIn(context.Background(), model.Identity{ID: 77, BalanceCLP: 300000})

	if store.ReconcileBalance(staleGen, 999999) {
		t.Error("stale reconcile should be dropped")
	}

	got, _ := store.Identity()
	if got.BalanceCLP != 300000 {
		t.Errorf("balance = %d, want untouched 300000", got.BalanceCLP)
	}
}

func TestReconcileBalanceOverwritesCurrentGeneration(t *testing.T) {
	p := newFakePersister()
	store := NewStore(1, p)

	_ = store.SignIn(context.Background(), model.Identity{ID: 42, BalanceCLP: 1000000})
	savesBefore := p.saveCalls

	gen := store.Generation()
	if !store.ReconcileBalance(gen, 950000) {
		t.Fatal("reconcile should be applied")
	}

	got, _ := store.Identity()
	if got.BalanceCLP != 950000 {
		t.Errorf("balance = %d, want 950000", got.BalanceCLP)
	}

	if p.saveCalls != savesBefore {
		t.Error("ReconcileBalance must not persist")
	}
}

func TestUpdateBalancePersists(t *testing.T) {
	p := newFakePersister()
	store := NewStore(1, p)

	_ = store.SignIn(context.Background(), model.Identity{ID: 42, BalanceCLP: 1000000})

	gen := store.Generation()
	if err := store.UpdateBalance(context.Background(), gen, 0); err != nil {
		t.Fatalf("UpdateBalance: %v", err)
	}

	got, _ := store.Identity()
	if got.BalanceCLP != 0 {
		t.Errorf("balance = %d, want 0", got.BalanceCLP)
	}

	if p.records[1].BalanceCLP != 0 {
		t.Errorf("persisted balance = %d, want 0", p.records[1].BalanceCLP)
	}
}

func TestUpdateBalanceKeepsMemoryOnPersistFailure(t *testing.T) {
	p := newFakePersister()
	store := NewStore(1, p)

	_ = store.SignIn(context.Background(), model.Identity{ID: 42, BalanceCLP: 1000000})

	p.saveErr = errors.New("redis down")
	gen := store.Generation()
	if err := store.UpdateBalance(context.Background(), gen, 400000); err == nil {
		t.Fatal("expected persist error")
	}

	got, _ := store.Identity()
	if got.BalanceCLP != 400000 {
		t.Errorf("balance = %d, want in-memory 400000 despite persist failure", got.BalanceCLP)
	}
}

func TestObserverNotifiedSynchronously(t *testing.T) {
	store := NewStore(1, newFakePersister())

	var notified []int64
	store.Subscribe(func(identity model.Identity, signedIn bool) {
		if signedIn {
			notified = append(notified, identity.BalanceCLP)
		}
	})

	_ = store.SignIn(context.Background(), model.Identity{ID: 42, BalanceCLP: 100})
	store.ReconcileBalance(store.Generation(), 50)

	if len(notified) != 2 || notified[0] != 100 || notified[1] != 50 {
		t.Errorf("notifications = %v, want [100 50]", notified)
	}
}

func TestManagerRestoresPersistedIdentity(t *testing.T) {
	p := newFakePersister()
	p.records[7] = model.Identity{ID: 42, Name: "Ana", BalanceCLP: 800000}

	m := NewManager(p)

	store := m.Store(context.Background(), 7)
	identity, ok := store.Identity()
	if !ok {
		t.Fatal("expected restored identity")
	}
	if identity.BalanceCLP != 800000 {
		t.Errorf("restored balance = %d, want 800000", identity.BalanceCLP)
	}

	if m.Store(context.Background(), 7) != store {
		t.Error("same chat must get the same store")
	}

	if got := len(m.Snapshot()); got != 1 {
		t.Errorf("Snapshot() len = %d, want 1", got)
	}
}
