package state

import (
	"context"
	"testing"

	"github.com/lightchain-network/lightchain/identifier"
	"github.com/lightchain-network/lightchain/model"
)

type fakeStore struct {
	calls    int
	snapshot map[identifier.Identifier]snapshotRecord
}

type snapshotRecord struct {
	height   uint64
	accounts map[identifier.Identifier]model.Account
}

func newFakeStore() *fakeStore {
	return &fakeStore{snapshot: make(map[identifier.Identifier]snapshotRecord)}
}

func (f *fakeStore) Accounts(ctx context.Context, blockID identifier.Identifier) (map[identifier.Identifier]model.Account, uint64, error) {
	f.calls++
	rec, ok := f.snapshot[blockID]
	if !ok {
		return nil, 0, nil
	}
	return rec.accounts, rec.height, nil
}

func (f *fakeStore) PutSnapshot(ctx context.Context, blockID identifier.Identifier, height uint64, accounts map[identifier.Identifier]model.Account) error {
	f.snapshot[blockID] = snapshotRecord{height: height, accounts: accounts}
	return nil
}

func TestStateAtBlockIDUnknownBlock(t *testing.T) {
	st, err := New(newFakeStore(), 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	snap, err := st.AtBlockID(context.Background(), identifier.H([]byte("nope")))
	if err != nil {
		t.Fatalf("AtBlockID: %v", err)
	}
	if snap != nil {
		t.Fatal("expected nil snapshot for unknown block")
	}
}

func TestStateCommitThenAtBlockID(t *testing.T) {
	store := newFakeStore()
	st, err := New(store, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	blockID := identifier.H([]byte("block-1"))
	accID := identifier.H([]byte("alice"))
	accounts := map[identifier.Identifier]model.Account{
		accID: {ID: accID, Balance: 50, Stake: 10},
	}

	if err := st.Commit(context.Background(), blockID, 3, accounts); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	snap, err := st.AtBlockID(context.Background(), blockID)
	if err != nil {
		t.Fatalf("AtBlockID: %v", err)
	}
	if snap == nil {
		t.Fatal("expected snapshot after commit")
	}
	if snap.ReferenceBlockHeight() != 3 {
		t.Fatalf("expected height 3, got %d", snap.ReferenceBlockHeight())
	}
	got, ok := snap.Account(accID)
	if !ok || got.Balance != 50 {
		t.Fatalf("expected alice's balance to round-trip, got %+v, ok=%v", got, ok)
	}
}

func TestStateAtBlockIDCachesAfterFirstResolve(t *testing.T) {
	store := newFakeStore()
	st, err := New(store, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	blockID := identifier.H([]byte("block-1"))
	accounts := map[identifier.Identifier]model.Account{
		identifier.H([]byte("alice")): {Balance: 1},
	}
	if err := store.PutSnapshot(context.Background(), blockID, 1, accounts); err != nil {
		t.Fatalf("PutSnapshot: %v", err)
	}

	if _, err := st.AtBlockID(context.Background(), blockID); err != nil {
		t.Fatalf("AtBlockID (first): %v", err)
	}
	if _, err := st.AtBlockID(context.Background(), blockID); err != nil {
		t.Fatalf("AtBlockID (second): %v", err)
	}

	if store.calls != 1 {
		t.Fatalf("expected a single underlying store call due to caching, got %d", store.calls)
	}
}

func TestStateCommitMakesSnapshotImmediatelyCached(t *testing.T) {
	store := newFakeStore()
	st, err := New(store, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	blockID := identifier.H([]byte("block-1"))
	if err := st.Commit(context.Background(), blockID, 1, map[identifier.Identifier]model.Account{}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if _, err := st.AtBlockID(context.Background(), blockID); err != nil {
		t.Fatalf("AtBlockID: %v", err)
	}

	if store.calls != 0 {
		t.Fatalf("expected AtBlockID to hit cache without calling store, got %d calls", store.calls)
	}
}
