package assigner

import (
	"testing"

	"github.com/lightchain-network/lightchain/identifier"
	"github.com/lightchain-network/lightchain/model"
	"github.com/lightchain-network/lightchain/state"
)

func testSnapshot(t *testing.T, numStaked, numUnstaked int) *state.Snapshot {
	t.Helper()
	accounts := make(map[identifier.Identifier]model.Account)
	for i := 0; i < numStaked; i++ {
		id := identifier.H([]byte{byte('s'), byte(i)})
		accounts[id] = model.Account{ID: id, Stake: 100}
	}
	for i := 0; i < numUnstaked; i++ {
		id := identifier.H([]byte{byte('u'), byte(i)})
		accounts[id] = model.Account{ID: id, Stake: 0}
	}
	return state.NewSnapshot(identifier.H([]byte("block")), 1, accounts)
}

func TestAssignReturnsExactlyK(t *testing.T) {
	a, err := New(1, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	snap := testSnapshot(t, 5, 3)
	entityID := identifier.H([]byte("entity-1"))

	assignment, err := a.Assign(entityID, snap, 3)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if assignment.Len() != 3 {
		t.Fatalf("expected 3 ids, got %d", assignment.Len())
	}
}

func TestAssignIsDeterministic(t *testing.T) {
	a, err := New(1, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	snap := testSnapshot(t, 6, 0)
	entityID := identifier.H([]byte("entity-1"))

	first, err := a.Assign(entityID, snap, 3)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}

	b, err := New(1, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	second, err := b.Assign(entityID, snap, 3)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}

	for id := range first.ids {
		if !second.Has(id) {
			t.Fatalf("assignment differs between independent assigners for the same inputs: %s missing", id)
		}
	}
}

func TestAssignExcludesUnstakedAccounts(t *testing.T) {
	a, err := New(50, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	unstakedID := identifier.H([]byte{'u', 0})
	snap := testSnapshot(t, 2, 1)
	entityID := identifier.H([]byte("entity-2"))

	assignment, err := a.Assign(entityID, snap, 2)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if assignment.Has(unstakedID) {
		t.Fatal("unstaked account must never be assigned")
	}
}

func TestAssignErrorsWhenKExceedsStakedPool(t *testing.T) {
	a, err := New(1, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	snap := testSnapshot(t, 2, 0)

	if _, err := a.Assign(identifier.H([]byte("entity")), snap, 5); err == nil {
		t.Fatal("expected error when k exceeds staked pool size")
	}
}

func TestAssignDifferentEntitiesCanYieldDifferentAssignments(t *testing.T) {
	a, err := New(1, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	snap := testSnapshot(t, 10, 0)

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		entityID := identifier.H([]byte{'e', byte(i)})
		assignment, err := a.Assign(entityID, snap, 3)
		if err != nil {
			t.Fatalf("Assign: %v", err)
		}
		key := ""
		for id := range assignment.ids {
			key += id.Hex()
		}
		seen[key] = true
	}
	if len(seen) < 2 {
		t.Fatal("expected different entity ids to draw at least somewhat different assignments")
	}
}
