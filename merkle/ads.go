package merkle

import (
	"sync"

	"github.com/lightchain-network/lightchain/identifier"
	"github.com/lightchain-network/lightchain/model"
)

// Direction tags which side of a parent a proof step's sibling occupies.
type Direction uint8

const (
	// DirectionLeft means the sibling hash occupies the left child slot
	// (the candidate leaf being proven is the right child at that level).
	DirectionLeft Direction = iota
	// DirectionRight means the sibling hash occupies the right child
	// slot.
	DirectionRight
)

// ProofStep is one level of a Proof: the sibling hash encountered while
// walking from a leaf to the root, and which side it sat on.
type ProofStep struct {
	Sibling   identifier.Identifier
	Direction Direction
}

// Proof is the path from a leaf to the root captured at Put/Get time.
// It verifies against the Root it was captured with even after later
// inserts change the tree's current root (spec §4.2: "Proofs produced
// before a subsequent insert become stale").
type Proof struct {
	Leaf  identifier.Identifier
	Steps []ProofStep
	Root  identifier.Identifier
}

// AuthenticatedEntity pairs an entity with the Proof attesting to its
// membership, captured against the root at the time of Put or Get.
type AuthenticatedEntity struct {
	Proof  Proof
	Kind   model.Kind
	Entity model.Entity
}

// node is one arena slot. Cyclic parent/child object references (as in
// a textbook merkle-tree implementation) become integer indices into
// the Tree's own nodes slice: no shared ownership, no leaks, O(1)
// sibling lookup via parentIdx.
type node struct {
	hash         identifier.Identifier
	leftIdx      int
	rightIdx     int
	parentIdx    int
	isRightChild bool
}

const noIndex = -1

// Tree is an append-only authenticated set of entities. Put is
// idempotent per entity id: re-putting an already-present entity does
// not insert a second leaf, and returns a proof against the tree's
// current root. The tree holds memory only and is not persisted: a
// NewTree starts empty, and nothing repopulates it from the stores at
// startup.
type Tree struct {
	mu       sync.RWMutex
	nodes    []node
	leaves   []int // arena indices of leaf nodes, in insertion order
	leafOf   map[identifier.Identifier]int
	entities map[identifier.Identifier]model.Entity
	root     identifier.Identifier
}

// NewTree returns an empty authenticated entity set.
func NewTree() *Tree {
	return &Tree{
		leafOf:   make(map[identifier.Identifier]int),
		entities: make(map[identifier.Identifier]model.Entity),
	}
}

// Put inserts e if its id has not been seen before, then returns the
// AuthenticatedEntity for e against the tree's current root.
func (t *Tree) Put(e model.Entity) *AuthenticatedEntity {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := e.ID()
	if _, ok := t.leafOf[id]; !ok {
		leafHash := identifier.H(id.Bytes())
		// Leaves occupy the first len(t.leaves) arena slots; the internal
		// nodes after them are discarded and recomputed by rebuild.
		idx := len(t.leaves)
		t.nodes = append(t.nodes[:idx], node{hash: leafHash, leftIdx: noIndex, rightIdx: noIndex, parentIdx: noIndex})
		t.leaves = append(t.leaves, idx)
		t.leafOf[id] = idx
		t.entities[id] = e
		t.rebuild()
	}

	return t.authenticatedEntityLocked(id)
}

// Get returns the current AuthenticatedEntity for an entity with id id,
// or nil if no such entity has been put.
func (t *Tree) Get(id identifier.Identifier) *AuthenticatedEntity {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if _, ok := t.leafOf[id]; !ok {
		return nil
	}
	return t.authenticatedEntityLocked(id)
}

// authenticatedEntityLocked must be called with mu held (read or write).
func (t *Tree) authenticatedEntityLocked(id identifier.Identifier) *AuthenticatedEntity {
	leafIdx := t.leafOf[id]
	return &AuthenticatedEntity{
		Proof:  t.proofFor(leafIdx),
		Kind:   t.entities[id].Kind(),
		Entity: t.entities[id],
	}
}

// Verify recomputes the root along ae's proof path and accepts iff that
// recomputed root equals ae.Proof.Root AND ae.Proof.Root equals the
// tree's current root — a proof captured before a later Put is stale
// against the current root even though it still verifies against its
// own captured root.
func (t *Tree) Verify(ae *AuthenticatedEntity) bool {
	t.mu.RLock()
	currentRoot := t.root
	t.mu.RUnlock()

	current := ae.Proof.Leaf
	for _, step := range ae.Proof.Steps {
		if step.Direction == DirectionLeft {
			current = hashPair(step.Sibling, current)
		} else {
			current = hashPair(current, step.Sibling)
		}
	}

	return current == ae.Proof.Root && ae.Proof.Root == currentRoot
}

// rebuild recomputes every internal node from the current leaf set. Must
// be called with mu held. Any Put that adds a leaf rebuilds all
// ancestors from scratch; the contract only requires that Put followed
// by Get yields a proof verifiable against the new root, so full
// recomputation is as valid as an incremental update and much simpler.
func (t *Tree) rebuild() {
	t.nodes = t.nodes[:len(t.leaves)]
	for _, idx := range t.leaves {
		t.nodes[idx].leftIdx = noIndex
		t.nodes[idx].rightIdx = noIndex
		t.nodes[idx].parentIdx = noIndex
		t.nodes[idx].isRightChild = false
	}

	level := make([]int, len(t.leaves))
	copy(level, t.leaves)

	for len(level) > 1 {
		next := make([]int, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			leftIdx := level[i]
			rightIdx := leftIdx
			if i+1 < len(level) {
				rightIdx = level[i+1]
			}

			parentHash := hashPair(t.nodes[leftIdx].hash, t.nodes[rightIdx].hash)
			parentIdx := len(t.nodes)
			t.nodes = append(t.nodes, node{hash: parentHash, leftIdx: leftIdx, rightIdx: rightIdx, parentIdx: noIndex})

			t.nodes[leftIdx].parentIdx = parentIdx
			t.nodes[leftIdx].isRightChild = false
			t.nodes[rightIdx].parentIdx = parentIdx
			t.nodes[rightIdx].isRightChild = true

			next = append(next, parentIdx)
		}
		level = next
	}

	if len(level) == 1 {
		t.root = t.nodes[level[0]].hash
	} else {
		t.root = identifier.Zero
	}
}

// proofFor walks from a leaf to the root, collecting the sibling at
// each level. Must be called with mu held (read or write).
func (t *Tree) proofFor(leafIdx int) Proof {
	var steps []ProofStep
	idx := leafIdx
	for t.nodes[idx].parentIdx != noIndex {
		parent := t.nodes[idx].parentIdx
		var sibling int
		var dir Direction
		if t.nodes[idx].isRightChild {
			sibling = t.nodes[parent].leftIdx
			dir = DirectionLeft
		} else {
			sibling = t.nodes[parent].rightIdx
			dir = DirectionRight
		}
		steps = append(steps, ProofStep{Sibling: t.nodes[sibling].hash, Direction: dir})
		idx = parent
	}
	return Proof{Leaf: t.nodes[leafIdx].hash, Steps: steps, Root: t.root}
}

// Root returns the tree's current root.
func (t *Tree) Root() identifier.Identifier {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

// Len returns the number of entities put into the tree.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.leaves)
}
