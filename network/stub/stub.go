// Package stub is an in-process network.Network used by tests: a
// shared Hub dispatches unicasts directly into the target engine's
// Process call on the caller's goroutine, and a shared DHT backs
// put/get/allEntities. Modeled on the original engine tests' StubNetwork
// and Hub, with MockConduit's direct-call semantics for unicast.
package stub

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/lightchain-network/lightchain/identifier"
	"github.com/lightchain-network/lightchain/model"
	"github.com/lightchain-network/lightchain/network"
	"github.com/lightchain-network/lightchain/protocolerr"
)

type registryKey struct {
	nodeID  identifier.Identifier
	channel string
}

// Hub is the shared registry and DHT every StubNetwork in a test
// registers against. A single Hub stands in for the whole gossip
// network: unicast within it is a direct function call, not a
// round trip.
type Hub struct {
	mu       sync.RWMutex
	registry map[registryKey]network.Engine
	dht      map[identifier.Identifier]model.Entity
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		registry: make(map[registryKey]network.Engine),
		dht:      make(map[identifier.Identifier]model.Entity),
	}
}

func (h *Hub) register(nodeID identifier.Identifier, channel string, engine network.Engine) error {
	key := registryKey{nodeID: nodeID, channel: channel}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, taken := h.registry[key]; taken {
		return fmt.Errorf("stub: %w: node %s channel %q", protocolerr.ErrChannelTaken, nodeID, channel)
	}
	h.registry[key] = engine
	return nil
}

func (h *Hub) engineFor(nodeID identifier.Identifier, channel string) (network.Engine, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	engine, ok := h.registry[registryKey{nodeID: nodeID, channel: channel}]
	return engine, ok
}

func (h *Hub) put(e model.Entity) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dht[e.ID()] = e
}

func (h *Hub) get(id identifier.Identifier) (model.Entity, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.dht[id]
	return e, ok
}

func (h *Hub) all() []model.Entity {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]model.Entity, 0, len(h.dht))
	for _, e := range h.dht {
		out = append(out, e)
	}
	return out
}

// Network is an in-process network.Network backed by a shared Hub.
// Each Network has its own id; registering a channel already taken by
// this node's id fails.
type Network struct {
	hub *Hub
	id  identifier.Identifier
}

// New creates a Network with a freshly generated id, registered against
// hub.
func New(hub *Hub) *Network {
	var raw [32]byte
	if _, err := rand.Read(raw[:]); err != nil {
		panic(fmt.Sprintf("stub: failed to generate node id: %v", err))
	}
	id, _ := identifier.New(raw[:])
	return &Network{hub: hub, id: id}
}

// ID implements network.Network.
func (n *Network) ID() identifier.Identifier {
	return n.id
}

// Register implements network.Network.
func (n *Network) Register(engine network.Engine, channel string) (network.Conduit, error) {
	if err := n.hub.register(n.id, channel, engine); err != nil {
		return nil, err
	}
	return &conduit{network: n, channel: channel}, nil
}

type conduit struct {
	network *Network
	channel string
}

// Unicast implements network.Conduit: a direct call into the target's
// engine on the caller's goroutine, matching MockConduit/StubNetwork's
// synchronous dispatch.
func (c *conduit) Unicast(ctx context.Context, e model.Entity, targetNodeID identifier.Identifier) error {
	engine, ok := c.network.hub.engineFor(targetNodeID, c.channel)
	if !ok {
		return fmt.Errorf("stub: %w: no engine registered for node %s channel %q",
			protocolerr.ErrNetworkFailure, targetNodeID, c.channel)
	}
	return engine.Process(ctx, e)
}

// Put implements network.Conduit.
func (c *conduit) Put(ctx context.Context, e model.Entity) error {
	c.network.hub.put(e)
	return nil
}

// Get implements network.Conduit.
func (c *conduit) Get(ctx context.Context, id identifier.Identifier) (model.Entity, error) {
	e, ok := c.network.hub.get(id)
	if !ok {
		return nil, nil
	}
	return e, nil
}

// AllEntities implements network.Conduit.
func (c *conduit) AllEntities(ctx context.Context) ([]model.Entity, error) {
	return c.network.hub.all(), nil
}
