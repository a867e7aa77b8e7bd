// Package network defines the Conduit/Network abstraction the ingest
// engine is driven through (spec §4.4): register an engine on a
// channel, then unicast, DHT-put/get, or enumerate entities through the
// Conduit handed back.
package network

import (
	"context"

	"github.com/lightchain-network/lightchain/identifier"
	"github.com/lightchain-network/lightchain/model"
)

// Engine is anything a Conduit can deliver entities to. ingest.Engine is
// the only production implementation.
type Engine interface {
	Process(ctx context.Context, e model.Entity) error
}

// Network exposes per-channel registration and reports the local node's
// own id. Registering a second engine on a channel already taken by this
// node fails with protocolerr.ErrChannelTaken.
type Network interface {
	Register(engine Engine, channel string) (Conduit, error)
	ID() identifier.Identifier
}

// Conduit is the per-channel handle a registered Engine uses to talk to
// the rest of the network.
type Conduit interface {
	// Unicast sends e to the engine registered on this Conduit's channel
	// at targetNodeID. It returns once the transport has accepted the
	// send, not once the peer has processed it.
	Unicast(ctx context.Context, e model.Entity, targetNodeID identifier.Identifier) error

	// Put stores e in the distributed hash table.
	Put(ctx context.Context, e model.Entity) error

	// Get fetches the entity with the given id from the distributed hash
	// table, or (nil, nil) if it is not found.
	Get(ctx context.Context, id identifier.Identifier) (model.Entity, error)

	// AllEntities enumerates every entity known to the DHT.
	AllEntities(ctx context.Context) ([]model.Entity, error)
}

// Envelope is the framed wire message of spec §6: a per-channel stream
// of (originId, channel, type, payload). type is the entity's Kind,
// payload its codec-encoded bytes.
type Envelope struct {
	OriginID identifier.Identifier
	Channel  string
	Kind     model.Kind
	Payload  []byte
}

// EncodeEnvelope builds the Envelope for e, addressed from originID on
// channel.
func EncodeEnvelope(originID identifier.Identifier, channel string, e model.Entity) (Envelope, error) {
	kind, payload, err := model.EncodeEntity(e)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{OriginID: originID, Channel: channel, Kind: kind, Payload: payload}, nil
}

// Entity reverses the encoding in EncodeEnvelope.
func (env Envelope) Entity() (model.Entity, error) {
	return model.DecodeEntity(env.Kind, env.Payload)
}
