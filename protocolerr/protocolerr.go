// Package protocolerr names the error taxonomy of spec §7 as sentinel
// errors, so callers can distinguish dispositions with errors.Is instead
// of string matching.
package protocolerr

import "errors"

var (
	// ErrInvalidArgument is raised when an entity of an unaccepted kind
	// arrives at the ingest engine. Not retried.
	ErrInvalidArgument = errors.New("protocolerr: entity kind not accepted by ingest engine")

	// ErrUnknownParent is raised when a block's previous-block snapshot
	// cannot be found. Per spec, treated as fatal for that call rather
	// than buffered for retry.
	ErrUnknownParent = errors.New("protocolerr: unknown parent block, snapshot unavailable")

	// ErrValidationFailed covers insufficient or invalid certificates, and
	// mis-signed proposals. The entity is discarded silently by callers
	// that check for this error; it is returned here so tests can assert
	// on it.
	ErrValidationFailed = errors.New("protocolerr: entity failed certificate validation")

	// ErrStoreFailure wraps a persistent KV write error. Propagating this
	// out of the ingest engine must terminate the node rather than leave
	// cross-index invariants broken (spec §7).
	ErrStoreFailure = errors.New("protocolerr: persistent store failure")

	// ErrNetworkFailure is surfaced from Conduit.Unicast when the
	// transport rejects a send or the peer is unknown.
	ErrNetworkFailure = errors.New("protocolerr: network transport rejected send")

	// ErrChannelTaken is raised by Network.Register when a channel
	// already has a registered engine for the local node.
	ErrChannelTaken = errors.New("protocolerr: channel already has a registered engine")
)
