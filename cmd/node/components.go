package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"syscall"

	"github.com/lightchain-network/lightchain/ingest"
	"github.com/lightchain-network/lightchain/network/p2p"
	"github.com/lightchain-network/lightchain/protocol"
)

// closerComponent adapts a resource that is already open the moment its
// constructor returns (every kvstore.KVStore and the state/sqlite.Store
// in this binary) into an orchestrator.Component: Start is a no-op, Stop
// releases the resource. Close is idempotent on every concrete type this
// wraps, matching orchestrator.Component's contract.
type closerComponent struct {
	name   string
	closer io.Closer
}

func (c *closerComponent) Name() string { return c.name }

func (c *closerComponent) Start(ctx context.Context) error { return nil }

func (c *closerComponent) Stop(ctx context.Context) error { return c.closer.Close() }

// networkComponent brings up the gossipsub transport.
type networkComponent struct {
	net *p2p.Network
}

func (n *networkComponent) Name() string { return "network" }

func (n *networkComponent) Start(ctx context.Context) error { return n.net.Start(ctx) }

func (n *networkComponent) Stop(ctx context.Context) error { return n.net.Stop() }

// ingestComponent registers the ingest engine on the validated-blocks
// and validated-transactions channels once the network is up. When the
// engine raises its fatal-store-failure signal, it logs the error and
// sends SIGTERM to its own process, so main's signal handler stops the
// node through the orchestrator.
type ingestComponent struct {
	net    *p2p.Network
	engine *ingest.Engine
	logger *slog.Logger
}

func (i *ingestComponent) Name() string { return "ingest" }

func (i *ingestComponent) Start(ctx context.Context) error {
	if _, err := i.net.Register(i.engine, protocol.ChannelValidatedBlocks); err != nil {
		return err
	}
	if _, err := i.net.Register(i.engine, protocol.ChannelValidatedTransactions); err != nil {
		return err
	}
	go func() {
		if err, ok := <-i.engine.Fatal(); ok {
			i.logger.Error("ingest: fatal store failure, node must stop", "error", err)
			if p, findErr := os.FindProcess(os.Getpid()); findErr == nil {
				_ = p.Signal(syscall.SIGTERM)
			}
		}
	}()
	return nil
}

func (i *ingestComponent) Stop(ctx context.Context) error { return nil }
