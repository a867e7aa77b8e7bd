// Command node runs a LightChain ingest node: it opens the persistent
// stores, joins the gossip network, and registers the ingest engine on
// the validated-blocks and validated-transactions channels. Flag
// parsing and the startup/shutdown shape follow the teacher's
// cmd/indexer/main.go.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/lightchain-network/lightchain/assigner"
	"github.com/lightchain-network/lightchain/cache"
	"github.com/lightchain-network/lightchain/identifier"
	"github.com/lightchain-network/lightchain/ingest"
	"github.com/lightchain-network/lightchain/kvstore"
	"github.com/lightchain-network/lightchain/kvstore/badger"
	"github.com/lightchain-network/lightchain/kvstore/memory"
	"github.com/lightchain-network/lightchain/merkle"
	"github.com/lightchain-network/lightchain/model"
	"github.com/lightchain-network/lightchain/network/p2p"
	"github.com/lightchain-network/lightchain/orchestrator"
	"github.com/lightchain-network/lightchain/protocol"
	"github.com/lightchain-network/lightchain/state"
	"github.com/lightchain-network/lightchain/state/sqlite"
	"github.com/lightchain-network/lightchain/storage"
)

// splitAndTrim splits a string by delimiter and trims whitespace from
// each part, matching the teacher's cmd/indexer/main.go helper.
func splitAndTrim(s, delim string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, delim)
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func openKV(storageType, dataDir, name string) (kvstore.KVStore, error) {
	switch storageType {
	case "memory":
		return memory.New(), nil
	case "badger":
		return badger.New(&badger.Config{DataDir: filepath.Join(dataDir, name)})
	default:
		log.Fatalf("unknown storage type: %s (use 'memory' or 'badger')", storageType)
		return nil, nil
	}
}

func main() {
	storageType := flag.String("storage", "badger", "Storage type: memory or badger")
	dataDir := flag.String("data-dir", "./data", "Data directory for on-disk storage")
	p2pPort := flag.Int("p2p-port", 9905, "P2P listen port")
	topicPrefix := flag.String("topic-prefix", "lightchain", "Gossipsub topic namespace")
	bootstrapPeers := flag.String("bootstrap-peers", "", "Comma-separated list of bootstrap peer multiaddrs")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	startTimeout := flag.Duration("start-timeout", 30*time.Second, "Deadline for every component to become ready")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	log.Println("Starting LightChain node...")

	blocksPrimary, err := openKV(*storageType, *dataDir, "blocks-primary")
	if err != nil {
		log.Fatalf("failed to open blocks-primary store: %v", err)
	}
	blocksByHeight, err := openKV(*storageType, *dataDir, "blocks-by-height")
	if err != nil {
		log.Fatalf("failed to open blocks-by-height store: %v", err)
	}
	txIDsKV, err := openKV(*storageType, *dataDir, "transaction-ids")
	if err != nil {
		log.Fatalf("failed to open transaction-ids store: %v", err)
	}
	pendingKV, err := openKV(*storageType, *dataDir, "pending-transactions")
	if err != nil {
		log.Fatalf("failed to open pending-transactions store: %v", err)
	}
	seenKV, err := openKV(*storageType, *dataDir, "seen-entities")
	if err != nil {
		log.Fatalf("failed to open seen-entities store: %v", err)
	}

	ctx := context.Background()

	blocks, err := storage.NewBlockStore(ctx, blocksPrimary, blocksByHeight)
	if err != nil {
		log.Fatalf("failed to open block store: %v", err)
	}
	txIDs, err := storage.NewTransactionIndex(ctx, txIDsKV)
	if err != nil {
		log.Fatalf("failed to open transaction index: %v", err)
	}
	pending, err := storage.NewPendingTransactionStore(ctx, pendingKV)
	if err != nil {
		log.Fatalf("failed to open pending transaction store: %v", err)
	}
	seen, err := storage.NewSeenEntityStore(ctx, seenKV)
	if err != nil {
		log.Fatalf("failed to open seen entity store: %v", err)
	}

	sqliteStore, err := sqlite.New(&sqlite.Config{DBPath: filepath.Join(*dataDir, "state.db")})
	if err != nil {
		log.Fatalf("failed to open state store: %v", err)
	}
	st, err := state.New(sqliteStore, 1024)
	if err != nil {
		log.Fatalf("failed to build state resolver: %v", err)
	}

	asg, err := assigner.New(protocol.MinStake, 1024)
	if err != nil {
		log.Fatalf("failed to build assigner: %v", err)
	}
	seenCache, err := cache.New(4096)
	if err != nil {
		log.Fatalf("failed to build seen cache: %v", err)
	}
	tree := merkle.NewTree()
	tip := model.NewChainTip()

	engine := ingest.New(st, blocks, txIDs, pending, seen, asg, seenCache, tree, tip)
	engine.SubscribeNewValidatedBlock(func(blockID identifier.Identifier) {
		logger.Info("committed new block", "block_id", blockID)
	})

	var bootstrapPeerList []string
	if *bootstrapPeers != "" {
		bootstrapPeerList = splitAndTrim(*bootstrapPeers, ",")
	}
	net := p2p.New(&p2p.Config{
		Port:           *p2pPort,
		BootstrapPeers: bootstrapPeerList,
		ChannelPrefix:  *topicPrefix,
	}, logger)

	orch := orchestrator.New(logger,
		&closerComponent{name: "blocks-primary", closer: blocksPrimary},
		&closerComponent{name: "blocks-by-height", closer: blocksByHeight},
		&closerComponent{name: "transaction-ids", closer: txIDsKV},
		&closerComponent{name: "pending-transactions", closer: pendingKV},
		&closerComponent{name: "seen-entities", closer: seenKV},
		&closerComponent{name: "state-store", closer: sqliteStore},
		&networkComponent{net: net},
		&ingestComponent{net: net, engine: engine, logger: logger},
	)

	deadline, cancelDeadline := context.WithTimeout(ctx, *startTimeout)
	defer cancelDeadline()
	if err := orch.Start(deadline); err != nil {
		log.Fatalf("node failed to start: %v", err)
	}

	log.Printf("Node started | local id: %s | peers: %d", net.ID(), net.PeerCount())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	statusTicker := time.NewTicker(5 * time.Minute)
	defer statusTicker.Stop()

	for {
		select {
		case <-sigCh:
			log.Println("Shutting down...")
			stopCtx, cancelStop := context.WithTimeout(context.Background(), *startTimeout)
			if err := orch.Stop(stopCtx); err != nil {
				log.Printf("error during shutdown: %v", err)
			}
			cancelStop()
			return

		case <-statusTicker.C:
			log.Printf("Status: connected to %d peers, blocks committed: %d, pending: %d",
				net.PeerCount(), blocks.Len(), pending.Len())
		}
	}
}
