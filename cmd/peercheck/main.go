// Command peercheck starts a local LightChain network transport
// bootstrapped to the given peer multiaddr and reports how many peers it
// is connected to, exiting with status 1 when there are none. Adapted from the
// teacher's cmd/checkpeer, reconciled against the network.Network
// surface this module actually ships (the teacher's own checkpeer had
// already drifted from its p2p.Config/Listener shape).
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/lightchain-network/lightchain/network/p2p"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: peercheck <peer-multiaddr> [port]")
		fmt.Println("Example: peercheck /dns4/bootstrap.lightchain.example/tcp/9901/p2p/12D3KooW...")
		os.Exit(1)
	}
	bootstrapPeer := os.Args[1]

	port := 9906
	if len(os.Args) > 2 {
		fmt.Sscanf(os.Args[2], "%d", &port)
	}

	net := p2p.New(&p2p.Config{
		Port:           port,
		BootstrapPeers: []string{bootstrapPeer},
		ChannelPrefix:  "lightchain-peercheck",
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := net.Start(ctx); err != nil {
		log.Fatalf("failed to start network: %v", err)
	}
	defer net.Stop()

	log.Printf("local id: %s", net.ID())
	log.Printf("connected peers: %d", net.PeerCount())

	if net.PeerCount() == 0 {
		log.Println("no peers connected; check the bootstrap multiaddr and network reachability")
		os.Exit(1)
	}
}
