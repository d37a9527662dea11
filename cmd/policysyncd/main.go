// Command policysyncd is the companion daemon that leader-elects across
// replicas and drives the 15-minute Quick Task quota refill the spec leaves
// external (§9 Open Questions). One instance becomes leader at a time; the
// rest idle, ready to take over if it disappears.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/mindfence/decisioncore/policysync"
)

func main() {
	redisAddr := flag.String("redis-addr", "localhost:6379", "Redis address for leader election")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres DSN for the durable quota-window store")
	nodeID := flag.String("node-id", defaultNodeID(), "unique identifier for this policysyncd instance")
	leaseTTL := flag.Duration("lease-ttl", 30*time.Second, "leader election lease TTL")
	defaultMax := flag.Int("default-max-quota", 1, "Quick Task quota ceiling applied to a new quota window and on every refill")
	flag.Parse()

	if *postgresDSN == "" {
		log.Fatal("policysyncd: --postgres-dsn is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: *redisAddr})
	defer client.Close()

	durable, err := policysync.OpenDurableStore(ctx, *postgresDSN)
	if err != nil {
		log.Fatalf("policysyncd: open durable store: %v", err)
	}
	defer durable.Close()

	elector := policysync.NewElector(client, *nodeID, *leaseTTL)
	svc := policysync.NewService(elector, durable, *defaultMax)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		svc.Run(gctx, nil)
		return nil
	})

	log.Printf("policysyncd: node=%s redis=%s started", *nodeID, *redisAddr)
	if err := g.Wait(); err != nil {
		log.Fatalf("policysyncd: %v", err)
	}
	log.Printf("policysyncd: shut down cleanly")
}

func defaultNodeID() string {
	host, err := os.Hostname()
	if err != nil {
		return "policysyncd"
	}
	return host
}
