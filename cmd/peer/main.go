// Package main implements the lazyssp peer binary: one process per rank,
// symmetric with every other peer, exposing the rpc transport's region
// operations over HTTP and driving a pkg/ssp.Cache on top of it.
//
// There is no coordinator/node split here: every peer is identical, so a
// single binary plays every role.
//
// Configuration, in order of precedence (flags win over environment):
//   - PEER_ID / --rank: this peer's rank in [0, N)
//   - PEER_ADDRS / --peers: comma-separated peer base URLs
//     ("http://host:port"), index == rank
//   - PEER_LISTEN / --listen: address to bind the HTTP server to
//   - --table-amount, --table-size, --row-size: geometry
//   - --block-size: sharding block size (0 = whole tables per peer)
//   - --cache-size: cache region slot count
//   - --mode: "rpc" (default, real HTTP transport) or "simulate" (all N
//     peers run as goroutines over internal/transport/local, no network)
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/dreamware/lazyssp/internal/bootstrap"
	"github.com/dreamware/lazyssp/internal/placement"
	"github.com/dreamware/lazyssp/internal/slotlayout"
	"github.com/dreamware/lazyssp/internal/transport/local"
	"github.com/dreamware/lazyssp/internal/transport/rpc"
	"github.com/dreamware/lazyssp/pkg/ssp"
)

// logFatal is a variable so tests can intercept process termination.
var logFatal = func(log *zap.Logger, msg string, fields ...zap.Field) {
	log.Fatal(msg, fields...)
}

func main() {
	var (
		rank        = pflag.Int("rank", -1, "this peer's rank (overrides PEER_ID)")
		peersFlag   = pflag.StringSlice("peers", nil, "comma-separated peer base URLs (http://host:port), index == rank (overrides PEER_ADDRS)")
		listen      = pflag.String("listen", "", "address to bind the HTTP server to (overrides PEER_LISTEN)")
		public      = pflag.String("public-addr", "", "address other peers use to reach this one (overrides PEER_ADDR)")
		tableAmount = pflag.Uint64("table-amount", 1, "number of tables")
		tableSize   = pflag.Uint64("table-size", 1, "rows per table")
		rowSize     = pflag.Uint64("row-size", 8, "row payload size in bytes")
		blockSize   = pflag.Uint64("block-size", 0, "sharding block size (0 = whole tables per peer)")
		cacheSize   = pflag.Uint64("cache-size", 0, "cache region slot count (0 = table_size)")
		maxThreads  = pflag.Uint("max-threads", 1, "bound on concurrent callers per process")
		mode        = pflag.String("mode", "rpc", `"rpc" for the networked transport, "simulate" to run every peer in-process`)
		dumpDir     = pflag.String("dump-dir", "", "directory for debug snapshots (empty disables dumping)")
	)
	pflag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *mode == "simulate" {
		runSimulate(ctx, log, *tableAmount, *tableSize, *rowSize, *blockSize, *cacheSize, *maxThreads)
		return
	}

	id, err := bootstrap.FromFlags(*rank, *peersFlag, *listen, *public)
	if err != nil {
		logFatal(log, "bootstrap failed", zap.Error(err))
		return
	}

	srv, tr, err := newRPCTransport(id, *tableAmount, *tableSize, *rowSize, *blockSize, *cacheSize, log)
	if err != nil {
		logFatal(log, "transport setup failed", zap.Error(err))
		return
	}

	httpSrv := &http.Server{
		Addr:              id.Listen,
		Handler:           withInfoEndpoint(srv, id),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("peer listening", zap.Int("rank", id.Rank), zap.String("listen", id.Listen), zap.String("public", id.PublicURL))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logFatal(log, "listen failed", zap.Error(err))
		}
	}()

	var opts []ssp.Option
	opts = append(opts,
		ssp.WithBlockSize(*blockSize),
		ssp.WithCacheSize(*cacheSize),
		ssp.WithMaxThreads(*maxThreads),
		ssp.WithLogger(log),
	)
	if *dumpDir != "" {
		opts = append(opts, ssp.WithOutputCreator(func(rank int) string {
			return fmt.Sprintf("%s/peer-%d.json", *dumpDir, rank)
		}))
	}

	cache, err := ssp.New(ctx, *tableAmount, *tableSize, *rowSize, tr, opts...)
	if err != nil {
		logFatal(log, "ssp.New failed", zap.Error(err))
		return
	}
	log.Info("cache initialised", zap.Int("rank", id.Rank))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := cache.Terminate(shutdownCtx); err != nil {
		log.Warn("terminate failed", zap.Error(err))
	}
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown failed", zap.Error(err))
	}
	log.Info("peer stopped", zap.Int("rank", id.Rank))
}

// newRPCTransport sizes the Rows and Cache region byte buffers from the
// configured geometry and returns the HTTP server and the Transport handle
// bound to this peer's own rank.
func newRPCTransport(id bootstrap.Identity, tableAmount, tableSize, rowSize, blockSize, cacheSize uint64, log *zap.Logger) (*rpc.Server, *rpc.Peer, error) {
	n := len(id.Addrs)
	if blockSize == 0 {
		blockSize = tableSize
	}
	if cacheSize == 0 {
		cacheSize = tableSize
	}

	geometry := placement.Geometry{PeerCount: n, BlockSize: blockSize, TableAmount: tableAmount, TableSize: tableSize}
	if err := geometry.Validate(); err != nil {
		return nil, nil, err
	}
	table, err := placement.NewTable(geometry)
	if err != nil {
		return nil, nil, err
	}

	rowsLayout := slotlayout.New(true, int(rowSize), n)
	cacheLayout := slotlayout.New(true, int(rowSize), 0)

	rowsBytes := int(table.RowCountForRank(id.Rank)) * rowsLayout.SlotSize()
	cacheBytes := int(cacheSize) * cacheLayout.SlotSize()

	srv := rpc.NewServer(64, rowsBytes, cacheBytes, n, log)
	peer := rpc.NewPeer(id.Rank, rpc.Addresses(id.Addrs), srv)
	return srv, peer, nil
}

// withInfoEndpoint mounts a minimal /info handler (this peer's identity)
// alongside the rpc.Server's region-operation routes. Debug snapshot
// content lives in internal/debugdump and is flushed to disk at Terminate,
// not served live, since the cache's own hot-path state belongs to
// internal/region, not internal/storage.
func withInfoEndpoint(srv *rpc.Server, id bootstrap.Identity) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/info", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"rank":%d,"peer_count":%d,"public_addr":%q}`, id.Rank, len(id.Addrs), id.PublicURL)
	})
	mux.Handle("/", srv.Handler())
	return mux
}

// runSimulate drives every peer as a goroutine over internal/transport/local
// so the whole cluster can be exercised with no network and no bootstrap
// environment, useful for local smoke-testing cmd/peer's wiring.
func runSimulate(ctx context.Context, log *zap.Logger, tableAmount, tableSize, rowSize, blockSize, cacheSize uint64, maxThreads uint) {
	const n = 4
	if blockSize == 0 {
		blockSize = tableSize
	}
	if cacheSize == 0 {
		cacheSize = tableSize
	}

	geometry := placement.Geometry{PeerCount: n, BlockSize: blockSize, TableAmount: tableAmount, TableSize: tableSize}
	if err := geometry.Validate(); err != nil {
		logFatal(log, "invalid simulated geometry", zap.Error(err))
		return
	}
	table, err := placement.NewTable(geometry)
	if err != nil {
		logFatal(log, "invalid simulated geometry", zap.Error(err))
		return
	}

	rowsLayout := slotlayout.New(true, int(rowSize), n)
	cacheLayout := slotlayout.New(true, int(rowSize), 0)

	maxRows := 0
	for r := 0; r < n; r++ {
		if c := int(table.RowCountForRank(r)); c > maxRows {
			maxRows = c
		}
	}
	cluster := local.NewCluster(n, 64, maxRows*rowsLayout.SlotSize(), int(cacheSize)*cacheLayout.SlotSize())

	caches := make([]*ssp.Cache, n)
	errs := make(chan error, n)
	for r := 0; r < n; r++ {
		r := r
		go func() {
			c, err := ssp.New(ctx, tableAmount, tableSize, rowSize, cluster.Peer(r),
				ssp.WithBlockSize(blockSize),
				ssp.WithCacheSize(cacheSize),
				ssp.WithMaxThreads(maxThreads),
				ssp.WithLogger(log.With(zap.Int("rank", r))),
			)
			caches[r] = c
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		if err := <-errs; err != nil {
			logFatal(log, "simulated peer failed to initialise", zap.Error(err))
			return
		}
	}
	log.Info("simulated cluster ready", zap.Int("peer_count", n))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	for _, c := range caches {
		if err := c.Terminate(shutdownCtx); err != nil {
			log.Warn("simulated peer terminate failed", zap.Error(err))
		}
	}
	log.Info("simulated cluster stopped")
}
