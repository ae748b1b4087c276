package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/store-sim/internal/adapter/storage"
	"github.com/rl1809/store-sim/internal/core/domain"
	"github.com/rl1809/store-sim/internal/core/ledger"
	"github.com/rl1809/store-sim/internal/core/service"
	"github.com/rl1809/store-sim/internal/port"
)

const itemID domain.ItemID = 1

func main() {
	redisAddr := flag.String("redis-addr", "", "run against a Redis ledger instead of the in-memory one")
	initialStock := flag.Int("stock", 20, "initial stock of the contended item")
	totalRequests := flag.Int("requests", 50, "concurrent reservations of one unit")
	shoppers := flag.Int("shoppers", 16, "concurrent shoppers in the simulation phase")
	ticks := flag.Int64("ticks", 10000, "tick budget of the simulation phase")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()

	newLedger := service.MemoryLedger
	if *redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect redis", zap.String("addr", *redisAddr), zap.Error(err))
		}
		defer rdb.Close()

		// each phase starts from fresh counters under the run's namespace
		run := "stress:" + uuid.NewString() + ":"
		newLedger = func(ctx context.Context, items []domain.Item) (port.StockLedger, error) {
			return storage.NewRedisLedger(ctx, rdb, run+uuid.NewString()+":", items)
		}
		defer func() {
			keys, _ := rdb.Keys(ctx, run+"*").Result()
			if len(keys) > 0 {
				rdb.Del(ctx, keys...)
			}
		}()
	}

	ok := hammer(ctx, logger, newLedger, *initialStock, *totalRequests)
	ok = simulate(ctx, logger, newLedger, *shoppers, *ticks) && ok
	if !ok {
		os.Exit(1)
	}
}

// hammer races single-unit reservations against one item.
func hammer(ctx context.Context, logger *zap.Logger, newLedger service.LedgerFactory, initialStock, totalRequests int) bool {
	stock, err := newLedger(ctx, []domain.Item{{ID: itemID, Name: "contended", Price: decimal.NewFromInt(1), Stock: initialStock}})
	if err != nil {
		logger.Fatal("failed to build ledger", zap.Error(err))
	}

	var successCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			taken, err := stock.Reserve(ctx, itemID, 1)
			if err == nil && taken == 1 {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	fail := failCount.Load()
	expected := min(initialStock, totalRequests)

	fmt.Println("========== RESERVATION RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	pass := true
	if int(success) == expected && int(fail) == totalRequests-expected {
		fmt.Printf("PASS: Exactly %d reservations succeeded, %d failed\n", expected, totalRequests-expected)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d fail, got %d/%d\n",
			expected, totalRequests-expected, success, fail)
		pass = false
	}

	finalStock, err := stock.StockOf(ctx, itemID)
	if err != nil {
		logger.Fatal("failed to read stock", zap.Error(err))
	}
	fmt.Printf("Final Stock:      %d\n", finalStock)
	if finalStock == initialStock-expected {
		fmt.Printf("PASS: Stock ended at %d\n", finalStock)
	} else {
		fmt.Printf("FAIL: Expected stock %d, got %d\n", initialStock-expected, finalStock)
		pass = false
	}
	return pass
}

type restockTally struct {
	mu    sync.Mutex
	added map[domain.ItemID]int
}

func (r *restockTally) OrderRecorded(domain.Order) {}
func (r *restockTally) CycleSkipped(string)        {}
func (r *restockTally) UserAdded(domain.User)      {}
func (r *restockTally) TickFailed(error)           {}

func (r *restockTally) Restocked(id domain.ItemID, amount int) {
	r.mu.Lock()
	r.added[id] += amount
	r.mu.Unlock()
}

// simulate runs the full engine with concurrent shoppers and checks that
// every item's units are conserved and that identifiers stayed unique.
func simulate(ctx context.Context, logger *zap.Logger, newLedger service.LedgerFactory, shoppers int, ticks int64) bool {
	seed := storage.DefaultSeed(storage.DefaultInitialStock)
	gw, err := storage.NewMemoryGateway(seed)
	if err != nil {
		logger.Fatal("failed to build gateway", zap.Error(err))
	}
	tally := &restockTally{added: make(map[domain.ItemID]int)}

	engine, err := service.NewEngine(ctx, gw, service.EngineConfig{
		Seed:       uint64(time.Now().UnixNano()),
		Simulation: service.Config{Shoppers: shoppers, MaxTicks: ticks},
	},
		service.WithLedger(newLedger),
		service.WithObserver(tally),
		service.WithLogger(logger.Named("engine").WithOptions(zap.IncreaseLevel(zap.WarnLevel))),
	)
	if err != nil {
		logger.Fatal("failed to build engine", zap.Error(err))
	}
	historical := ledger.NewJournal()
	for _, o := range seed.Orders {
		if err := historical.Append(o); err != nil {
			logger.Fatal("failed to replay history", zap.Error(err))
		}
	}

	start := time.Now()
	if err := engine.Simulator.Run(ctx); err != nil {
		logger.Fatal("simulation failed", zap.Error(err))
	}
	elapsed := time.Since(start)

	sold := make(map[domain.ItemID]int)
	for _, l := range engine.Journal.Lines() {
		sold[l.ItemID] += l.Quantity
	}
	for _, l := range historical.Lines() {
		sold[l.ItemID] -= l.Quantity
	}

	fmt.Println("========== SIMULATION RESULTS ==========")
	fmt.Printf("Shoppers:         %d\n", shoppers)
	fmt.Printf("Ticks:            %d\n", engine.Simulator.Ticks())
	fmt.Printf("Transactions:     %d\n", engine.Journal.Len()-historical.Len())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	pass := true
	for _, it := range engine.Catalog.Items() {
		final, err := engine.Ledger.StockOf(ctx, it.ID)
		if err != nil {
			logger.Fatal("failed to read stock", zap.Error(err))
		}
		if it.Stock+tally.added[it.ID] != sold[it.ID]+final {
			fmt.Printf("FAIL: %s: initial %d + restocked %d != sold %d + final %d\n",
				it.Name, it.Stock, tally.added[it.ID], sold[it.ID], final)
			pass = false
		}
	}
	if pass {
		fmt.Println("PASS: Stock conserved for every item")
	}

	var prev domain.TransactionID
	for _, o := range engine.Journal.Orders() {
		if o.Transaction.ID <= prev {
			fmt.Printf("FAIL: transaction %d follows %d\n", o.Transaction.ID, prev)
			return false
		}
		prev = o.Transaction.ID
	}
	fmt.Println("PASS: Transaction IDs strictly increasing")
	return pass
}
