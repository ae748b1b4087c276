package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/rl1809/store-sim/internal/core/service"
)

const envPrefix = "STORE_SIM_"

// Config holds everything cmd/server needs. Every flag can also be set
// through an environment variable named STORE_SIM_<FLAG> with dashes
// replaced by underscores; explicit flags win.
type Config struct {
	Interval     time.Duration
	Duration     time.Duration
	MaxTicks     int64
	Shoppers     int
	Seed         uint64
	MaxRestock   int
	InitialStock int

	Driver string // memory, mysql, postgres or sqlite3
	DSN    string

	RedisAddr    string
	RedisLedger  bool
	RedisEvents  bool
	LedgerPrefix string

	HTTPAddr string
	GRPCAddr string

	LogLevel    string
	Development bool

	SeedFile  string
	NamesFile string

	Quiet bool
}

var drivers = map[string]bool{"memory": true, "mysql": true, "postgres": true, "sqlite3": true}

// Load parses args (without the program name) on top of the environment.
func Load(args []string) (Config, error) {
	var cfg Config
	fs := flag.NewFlagSet("store-sim", flag.ContinueOnError)

	fs.DurationVar(&cfg.Interval, "interval", time.Second, "pause between ticks of one shopper")
	fs.DurationVar(&cfg.Duration, "duration", time.Minute, "simulation run time; 0 runs until stopped")
	fs.Int64Var(&cfg.MaxTicks, "max-ticks", 0, "tick budget; 0 means unlimited")
	fs.IntVar(&cfg.Shoppers, "shoppers", 1, "concurrent tick loops")
	fs.Uint64Var(&cfg.Seed, "seed", uint64(time.Now().UnixNano()), "random seed")
	fs.IntVar(&cfg.MaxRestock, "max-restock", service.DefaultMaxRestock, "upper bound of one restock amount")
	fs.IntVar(&cfg.InitialStock, "initial-stock", 100, "stock of seeded items without an explicit value")

	fs.StringVar(&cfg.Driver, "driver", "memory", "storage driver: memory, mysql, postgres, sqlite3")
	fs.StringVar(&cfg.DSN, "dsn", "", "storage DSN")

	fs.StringVar(&cfg.RedisAddr, "redis-addr", "", "Redis address; empty disables Redis")
	fs.BoolVar(&cfg.RedisLedger, "redis-ledger", false, "keep stock counters in Redis")
	fs.BoolVar(&cfg.RedisEvents, "redis-events", false, "publish events to Redis streams")
	fs.StringVar(&cfg.LedgerPrefix, "ledger-prefix", "storesim:", "Redis key namespace of the stock ledger")

	fs.StringVar(&cfg.HTTPAddr, "http-addr", ":8080", "HTTP listen address; empty disables HTTP")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", ":50051", "gRPC listen address; empty disables gRPC")

	fs.StringVar(&cfg.LogLevel, "log-level", "info", "debug, info, warn or error")
	fs.BoolVar(&cfg.Development, "dev", false, "human readable logs")

	fs.StringVar(&cfg.SeedFile, "seed-file", "", "JSON seed with items, users and transactions")
	fs.StringVar(&cfg.NamesFile, "names-file", "", "JSON name pools with first and last")

	fs.BoolVar(&cfg.Quiet, "quiet", false, "do not print the report after every tick")

	if err := applyEnv(fs); err != nil {
		return Config{}, err
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// applyEnv sets flag values from the environment before the command line is
// parsed.
func applyEnv(fs *flag.FlagSet) error {
	var errs []error
	fs.VisitAll(func(f *flag.Flag) {
		v, ok := os.LookupEnv(EnvName(f.Name))
		if !ok {
			return
		}
		if err := f.Value.Set(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvName(f.Name), err))
		}
	})
	return errors.Join(errs...)
}

func EnvName(flagName string) string {
	b := []byte(envPrefix + flagName)
	for i := len(envPrefix); i < len(b); i++ {
		switch c := b[i]; {
		case c == '-':
			b[i] = '_'
		case c >= 'a' && c <= 'z':
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

func (c Config) Validate() error {
	var errs []error
	if c.Interval < 0 {
		errs = append(errs, fmt.Errorf("interval: must not be negative, got %s", c.Interval))
	}
	if c.Duration < 0 {
		errs = append(errs, fmt.Errorf("duration: must not be negative, got %s", c.Duration))
	}
	if c.MaxTicks < 0 {
		errs = append(errs, fmt.Errorf("max-ticks: must not be negative, got %d", c.MaxTicks))
	}
	if c.Shoppers < 1 {
		errs = append(errs, fmt.Errorf("shoppers: must be at least 1, got %d", c.Shoppers))
	}
	if c.MaxRestock < 1 {
		errs = append(errs, fmt.Errorf("max-restock: must be at least 1, got %d", c.MaxRestock))
	}
	if c.InitialStock < 0 {
		errs = append(errs, fmt.Errorf("initial-stock: must not be negative, got %d", c.InitialStock))
	}
	if !drivers[c.Driver] {
		errs = append(errs, fmt.Errorf("driver: unknown driver %q", c.Driver))
	}
	if c.Driver != "memory" && c.DSN == "" {
		errs = append(errs, fmt.Errorf("dsn: required for driver %q", c.Driver))
	}
	if (c.RedisLedger || c.RedisEvents) && c.RedisAddr == "" {
		errs = append(errs, errors.New("redis-addr: required when redis-ledger or redis-events is set"))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log-level: %w", err))
	}
	return errors.Join(errs...)
}

func (c Config) Level() zapcore.Level {
	lvl, _ := zapcore.ParseLevel(c.LogLevel)
	return lvl
}

func (c Config) Simulation() service.Config {
	return service.Config{
		Interval: c.Interval,
		Duration: c.Duration,
		MaxTicks: c.MaxTicks,
		Shoppers: c.Shoppers,
	}
}

// NamePools returns the configured pools, or the defaults when no file is
// set.
func (c Config) NamePools() (service.NamePools, error) {
	if c.NamesFile == "" {
		return service.DefaultNamePools, nil
	}
	raw, err := os.ReadFile(c.NamesFile)
	if err != nil {
		return service.NamePools{}, fmt.Errorf("read names file: %w", err)
	}
	var pools service.NamePools
	if err := json.Unmarshal(raw, &pools); err != nil {
		return service.NamePools{}, fmt.Errorf("decode names file: %w", err)
	}
	if len(pools.First) == 0 || len(pools.Last) == 0 {
		return service.NamePools{}, errors.New("names file: first and last must not be empty")
	}
	return pools, nil
}
