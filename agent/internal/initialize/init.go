// Package initialize wires the agent's components from configuration.
package initialize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tracker-guard/agent/internal/bus"
	"tracker-guard/agent/internal/command"
	"tracker-guard/agent/internal/config"
	"tracker-guard/agent/internal/cookies"
	"tracker-guard/agent/internal/coordinator"
	"tracker-guard/agent/internal/db"
	"tracker-guard/agent/internal/firewall"
	"tracker-guard/agent/internal/indicator"
	"tracker-guard/agent/internal/kv"
	"tracker-guard/agent/internal/notify"
	"tracker-guard/agent/internal/observer"
	"tracker-guard/agent/internal/popup"
	"tracker-guard/agent/internal/premium"
	"tracker-guard/agent/internal/state"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Storage is the persistent half of the agent, shared by every context.
type Storage struct {
	DB    *gorm.DB
	Store kv.Store
}

// OpenStorage opens the database and the key-value store it backs (or the
// redis/memory store named by StoreDriver).
func OpenStorage(cfg config.AppConfig) (*Storage, error) {
	gdb, err := db.Init(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	store, err := openStore(cfg, gdb)
	if err != nil {
		return nil, err
	}
	return &Storage{DB: gdb, Store: store}, nil
}

func openStore(cfg config.AppConfig, gdb *gorm.DB) (kv.Store, error) {
	switch cfg.StoreDriver {
	case "", "sqlite", "sql", "mysql":
		return kv.NewSQL(gdb), nil
	case "memory":
		return kv.NewMemory(), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		return kv.NewRedis(rdb, cfg.RedisPrefix), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func (s *Storage) Close() error {
	var errs []error
	if s.Store != nil {
		errs = append(errs, s.Store.Close())
	}
	if s.DB != nil {
		if sqlDB, err := s.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}

// NewSigner builds the bus token signer from configuration.
func NewSigner(cfg config.AppConfig) *bus.Signer {
	return &bus.Signer{Secret: []byte(cfg.BusSecret), Issuer: "tracker-guard", ExpMin: cfg.BusTokenTTLMin}
}

// App is the background context: coordinator, rule manager and bus.
type App struct {
	Cfg config.AppConfig
	*Storage
	Host        firewall.Host
	Rules       *firewall.Manager
	Coordinator *coordinator.Coordinator
	Dispatcher  *command.Dispatcher
	Observer    *observer.Observer
	Board       *notify.Board
	Signer      *bus.Signer
	Server      *bus.Server
}

type Option func(*options)

type options struct {
	ind   indicator.Multi
	clock coordinator.Clock
}

// WithIndicator adds a renderer next to the log indicator.
func WithIndicator(ind indicator.Indicator) Option {
	return func(o *options) { o.ind = append(o.ind, ind) }
}

func WithClock(c coordinator.Clock) Option { return func(o *options) { o.clock = c } }

// Build opens storage and assembles the background context.
func Build(cfg config.AppConfig, opts ...Option) (*App, error) {
	st, err := OpenStorage(cfg)
	if err != nil {
		return nil, err
	}
	return Assemble(cfg, st, opts...), nil
}

// Assemble wires the background context over already opened storage.
func Assemble(cfg config.AppConfig, st *Storage, opts ...Option) *App {
	o := options{ind: indicator.Multi{indicator.Log{}}, clock: coordinator.SystemClock}
	for _, opt := range opts {
		opt(&o)
	}

	host := firewall.NewDBHost(st.DB)
	rules := firewall.NewManager(host)
	coord := coordinator.New(state.ForCoordinator(st.Store), rules, o.ind, coordinator.WithClock(o.clock))

	d := command.NewDispatcher()
	coord.Register(d)

	board := notify.NewBoard()
	obs := observer.New(state.ForObserver(st.Store), d, board, cfg.Trackers)
	obs.Register(d, observer.NewHTTPFetcher())

	signer := NewSigner(cfg)
	return &App{
		Cfg:         cfg,
		Storage:     st,
		Host:        host,
		Rules:       rules,
		Coordinator: coord,
		Dispatcher:  d,
		Observer:    obs,
		Board:       board,
		Signer:      signer,
		Server:      bus.NewServer(d, signer),
	}
}

// Start runs the lifecycle hook for this launch: first install when no
// install time is recorded, browser startup otherwise.
func (a *App) Start(ctx context.Context) error {
	installed, err := a.Coordinator.Installed(ctx)
	if err != nil {
		return err
	}
	if !installed {
		return a.Coordinator.OnInstalled(ctx)
	}
	return a.Coordinator.OnStartup(ctx)
}

// NewPopup builds a popup controller talking to the background through
// sender.
func NewPopup(cfg config.AppConfig, st *Storage, sender command.Sender) *popup.Controller {
	trial := premium.NewTrial(state.ForTrial(st.Store), cfg.TrialDays)
	seed := uint64(time.Now().UnixNano())
	return popup.New(state.ForPopup(st.Store), sender,
		popup.WithCookies(cookies.NewDB(st.DB)),
		popup.WithPremium(trial, premium.NewSimulatedBreachChecker(seed), premium.NewSimulatedPermissions(seed+1)),
		popup.WithFreeEmailLimit(cfg.FreeEmailLimit),
	)
}
