package config

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type AppConfig struct {
	LogPath        string
	LogLevel       string
	DBDriver       string
	DBDSN          string
	StoreDriver    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisPrefix    string
	BusListen      string
	BusURL         string
	BusSecret      string
	BusTokenTTLMin int
	TrialDays      int
	FreeEmailLimit int
	Trackers       []string
}

var (
	mu  sync.RWMutex
	cfg AppConfig
	v   *viper.Viper
)

// DefaultPath is used when no --config flag is given.
const DefaultPath = "config/config.yaml"

func Init(path string) AppConfig {
	if path == "" {
		path = DefaultPath
	}
	dataDir := filepath.Join(os.TempDir(), "tracker-guard")

	nv := viper.New()
	nv.SetConfigFile(path)
	nv.SetConfigType("yaml")

	// defaults
	nv.SetDefault("agent.log_level", "info")
	nv.SetDefault("agent.db.driver", "sqlite")
	nv.SetDefault("agent.db.dsn", filepath.Join(dataDir, "agent.db"))
	nv.SetDefault("agent.store.driver", "sqlite")
	nv.SetDefault("agent.store.redis.addr", "127.0.0.1:6379")
	nv.SetDefault("agent.store.redis.db", 0)
	nv.SetDefault("agent.store.redis.prefix", "tracker-guard:")
	nv.SetDefault("agent.bus.listen", "127.0.0.1:9410")
	nv.SetDefault("agent.bus.url", "http://127.0.0.1:9410")
	nv.SetDefault("agent.bus.secret", "")
	nv.SetDefault("agent.bus.token_ttl_min", 60)
	nv.SetDefault("agent.trial_days", 7)
	nv.SetDefault("agent.free_email_limit", 1)
	nv.SetDefault("agent.trackers", []string{})
	_ = nv.ReadInConfig()

	mu.Lock()
	v = nv
	cfg = fromViper(nv)
	out := cfg
	mu.Unlock()
	return out
}

func fromViper(nv *viper.Viper) AppConfig {
	return AppConfig{
		LogPath:        nv.GetString("agent.log_path"),
		LogLevel:       nv.GetString("agent.log_level"),
		DBDriver:       nv.GetString("agent.db.driver"),
		DBDSN:          nv.GetString("agent.db.dsn"),
		StoreDriver:    nv.GetString("agent.store.driver"),
		RedisAddr:      nv.GetString("agent.store.redis.addr"),
		RedisPassword:  nv.GetString("agent.store.redis.password"),
		RedisDB:        nv.GetInt("agent.store.redis.db"),
		RedisPrefix:    nv.GetString("agent.store.redis.prefix"),
		BusListen:      nv.GetString("agent.bus.listen"),
		BusURL:         nv.GetString("agent.bus.url"),
		BusSecret:      nv.GetString("agent.bus.secret"),
		BusTokenTTLMin: nv.GetInt("agent.bus.token_ttl_min"),
		TrialDays:      nv.GetInt("agent.trial_days"),
		FreeEmailLimit: nv.GetInt("agent.free_email_limit"),
		Trackers:       nv.GetStringSlice("agent.trackers"),
	}
}

func Get() AppConfig {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Watch re-reads the config file whenever it changes on disk and hands the
// new values to fn. Only reloadable fields (log level, trackers) should be
// acted upon; connection settings need a restart.
func Watch(fn func(AppConfig)) {
	mu.RLock()
	nv := v
	mu.RUnlock()
	if nv == nil {
		return
	}
	nv.OnConfigChange(func(e fsnotify.Event) {
		mu.Lock()
		cfg = fromViper(nv)
		out := cfg
		mu.Unlock()
		if fn != nil {
			fn(out)
		}
	})
	nv.WatchConfig()
}

// DataDir returns the directory holding the default sqlite database.
func DataDir() string {
	c := Get()
	if c.DBDriver == "sqlite" && c.DBDSN != "" {
		return filepath.Dir(c.DBDSN)
	}
	return filepath.Join(os.TempDir(), "tracker-guard")
}
