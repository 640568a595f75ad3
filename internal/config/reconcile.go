package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ReconcileConfig tunes bulk reconciliation and the scheduler loop.
type ReconcileConfig struct {
	RunInterval      time.Duration `mapstructure:"runInterval"`
	JobTimeout       time.Duration `mapstructure:"jobTimeout"`
	Parallelism      int           `mapstructure:"parallelism"`
	TransientRetries int           `mapstructure:"transientRetries"`
	RetryBackoff     time.Duration `mapstructure:"retryBackoff"`
}

func DefaultReconcileConfig() ReconcileConfig {
	return ReconcileConfig{
		RunInterval:      15 * time.Minute,
		JobTimeout:       5 * time.Minute,
		Parallelism:      8,
		TransientRetries: 3,
		RetryBackoff:     200 * time.Millisecond,
	}
}

// ReconcileConfigHolder exposes the current reconcile tunables with hot reload.
type ReconcileConfigHolder struct {
	current atomic.Value // holds ReconcileConfig
}

func NewReconcileConfigHolder() (*ReconcileConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("reconcile")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/bengkel/config") // Volume-mounted config
	v.AddConfigPath("/etc/bengkel")            // System config
	v.AddConfigPath(".")                       // Current directory (dev mode)

	v.SetEnvPrefix("BENGKEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// if config file not found, use defaults
		defaults := DefaultReconcileConfig()
		v.SetDefault("reconcile.runInterval", defaults.RunInterval)
		v.SetDefault("reconcile.jobTimeout", defaults.JobTimeout)
		v.SetDefault("reconcile.parallelism", defaults.Parallelism)
		v.SetDefault("reconcile.transientRetries", defaults.TransientRetries)
		v.SetDefault("reconcile.retryBackoff", defaults.RetryBackoff)
	}

	var cfg ReconcileConfig
	if err := v.UnmarshalKey("reconcile", &cfg); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	if err := validateReconcileConfig(cfg); err != nil {
		return nil, err
	}

	holder := &ReconcileConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated ReconcileConfig
		if err := v.UnmarshalKey("reconcile", &updated); err != nil {
			log.Printf("[reconcile-config] reload failed: %v", err)
			return
		}
		updated = updated.withDefaults()
		if err := validateReconcileConfig(updated); err != nil {
			log.Printf("[reconcile-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[reconcile-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *ReconcileConfigHolder) Get() ReconcileConfig {
	return h.current.Load().(ReconcileConfig)
}

func (c ReconcileConfig) withDefaults() ReconcileConfig {
	defaults := DefaultReconcileConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.Parallelism <= 0 {
		c.Parallelism = defaults.Parallelism
	}
	if c.TransientRetries < 0 {
		c.TransientRetries = defaults.TransientRetries
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaults.RetryBackoff
	}
	return c
}

func validateReconcileConfig(cfg ReconcileConfig) error {
	if cfg.Parallelism > 64 {
		return errors.New("reconcile.parallelism cannot exceed 64")
	}
	if cfg.JobTimeout > time.Hour {
		return errors.New("reconcile.jobTimeout cannot exceed one hour")
	}
	return nil
}
