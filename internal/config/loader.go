package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader reads a YAML config file and watches it for changes.
type Loader struct {
	path     string
	mu       sync.RWMutex
	current  *PipelineConfig
	onChange []func(*PipelineConfig)
	watcher  *fsnotify.Watcher
}

// NewLoader creates a Loader and performs the initial load.
func NewLoader(path string) (*Loader, error) {
	l := &Loader{path: path}
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = cfg
	return l, nil
}

// Config returns the current (latest) configuration.
func (l *Loader) Config() *PipelineConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked whenever the config reloads.
func (l *Loader) OnChange(fn func(*PipelineConfig)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch starts a background goroutine that hot-reloads the config on file changes.
// Call the returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", l.path, err)
	}
	l.watcher = w

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					cfg, err := l.load()
					if err != nil {
						// Log and continue with old config.
						continue
					}
					l.mu.Lock()
					l.current = cfg
					callbacks := make([]func(*PipelineConfig), len(l.onChange))
					copy(callbacks, l.onChange)
					l.mu.Unlock()
					for _, fn := range callbacks {
						fn(cfg)
					}
				}
			case <-w.Errors:
				// Ignore watcher errors.
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}

// Reload forces an immediate re-read of the config file.
func (l *Loader) Reload() (*PipelineConfig, error) {
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = cfg
	callbacks := make([]func(*PipelineConfig), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
	return cfg, nil
}

func (l *Loader) load() (*PipelineConfig, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", l.path, err)
	}
	var cfg PipelineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", l.path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *PipelineConfig) {
	if cfg.Runner.Workers == 0 {
		cfg.Runner.Workers = 32
	}
	if cfg.Runner.QueueDepth == 0 {
		cfg.Runner.QueueDepth = 10000
	}
	if cfg.Runner.EventTimeoutMs == 0 {
		cfg.Runner.EventTimeoutMs = 15000
	}
	if cfg.Runner.PlatformAttempts == 0 {
		cfg.Runner.PlatformAttempts = 3
	}
	if cfg.Runner.RedeliveryDelayMs == 0 {
		cfg.Runner.RedeliveryDelayMs = 2000
	}
	if cfg.Delivery.SendTimeoutMs == 0 {
		cfg.Delivery.SendTimeoutMs = 5000
	}
	if cfg.Delivery.SendAttempts == 0 {
		cfg.Delivery.SendAttempts = 3
	}
	if cfg.Delivery.SendBaseDelayMs == 0 {
		cfg.Delivery.SendBaseDelayMs = 200
	}
	if cfg.Dedup.ReserveTTLSeconds == 0 {
		cfg.Dedup.ReserveTTLSeconds = 300
	}
	if cfg.Dedup.CompleteTTLSeconds == 0 {
		cfg.Dedup.CompleteTTLSeconds = 86400
	}
	if cfg.Enrich.LookupTimeoutMs == 0 {
		cfg.Enrich.LookupTimeoutMs = 1000
	}
	if cfg.Digest.IntervalSeconds == 0 {
		cfg.Digest.IntervalSeconds = 900
	}
	if cfg.Digest.BatchSize == 0 {
		cfg.Digest.BatchSize = 1000
	}
	if cfg.Digest.StreamMaxLen == 0 {
		cfg.Digest.StreamMaxLen = 100000
	}
}
