package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

type unknownValue struct{}

func (unknownValue) String() string { return "<unknown>" }

// Unknown is returned by Lookup for keys with neither a value nor a default.
var Unknown any = unknownValue{}

// Provider resolves tunables to their live value or built-in default.
// It never fails: unknown keys are logged once and read as zero values.
// Reads and file reloads share a lock; viper itself is not safe for
// concurrent use, so the wrapped instance must not be written elsewhere
// once Watch runs.
type Provider struct {
	v   *viper.Viper
	log *slog.Logger
	rw  sync.RWMutex

	mu     sync.Mutex
	warned map[string]bool
}

// NewProvider wraps v. A nil logger falls back to slog.Default.
func NewProvider(v *viper.Viper, log *slog.Logger) *Provider {
	if log == nil {
		log = slog.Default()
	}
	return &Provider{v: v, log: log, warned: make(map[string]bool)}
}

// Global returns a Provider over the package-level viper instance.
func Global(log *slog.Logger) *Provider {
	return NewProvider(viper.GetViper(), log)
}

// Lookup returns the live value for key, or Unknown.
func (p *Provider) Lookup(key string) any {
	p.rw.RLock()
	set := p.v.IsSet(key)
	var val any
	if set {
		val = p.v.Get(key)
	}
	p.rw.RUnlock()

	if !set {
		p.warnOnce(key)
		return Unknown
	}
	return val
}

func (p *Provider) warnOnce(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.warned[key] {
		return
	}
	p.warned[key] = true
	p.log.Warn("Unknown config key with no default", "key", key)
}

// Int returns key as an int, or 0 when unknown.
func (p *Provider) Int(key string) int {
	v := p.Lookup(key)
	if v == Unknown {
		return 0
	}
	return cast.ToInt(v)
}

// Float returns key as a float64, or 0 when unknown.
func (p *Provider) Float(key string) float64 {
	v := p.Lookup(key)
	if v == Unknown {
		return 0
	}
	return cast.ToFloat64(v)
}

// Bool returns key as a bool, or false when unknown.
func (p *Provider) Bool(key string) bool {
	v := p.Lookup(key)
	if v == Unknown {
		return false
	}
	return cast.ToBool(v)
}

// String returns key as a string, or "" when unknown.
func (p *Provider) String(key string) string {
	v := p.Lookup(key)
	if v == Unknown {
		return ""
	}
	return cast.ToString(v)
}

// Strings returns key as a string slice, or nil when unknown.
func (p *Provider) Strings(key string) []string {
	v := p.Lookup(key)
	if v == Unknown {
		return nil
	}
	return cast.ToStringSlice(v)
}

// Reload re-reads the config file. A file that fails to parse leaves the
// previous values in place.
func (p *Provider) Reload() error {
	p.rw.Lock()
	defer p.rw.Unlock()
	return p.v.ReadInConfig()
}

// Watch reloads the config file whenever it is written until ctx is done.
// The directory is watched rather than the file so editors that replace the
// file on save are followed.
func (p *Provider) Watch(ctx context.Context) error {
	p.rw.RLock()
	file := p.v.ConfigFileUsed()
	p.rw.RUnlock()
	if file == "" {
		return errors.New("no config file loaded")
	}
	file = filepath.Clean(file)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(file)); err != nil {
		w.Close()
		return fmt.Errorf("watching %s: %w", file, err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != file || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				if err := p.Reload(); err != nil {
					p.log.Error("Failed to reload config", "file", file, "error", err)
					continue
				}
				p.log.Info("Config file changed, reloaded", "file", file)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				p.log.Error("Config watcher error", "error", err)
			}
		}
	}()
	return nil
}
