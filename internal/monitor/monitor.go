// Package monitor periodically writes the director's status snapshot to a
// JSON file for external tooling.
package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hordenight/siege/internal/logging"
	"github.com/hordenight/siege/internal/siege"
)

// StatusFileName is the file written into Dependencies.Dir.
const StatusFileName = "status.json"

// StatusSource supplies the snapshot to write.
type StatusSource interface {
	Status() siege.Status
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Source     StatusSource
	LogManager *logging.SlogManager
	Dir        string
	// Interval between writes. Zero means one second.
	Interval time.Duration
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// Path returns the status file location.
func (s *Service) Path() string {
	return filepath.Join(s.deps.Dir, StatusFileName)
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus returns the current snapshot as indented JSON.
func (s *Service) GetProgramStatus() ([]byte, siege.Status) {
	st := s.deps.Source.Status()
	out, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		out = []byte(fmt.Sprintf(`{"error": %q}`, err.Error()))
	}
	return out, st
}

// WriteOnce replaces the status file with the current snapshot.
func (s *Service) WriteOnce() error {
	data, _ := s.GetProgramStatus()
	tmp := s.Path() + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing status file: %w", err)
	}
	if err := os.Rename(tmp, s.Path()); err != nil {
		return fmt.Errorf("replacing status file: %w", err)
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
			close(done)
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine", "path", s.Path())

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		var lastErr string
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := s.WriteOnce(); err != nil {
					if err.Error() != lastErr {
						logger.Error("Error writing status file", "error", err)
					}
					lastErr = err.Error()
					continue
				}
				lastErr = ""
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for the goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	running, done := s.isRunning, s.done
	if running {
		close(s.stopChan)
	}
	s.mu.Unlock()
	if running {
		<-done
	}
}
