// Package scheduler runs periodic housekeeping jobs in the background
package scheduler

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	defaultInterval  = time.Hour
	defaultUploadTTL = 24 * time.Hour
	jobTimeout       = 30 * time.Second
)

// TokenCleaner deletes expired password reset tokens
type TokenCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// MaintenanceScheduler periodically removes expired reset tokens and staged uploads left
// behind by interrupted imports
type MaintenanceScheduler struct {
	tokens    TokenCleaner
	uploadDir string
	uploadTTL time.Duration
	interval  time.Duration
	logger    *log.Logger
	now       func() time.Time
}

// NewMaintenanceScheduler creates a scheduler. An empty uploadDir disables upload sweeping;
// a nil output writes where the standard logger does.
func NewMaintenanceScheduler(tokens TokenCleaner, uploadDir string, uploadTTL, interval time.Duration, output io.Writer) *MaintenanceScheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	if uploadTTL <= 0 {
		uploadTTL = defaultUploadTTL
	}
	if output == nil {
		output = log.Writer()
	}
	return &MaintenanceScheduler{
		tokens:    tokens,
		uploadDir: uploadDir,
		uploadTTL: uploadTTL,
		interval:  interval,
		logger:    log.New(output, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC),
		now:       time.Now,
	}
}

// Start launches the loop in a background goroutine and returns a stop function that waits
// for the running pass to finish
func (s *MaintenanceScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.RunOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}

// RunOnce performs a single maintenance pass
func (s *MaintenanceScheduler) RunOnce(ctx context.Context) {
	if s.tokens != nil {
		jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
		removed, err := s.tokens.CleanupExpired(jobCtx)
		cancel()
		if err != nil {
			s.logger.Printf("reset token cleanup failed: %v", err)
		} else if removed > 0 {
			s.logger.Printf("removed %d expired reset tokens", removed)
		}
	}

	if s.uploadDir != "" {
		removed, err := s.sweepUploads()
		if err != nil {
			s.logger.Printf("upload sweep failed: %v", err)
		} else if removed > 0 {
			s.logger.Printf("removed %d stale uploads from %s", removed, s.uploadDir)
		}
	}
}

// sweepUploads deletes regular files in the upload directory older than uploadTTL
func (s *MaintenanceScheduler) sweepUploads() (int, error) {
	entries, err := os.ReadDir(s.uploadDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := s.now().Add(-s.uploadTTL)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.uploadDir, entry.Name())); err != nil {
			s.logger.Printf("failed to remove stale upload %s: %v", entry.Name(), err)
			continue
		}
		removed++
	}
	return removed, nil
}
