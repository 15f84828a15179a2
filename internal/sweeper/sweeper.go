package sweeper

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"unichat-relay/internal/domain"
	"unichat-relay/internal/media"
	"unichat-relay/pkg/logger"
)

// mediaReferenceChecker is the slice of the repository the sweeper needs.
type mediaReferenceChecker interface {
	MediaURLReferenced(ctx context.Context, localURL string) (bool, error)
}

// Sweeper periodically removes staged outbound media files that no message
// row references. A failed send persists no row but leaves its staged file
// behind; this reclaims those orphans once they are old enough that no
// in-flight send can still be using them.
type Sweeper struct {
	repo     mediaReferenceChecker
	store    *media.Store
	interval time.Duration
	minAge   time.Duration

	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
	mu       sync.RWMutex

	lastRunAt    time.Time
	runsCount    int64
	filesRemoved int64
}

type Status struct {
	Running      bool          `json:"running"`
	LastRunAt    time.Time     `json:"lastRunAt,omitempty"`
	NextRunAt    time.Time     `json:"nextRunAt,omitempty"`
	RunsCount    int64         `json:"runsCount"`
	FilesRemoved int64         `json:"filesRemoved"`
	Interval     time.Duration `json:"interval"`
}

func New(repo mediaReferenceChecker, store *media.Store, interval, minAge time.Duration) *Sweeper {
	return &Sweeper{
		repo:     repo,
		store:    store,
		interval: interval,
		minAge:   minAge,
	}
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()

	if s.running {
		s.mu.Unlock()
		logger.Warnf("Sweeper is already running")
		return nil
	}

	s.running = true
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	s.mu.Unlock()

	logger.Infof("Starting media sweeper with interval: %v", s.interval)

	go s.run(ctx)

	return nil
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)

		case <-s.stopChan:
			logger.Warnf("Sweeper received stop signal")
			return

		case <-ctx.Done():
			logger.Warnf("Sweeper context cancelled")
			return
		}
	}
}

// Sweep runs one pass over both platforms' staging directories.
func (s *Sweeper) Sweep(ctx context.Context) {
	s.mu.Lock()
	s.lastRunAt = time.Now()
	s.runsCount++
	runNumber := s.runsCount
	s.mu.Unlock()

	removed := 0
	for _, platform := range []domain.Platform{domain.PlatformWhatsApp, domain.PlatformMessenger} {
		removed += s.sweepDir(ctx, platform)
	}

	s.mu.Lock()
	s.filesRemoved += int64(removed)
	s.mu.Unlock()

	if removed > 0 {
		logger.Infof("[Sweep #%d] Removed %d orphaned staged files", runNumber, removed)
	} else {
		logger.Debugf("[Sweep #%d] No orphaned staged files", runNumber)
	}
}

func (s *Sweeper) sweepDir(ctx context.Context, platform domain.Platform) int {
	dir := s.store.SentDir(platform)

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Errorf("Failed to read staging dir %s: %v", dir, err)
		return 0
	}

	cutoff := time.Now().Add(-s.minAge)
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		localURL := s.store.URLFor(platform, domain.DirectionSent, entry.Name())
		referenced, err := s.repo.MediaURLReferenced(ctx, localURL)
		if err != nil {
			logger.Errorf("Failed to check reference for %s: %v", localURL, err)
			continue
		}
		if referenced {
			continue
		}

		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			logger.Errorf("Failed to remove orphaned file %s: %v", entry.Name(), err)
			continue
		}

		logger.Infof("Removed orphaned staged file %s", localURL)
		removed++
	}

	return removed
}

func (s *Sweeper) Stop() error {
	s.mu.Lock()

	if !s.running {
		s.mu.Unlock()
		logger.Warnf("Sweeper is not running")
		return nil
	}

	s.running = false
	stopChan := s.stopChan
	doneChan := s.doneChan
	s.mu.Unlock()

	close(stopChan)
	<-doneChan

	logger.Infof("Sweeper stopped")
	return nil
}

func (s *Sweeper) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Sweeper) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := Status{
		Running:      s.running,
		LastRunAt:    s.lastRunAt,
		RunsCount:    s.runsCount,
		FilesRemoved: s.filesRemoved,
		Interval:     s.interval,
	}

	if s.running && !s.lastRunAt.IsZero() {
		status.NextRunAt = s.lastRunAt.Add(s.interval)
	}

	return status
}
