package services

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const maintenancePollInterval = 1 * time.Hour

// MaintenanceScheduler periodically removes output clips past their
// retention window and scratch directories orphaned by killed workers.
type MaintenanceScheduler struct {
	clipsDir   string
	scratchDir string
	retention  time.Duration
	stopChan   chan struct{}
}

func NewMaintenanceScheduler(clipsDir, scratchDir string, retentionDays int) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		clipsDir:   clipsDir,
		scratchDir: scratchDir,
		retention:  time.Duration(retentionDays) * 24 * time.Hour,
		stopChan:   make(chan struct{}),
	}
}

func (s *MaintenanceScheduler) Start() {
	go s.loop()
	log.Printf("Maintenance scheduler started (retention: %s)", s.retention)
}

func (s *MaintenanceScheduler) Stop() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}
}

func (s *MaintenanceScheduler) loop() {
	// Run on startup as well as by interval.
	s.runOnce(time.Now())

	ticker := time.NewTicker(maintenancePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runOnce(time.Now())
		}
	}
}

func (s *MaintenanceScheduler) runOnce(now time.Time) {
	removed := s.cleanOldClips(now)
	removed += s.cleanStaleScratch(now)
	if removed > 0 {
		log.Printf("Maintenance: removed %d stale files/directories", removed)
	}
}

func (s *MaintenanceScheduler) cleanOldClips(now time.Time) int {
	entries, err := os.ReadDir(s.clipsDir)
	if err != nil {
		return 0
	}

	removed := 0
	cutoff := now.Add(-s.retention)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".mp4") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.clipsDir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed
}

// cleanStaleScratch removes job scratch directories older than a day;
// live jobs finish well inside the hard time limit.
func (s *MaintenanceScheduler) cleanStaleScratch(now time.Time) int {
	entries, err := os.ReadDir(s.scratchDir)
	if err != nil {
		return 0
	}

	removed := 0
	cutoff := now.Add(-24 * time.Hour)
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "askaraai_") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.scratchDir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed
}
