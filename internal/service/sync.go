package service

import (
	"context"
	"path/filepath"

	"github.com/critlabs/crit/internal/store"
	"github.com/critlabs/crit/internal/sync"
)

// Sync reconciles the projection per mode, backing the `crit sync`
// CLI verb. Unlike every other operation it does not touch the SCM, so
// it bypasses open()/close() rather than building a full session.
func (s *Service) Sync(ctx context.Context, mode sync.Mode, acceptReviewID string) (sync.Report, error) {
	if err := s.checkVersion(); err != nil {
		return sync.Report{}, err
	}

	dbPath := filepath.Join(s.RepoRoot, ".crit", "index.db")
	st, err := store.Open(dbPath)
	if err != nil {
		return sync.Report{}, internalf("open store", err)
	}
	defer st.Close()

	report, err := sync.Sync(ctx, st, s.RepoRoot, mode, acceptReviewID)
	if err != nil {
		return sync.Report{}, internalf("sync", err)
	}
	return report, nil
}
