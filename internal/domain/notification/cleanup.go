package notification

import (
	"context"
	"time"

	"carshare/internal/pkg/logging"
)

const DefaultRetention = 90 * 24 * time.Hour

// PurgeRead removes read notifications older than retention.
func (s *Service) PurgeRead(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	started := time.Now()

	deleted, err := s.repo.DeleteReadBefore(ctx, started.Add(-retention).UTC())
	if err != nil {
		s.logger.WithField("error", err.Error()).Error("notification cleanup failed")
		return 0, err
	}

	s.logger.WithFields(logging.Fields{
		"deleted":  deleted,
		"duration": time.Since(started).String(),
	}).Info("notification cleanup completed")
	return deleted, nil
}
