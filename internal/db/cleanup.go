package db

import (
	"context"
	"log/slog"
	"time"
)

const DefaultCleanupInterval = 1 * time.Hour

// CleanupService periodically removes expired refresh tokens and clears
// lapsed password-reset tokens. Revoked-but-unexpired tokens are kept for
// audit history.
type CleanupService struct {
	refreshTokens *RefreshTokenRepository
	users         *UserRepository
	interval      time.Duration
}

func NewCleanupService(refreshTokens *RefreshTokenRepository, users *UserRepository) *CleanupService {
	return &CleanupService{
		refreshTokens: refreshTokens,
		users:         users,
		interval:      DefaultCleanupInterval,
	}
}

func (s *CleanupService) Start(ctx context.Context) {
	slog.Info("starting token cleanup service", "component", "cleanup", "interval", s.interval)

	s.runCleanup(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping token cleanup service", "component", "cleanup")
			return
		case <-ticker.C:
			s.runCleanup(ctx)
		}
	}
}

func (s *CleanupService) runCleanup(ctx context.Context) {
	now := time.Now().UTC()

	refreshDeleted, err := s.refreshTokens.DeleteExpired(ctx, now)
	if err != nil {
		slog.Error("error deleting expired refresh tokens", "component", "cleanup", "error", err)
	} else if refreshDeleted > 0 {
		slog.Info("deleted expired refresh tokens", "component", "cleanup", "count", refreshDeleted)
	}

	resetCleared, err := s.users.ClearExpiredResetTokens(ctx, now)
	if err != nil {
		slog.Error("error clearing expired reset tokens", "component", "cleanup", "error", err)
	} else if resetCleared > 0 {
		slog.Info("cleared expired reset tokens", "component", "cleanup", "count", resetCleared)
	}
}
