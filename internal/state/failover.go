package state

import (
	"context"

	"github.com/rs/zerolog"
)

// FailoverRepository reads and writes through a primary repository and falls
// back to a secondary one when the primary is unreachable. A lost Redis
// connection then degrades the bot to per-process dialog state instead of
// breaking conversations.
type FailoverRepository struct {
	primary  Repository
	fallback Repository
	logger   *zerolog.Logger
}

// NewFailoverRepository creates a failover wrapper over two repositories.
func NewFailoverRepository(primary, fallback Repository, logger *zerolog.Logger) *FailoverRepository {
	return &FailoverRepository{primary: primary, fallback: fallback, logger: logger}
}

func (r *FailoverRepository) Get(ctx context.Context, userID int64) (*Session, error) {
	s, err := r.primary.Get(ctx, userID)
	if err == nil {
		return s, nil
	}
	r.logger.Warn().Err(err).Int64("user_id", userID).Msg("primary session store get failed, using fallback")
	return r.fallback.Get(ctx, userID)
}

func (r *FailoverRepository) Set(ctx context.Context, session *Session) error {
	if err := r.primary.Set(ctx, session); err != nil {
		r.logger.Warn().Err(err).Int64("user_id", session.UserID).Msg("primary session store set failed, using fallback")
		return r.fallback.Set(ctx, session)
	}
	return nil
}

func (r *FailoverRepository) Clear(ctx context.Context, userID int64) error {
	err := r.primary.Clear(ctx, userID)
	if err != nil {
		r.logger.Warn().Err(err).Int64("user_id", userID).Msg("primary session store clear failed, using fallback")
		return r.fallback.Clear(ctx, userID)
	}
	// Clear the fallback too so stale state cannot resurface after failover.
	_ = r.fallback.Clear(ctx, userID)
	return nil
}
