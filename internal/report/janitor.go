package report

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lego3072/rentready-ai/internal/store"
)

const purgeInterval = 1 * time.Hour

// Janitor periodically deletes share tokens that have passed their expiry.
type Janitor struct {
	store *store.Store
}

// NewJanitor creates a Janitor.
func NewJanitor(st *store.Store) *Janitor {
	return &Janitor{store: st}
}

// Run starts the purge loop. It blocks until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	log.Info().Msg("Share token janitor started")

	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Share token janitor stopped")
			return
		case <-ticker.C:
			j.purge(ctx)
		}
	}
}

func (j *Janitor) purge(ctx context.Context) {
	n, err := j.store.PurgeExpiredShareTokens(ctx, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("Share token purge failed")
		return
	}
	if n > 0 {
		log.Info().Int64("purged", n).Msg("Expired share tokens purged")
	}
}
