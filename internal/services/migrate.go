package services

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/xchangebot/ledger/internal/domain"
)

// MigrateLegacyGroups backfills structured chat ids onto rows that only carry
// a historical group label. It walks every stored transaction once, resolves
// each unstructured chat field through the configured label mapping (exact
// label or prefix), and rewrites the row via the normal update path. Rows
// that cannot be resolved are logged and left alone; the migration never
// aborts on a single bad row. Returns the number of rows rewritten.
//
// The migration is idempotent: rewritten rows carry a structured id and are
// skipped on the next run.
func MigrateLegacyGroups(ctx context.Context, backend Backend, legacy map[string]int64, log zerolog.Logger) (int, error) {
	log = log.With().Str("component", "migration").Logger()

	recs, err := backend.Transactions(ctx, domain.TransactionQuery{ForceRefresh: true})
	if err != nil {
		return 0, err
	}

	migrated := 0
	for _, rec := range recs {
		if domain.LooksStructured(rec.ChatID) {
			continue
		}

		chatID, ok := resolveLabel(rec, legacy)
		if !ok {
			log.Warn().Int64("id", rec.ID).Str("group", rec.Group).
				Msg("no chat id mapping for legacy group")
			continue
		}

		idStr := chatIDString(chatID)
		done, err := backend.UpdateTransaction(ctx, rec.ID, domain.TransactionUpdate{ChatID: &idStr})
		if err != nil || !done {
			log.Error().Err(err).Int64("id", rec.ID).Msg("legacy group migration update failed")
			continue
		}
		migrated++
	}

	if migrated > 0 {
		log.Info().Int("migrated", migrated).Int("total", len(recs)).
			Msg("legacy group migration complete")
	}
	return migrated, nil
}

// resolveLabel maps a record's group label to a structured chat id. The group
// may itself be a numeric id, an exact configured label, or start with one.
func resolveLabel(rec domain.TransactionRecord, legacy map[string]int64) (int64, bool) {
	if domain.LooksStructured(rec.Group) {
		id, _ := strconv.ParseInt(rec.Group, 10, 64)
		return id, true
	}
	for label, id := range legacy {
		if rec.Group == label || strings.HasPrefix(rec.Group, label) {
			return id, true
		}
	}
	return 0, false
}
