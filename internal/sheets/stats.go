package sheets

import (
	"context"

	"github.com/xchangebot/ledger/internal/cache"
	"github.com/xchangebot/ledger/internal/domain"
)

// DailyStatistics aggregates today's transactions for a chat. Rows are
// matched by structured chat id or by legacy group label (including the
// configured historical label mappings); day settings provide the fallback
// commission and the settlement conversion rate. Results are cached per
// (day, chat); force refresh clears every statistics entry first.
func (s *Store) DailyStatistics(ctx context.Context, chatID int64, forceRefresh bool) (domain.DayStats, error) {
	today := domain.Today(s.now())
	key := cache.Key(cache.NSDailyStatistics, chatID, today)
	if forceRefresh {
		s.cache.InvalidatePattern(cache.NSDailyStatistics)
	}

	return cache.Through(s.cache, key, forceRefresh, func() (domain.DayStats, error) {
		recs, err := s.Transactions(ctx, domain.TransactionQuery{Date: today})
		if err != nil {
			s.log.Error().Err(err).Msg("daily statistics")
			return domain.DayStats{Date: today, MethodsCount: map[string]int{}}, nil
		}

		if chatID != 0 {
			matched := make([]domain.TransactionRecord, 0, len(recs))
			for _, rec := range recs {
				if m, ok := domain.MatchChat(rec, chatID, s.legacy); ok {
					matched = append(matched, m)
				}
			}
			recs = matched
		}

		day, _ := s.DaySettings(ctx, chatID)
		return domain.ComputeDayStats(today, recs, day), nil
	})
}
