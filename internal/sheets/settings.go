package sheets

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/xchangebot/ledger/internal/cache"
	"github.com/xchangebot/ledger/internal/domain"
	"github.com/xchangebot/ledger/internal/money"
)

// chatField renders a chat id the way the auxiliary tables store it: empty
// for the legacy global rows, decimal text otherwise.
func chatField(chatID int64) string {
	if chatID == 0 {
		return ""
	}
	return strconv.FormatInt(chatID, 10)
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// SaveDaySettings writes today's rate and commission for a chat: the
// existing row for that chat is overwritten in place, otherwise a new row is
// appended.
func (s *Store) SaveDaySettings(ctx context.Context, chatID int64, rate, commission float64) (bool, error) {
	ws, err := s.cli.Worksheet(ctx, daySettingsSheet, daySettingsHeaders)
	if err != nil {
		s.log.Error().Err(err).Msg("save day settings")
		return false, nil
	}
	rows, err := ws.Rows(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("save day settings")
		return false, nil
	}

	chatStr := chatField(chatID)
	row := []string{
		domain.Today(s.now()),
		strconv.FormatFloat(rate, 'f', -1, 64),
		strconv.FormatFloat(commission, 'f', -1, 64),
		chatStr,
	}

	updated := false
	for i, r := range rows {
		if i == 0 {
			continue
		}
		if cell(r, 3) == chatStr {
			if err := ws.UpdateRow(ctx, i+1, row); err != nil {
				s.log.Error().Err(err).Msg("save day settings")
				return false, nil
			}
			updated = true
			break
		}
	}
	if !updated {
		if err := ws.Append(ctx, row); err != nil {
			s.log.Error().Err(err).Msg("save day settings")
			return false, nil
		}
	}

	s.cache.OnWrite(cache.WriteSaveDaySettings)
	s.log.Info().Int64("chat_id", chatID).Float64("rate", rate).Float64("commission", commission).
		Msg("day settings saved")
	return true, nil
}

// DaySettings returns the current settings for a chat: the chronologically
// latest row matching that chat (sorted by the date column, not row order,
// to tolerate out-of-order appends). A zero chatID reads the latest row
// regardless of chat. Nil means no settings exist.
func (s *Store) DaySettings(ctx context.Context, chatID int64) (*domain.DaySettings, error) {
	key := cache.Key(cache.NSDaySettings, chatID)
	return cache.Through(s.cache, key, false, func() (*domain.DaySettings, error) {
		ws, err := s.cli.Worksheet(ctx, daySettingsSheet, daySettingsHeaders)
		if err != nil {
			s.log.Error().Err(err).Msg("get day settings")
			return nil, nil
		}
		rows, err := ws.Rows(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("get day settings")
			return nil, nil
		}
		if len(rows) <= 1 {
			return nil, nil
		}

		data := rows[1:]
		if chatID != 0 {
			chatStr := chatField(chatID)
			filtered := data[:0:0]
			for _, r := range data {
				if cell(r, 3) == chatStr {
					filtered = append(filtered, r)
				}
			}
			if len(filtered) == 0 {
				s.log.Info().Int64("chat_id", chatID).Msg("no day settings for chat")
				return nil, nil
			}
			data = filtered
		}

		sort.SliceStable(data, func(i, j int) bool {
			return parseDate(cell(data[i], 0)).Before(parseDate(cell(data[j], 0)))
		})
		latest := data[len(data)-1]

		rate, err := money.ParseFloat(cell(latest, 1))
		if err != nil {
			s.log.Warn().Str("value", cell(latest, 1)).Msg("unparsable day rate")
			rate = 0
		}
		commission, err := money.ParseFloat(cell(latest, 2))
		if err != nil {
			s.log.Warn().Str("value", cell(latest, 2)).Msg("unparsable day commission")
			commission = 0
		}

		date := cell(latest, 0)
		if date == "" {
			date = domain.Today(s.now())
		}
		return &domain.DaySettings{Date: date, Rate: rate, CommissionPercent: commission}, nil
	})
}

// CurrentRate returns the chat's day rate when it is set and positive.
func (s *Store) CurrentRate(ctx context.Context, chatID int64) (float64, bool, error) {
	ds, err := s.DaySettings(ctx, chatID)
	if err != nil || ds == nil || ds.Rate <= 0 {
		return 0, false, nil
	}
	return ds.Rate, true, nil
}

// IsDayOpen reports whether the chat's trading day is open: the latest
// status row for the chat (sorted by the time column) must carry today's
// date and an open marker. A chat with no rows ever appended is closed.
// A zero chatID checks the legacy global rows (empty chat field) first,
// then falls back to "open in any chat today".
func (s *Store) IsDayOpen(ctx context.Context, chatID int64) (bool, error) {
	key := cache.Key(cache.NSIsDayOpen, chatID)
	return cache.Through(s.cache, key, false, func() (bool, error) {
		ws, err := s.cli.Worksheet(ctx, dayStatusSheet, dayStatusHeaders)
		if err != nil {
			s.log.Error().Err(err).Msg("check day status")
			return false, nil
		}
		rows, err := ws.Rows(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("check day status")
			return false, nil
		}
		if len(rows) <= 1 {
			return false, nil
		}

		data := rows[1:]
		today := domain.Today(s.now())

		if chatID != 0 {
			chatStr := chatField(chatID)
			filtered := data[:0:0]
			for _, r := range data {
				if cell(r, 3) == chatStr {
					filtered = append(filtered, r)
				}
			}
			if len(filtered) == 0 {
				return false, nil
			}
			sort.SliceStable(filtered, func(i, j int) bool {
				return cell(filtered[i], 2) < cell(filtered[j], 2)
			})
			latest := filtered[len(filtered)-1]
			return cell(latest, 0) == today && cell(latest, 1) == domain.DayOpen, nil
		}

		todayRows := data[:0:0]
		for _, r := range data {
			if cell(r, 0) == today {
				todayRows = append(todayRows, r)
			}
		}
		if len(todayRows) == 0 {
			return false, nil
		}

		global := todayRows[:0:0]
		for _, r := range todayRows {
			if cell(r, 3) == "" {
				global = append(global, r)
			}
		}
		if len(global) > 0 {
			sort.SliceStable(global, func(i, j int) bool {
				return cell(global[i], 2) < cell(global[j], 2)
			})
			return cell(global[len(global)-1], 1) == domain.DayOpen, nil
		}

		for _, r := range todayRows {
			if cell(r, 1) == domain.DayOpen {
				return true, nil
			}
		}
		return false, nil
	})
}

// SetDayStatus appends an open/closed marker for the chat.
func (s *Store) SetDayStatus(ctx context.Context, chatID int64, open bool) (bool, error) {
	ws, err := s.cli.Worksheet(ctx, dayStatusSheet, dayStatusHeaders)
	if err != nil {
		s.log.Error().Err(err).Msg("set day status")
		return false, nil
	}

	status := domain.DayClosed
	if open {
		status = domain.DayOpen
	}
	now := s.now().In(domain.MSK)
	row := []string{
		now.Format(domain.DateLayout),
		status,
		now.Format("15:04:05"),
		chatField(chatID),
	}
	if err := ws.Append(ctx, row); err != nil {
		s.log.Error().Err(err).Msg("set day status")
		return false, nil
	}

	s.cache.OnWrite(cache.WriteSetDayStatus)
	s.log.Info().Int64("chat_id", chatID).Str("status", status).Msg("day status set")
	return true, nil
}

func parseDate(s string) time.Time {
	t, err := time.ParseInLocation(domain.DateLayout, s, domain.MSK)
	if err != nil {
		return time.Time{}
	}
	return t
}
