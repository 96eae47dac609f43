package repo

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/xchangebot/ledger/internal/cache"
	"github.com/xchangebot/ledger/internal/domain"
	"github.com/xchangebot/ledger/internal/money"
)

// globalSettingsChatID marks the singleton settings row. The relational
// schema keeps one global ChatSettings record reused for every chat.
const globalSettingsChatID = 1

// Store is the relational implementation of the ledger contract. Reads go
// through the shared cache with the same invalidation registry as the
// spreadsheet store.
type Store struct {
	db    *gorm.DB
	cache *cache.Manager
	log   zerolog.Logger
	now   func() time.Time
}

// New builds a Store over an opened, migrated database handle.
func New(db *gorm.DB, c *cache.Manager, log zerolog.Logger) *Store {
	return &Store{
		db:    db,
		cache: c,
		log:   log.With().Str("component", "repo").Logger(),
		now:   time.Now,
	}
}

// WithClock overrides the time source (tests).
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) settings(tx *gorm.DB) (*domain.ChatSettings, error) {
	var cs domain.ChatSettings
	err := tx.First(&cs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cs = domain.ChatSettings{
			ChatID:    globalSettingsChatID,
			ChatName:  "Global Settings",
			CreatedAt: s.now().In(domain.MSK),
			UpdatedAt: s.now().In(domain.MSK),
		}
		if err := tx.Create(&cs).Error; err != nil {
			return nil, err
		}
		return &cs, nil
	}
	if err != nil {
		return nil, err
	}
	return &cs, nil
}

// AddTransaction normalizes the incoming fields and inserts a new row inside
// a database transaction. Errors are propagated: there is no safe default
// for a failed insert.
func (s *Store) AddTransaction(ctx context.Context, tx domain.NewTransaction) (int64, error) {
	amount, err := money.ParseAmount(tx.Amount)
	if err != nil {
		return 0, err
	}
	commission := money.ParseFloatOr(tx.Commission, 0)
	rate := money.ParseFloatOr(tx.Rate, 0)
	chatID, _ := strconv.ParseInt(tx.ChatID, 10, 64)

	row := domain.Transaction{
		ChatID:     chatID,
		Amount:     amount,
		Method:     tx.Method,
		Commission: commission,
		Rate:       rate,
		Status:     domain.StatusUnpaid,
		CreatedAt:  s.now().In(domain.MSK),
		UpdatedAt:  s.now().In(domain.MSK),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	})
	if err != nil {
		return 0, err
	}

	s.cache.OnWrite(cache.WriteAddTransaction)
	s.log.Info().Int64("id", row.ID).Int64("chat_id", row.ChatID).Msg("transaction added")
	return row.ID, nil
}

// UpdateTransaction applies a partial update, normalizing decorated numeric
// strings at the write boundary. Returns (false, nil) when the row is
// missing and surfaces database failures.
func (s *Store) UpdateTransaction(ctx context.Context, id int64, upd domain.TransactionUpdate) (bool, error) {
	found := true
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row domain.Transaction
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				found = false
				return nil
			}
			return err
		}

		if upd.Amount != nil {
			amount, err := money.ParseAmount(*upd.Amount)
			if err != nil {
				return err
			}
			row.Amount = amount
		}
		if upd.Method != nil {
			row.Method = *upd.Method
		}
		if upd.Commission != nil {
			commission, err := money.ParsePercent(*upd.Commission)
			if err != nil {
				return err
			}
			row.Commission = commission
		}
		if upd.Rate != nil {
			rate, err := money.ParseFloat(*upd.Rate)
			if err != nil {
				return err
			}
			row.Rate = rate
		}
		if upd.Status != nil {
			row.Status = *upd.Status
		}
		if upd.Hash != nil {
			row.TransactionHash = *upd.Hash
		}
		if upd.ChatID != nil {
			chatID, err := strconv.ParseInt(*upd.ChatID, 10, 64)
			if err != nil {
				return err
			}
			row.ChatID = chatID
		}

		row.UpdatedAt = s.now().In(domain.MSK)
		return tx.Save(&row).Error
	})
	if err != nil {
		return false, err
	}
	if !found {
		s.log.Error().Int64("id", id).Msg("transaction not found")
		return false, nil
	}

	s.cache.OnWrite(cache.WriteUpdateTransaction)
	s.log.Info().Int64("id", id).Msg("transaction updated")
	return true, nil
}

// Transaction fetches one transaction as a wire record; nil when missing.
func (s *Store) Transaction(ctx context.Context, id int64) (*domain.TransactionRecord, error) {
	key := cache.Key(cache.NSGetTransaction, id)
	return cache.Through(s.cache, key, false, func() (*domain.TransactionRecord, error) {
		var row domain.Transaction
		err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		rec := row.ToRecord()
		return &rec, nil
	})
}

// Transactions lists rows matching the query, most recent first. Date
// filtering converts the ledger date into an MSK day range.
func (s *Store) Transactions(ctx context.Context, q domain.TransactionQuery) ([]domain.TransactionRecord, error) {
	ns := cache.NSAllTransactions
	if q.UnpaidOnly {
		ns = cache.NSUnpaidTransactions
	} else if q.Date == domain.Today(s.now()) {
		ns = cache.NSDailyTransactions
	}
	key := cache.Key(ns, q.Date, q.ChatID)

	return cache.Through(s.cache, key, q.ForceRefresh, func() ([]domain.TransactionRecord, error) {
		query := s.db.WithContext(ctx).Model(&domain.Transaction{})
		if q.ChatID != 0 {
			query = query.Where("chat_id = ?", q.ChatID)
		}
		if q.Date != "" {
			day, err := time.ParseInLocation(domain.DateLayout, q.Date, domain.MSK)
			if err != nil {
				return nil, err
			}
			query = query.Where("created_at >= ? AND created_at < ?", day, day.Add(24*time.Hour))
		}
		if q.UnpaidOnly {
			query = query.Where("lower(status) <> ?", domain.StatusPaid)
		}

		var rows []domain.Transaction
		if err := query.Order("created_at desc").Find(&rows).Error; err != nil {
			return nil, err
		}
		out := make([]domain.TransactionRecord, len(rows))
		for i := range rows {
			out[i] = rows[i].ToRecord()
		}
		return out, nil
	})
}

// MarkTransactionPaid sets the paid status and hash together via the normal
// update path; repeating the call with the same hash changes nothing.
func (s *Store) MarkTransactionPaid(ctx context.Context, id int64, hash string) (bool, error) {
	status := domain.StatusPaid
	return s.UpdateTransaction(ctx, id, domain.TransactionUpdate{
		Status: &status,
		Hash:   &hash,
	})
}

// SaveDaySettings updates the singleton settings row and opens the day.
func (s *Store) SaveDaySettings(ctx context.Context, chatID int64, rate, commission float64) (bool, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cs, err := s.settings(tx)
		if err != nil {
			return err
		}
		cs.ExchangeRate = rate
		cs.CommissionPercent = commission
		cs.IsDayOpen = true
		cs.UpdatedAt = s.now().In(domain.MSK)
		return tx.Save(cs).Error
	})
	if err != nil {
		s.log.Error().Err(err).Int64("chat_id", chatID).Msg("save day settings")
		return false, err
	}

	s.cache.OnWrite(cache.WriteSaveDaySettings)
	s.log.Info().Int64("chat_id", chatID).Float64("rate", rate).Float64("commission", commission).
		Msg("day settings saved")
	return true, nil
}

// DaySettings returns the global settings as today's day settings; nil when
// the settings row was never created.
func (s *Store) DaySettings(ctx context.Context, chatID int64) (*domain.DaySettings, error) {
	key := cache.Key(cache.NSDaySettings, chatID)
	return cache.Through(s.cache, key, false, func() (*domain.DaySettings, error) {
		var cs domain.ChatSettings
		err := s.db.WithContext(ctx).First(&cs).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &domain.DaySettings{
			Date:              domain.Today(s.now()),
			Rate:              cs.ExchangeRate,
			CommissionPercent: cs.CommissionPercent,
		}, nil
	})
}

// IsDayOpen reads the open flag from the singleton settings row.
func (s *Store) IsDayOpen(ctx context.Context, chatID int64) (bool, error) {
	key := cache.Key(cache.NSIsDayOpen, chatID)
	return cache.Through(s.cache, key, false, func() (bool, error) {
		var cs domain.ChatSettings
		err := s.db.WithContext(ctx).First(&cs).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return cs.IsDayOpen, nil
	})
}

// SetDayStatus flips the open flag on the singleton settings row.
func (s *Store) SetDayStatus(ctx context.Context, chatID int64, open bool) (bool, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cs, err := s.settings(tx)
		if err != nil {
			return err
		}
		cs.IsDayOpen = open
		cs.UpdatedAt = s.now().In(domain.MSK)
		return tx.Save(cs).Error
	})
	if err != nil {
		s.log.Error().Err(err).Int64("chat_id", chatID).Msg("set day status")
		return false, err
	}

	s.cache.OnWrite(cache.WriteSetDayStatus)
	return true, nil
}

// CurrentRate returns the settings rate when positive, falling back to the
// rate of the most recent transaction across all chats.
func (s *Store) CurrentRate(ctx context.Context, chatID int64) (float64, bool, error) {
	ds, err := s.DaySettings(ctx, chatID)
	if err != nil {
		return 0, false, err
	}
	if ds != nil && ds.Rate > 0 {
		return ds.Rate, true, nil
	}

	var latest domain.Transaction
	err = s.db.WithContext(ctx).Order("created_at desc").First(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if latest.Rate > 0 {
		return latest.Rate, true, nil
	}
	return 0, false, nil
}

// DailyStatistics aggregates today's transactions for the chat. The same
// rollup code as the spreadsheet store runs over the typed rows rendered as
// wire records.
func (s *Store) DailyStatistics(ctx context.Context, chatID int64, forceRefresh bool) (domain.DayStats, error) {
	today := domain.Today(s.now())
	key := cache.Key(cache.NSDailyStatistics, chatID, today)
	if forceRefresh {
		s.cache.InvalidatePattern(cache.NSDailyStatistics)
	}

	return cache.Through(s.cache, key, forceRefresh, func() (domain.DayStats, error) {
		recs, err := s.Transactions(ctx, domain.TransactionQuery{ChatID: chatID, Date: today})
		if err != nil {
			s.log.Error().Err(err).Int64("chat_id", chatID).Msg("daily statistics")
			return domain.DayStats{Date: today, MethodsCount: map[string]int{}}, nil
		}
		day, err := s.DaySettings(ctx, chatID)
		if err != nil {
			day = nil
		}
		return domain.ComputeDayStats(today, recs, day), nil
	})
}
