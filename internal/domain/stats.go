package domain

import (
	"math"

	"github.com/xchangebot/ledger/internal/money"
)

// FallbackUSDTRate is used for settlement-currency conversion when neither a
// day rate nor an average transaction rate is available.
const FallbackUSDTRate = 90.0

// ComputeDayStats aggregates one chat's transactions for a single date.
// Numeric cells are parsed defensively; unparsable values are skipped.
// The settlement-currency conversion uses the day rate when set and
// positive, else the average parsed rate, else FallbackUSDTRate. All
// rollups are rounded to 2 decimal places.
func ComputeDayStats(date string, recs []TransactionRecord, day *DaySettings) DayStats {
	stats := DayStats{
		Date:              date,
		TransactionsCount: len(recs),
		MethodsCount:      map[string]int{},
	}
	if len(recs) == 0 {
		return stats
	}

	var currentRate, currentCommission float64
	if day != nil {
		currentRate = day.Rate
		currentCommission = day.CommissionPercent
	}

	var total, paid, awaiting, toPay float64
	var rates, commissions []float64

	for _, rec := range recs {
		amount, err := money.ParseFloat(rec.Amount)
		if err != nil {
			amount = 0
		}
		total += amount

		if IsPaidStatus(rec.Status) {
			paid += amount
		} else {
			awaiting += amount
			// Commission is applied per transaction, not on the aggregate.
			commission := money.ParseFloatOr(rec.Commission, currentCommission)
			toPay += amount * (1 - commission/100)
		}

		if rate, err := money.ParseFloat(rec.Rate); err == nil {
			rates = append(rates, rate)
		}
		if commission, err := money.ParseFloat(rec.Commission); err == nil {
			commissions = append(commissions, commission)
		}

		method := rec.Method
		if method == "" {
			method = "unspecified"
		}
		stats.MethodsCount[method]++
	}

	avgRate := currentRate
	if len(rates) > 0 {
		avgRate = mean(rates)
	}
	avgCommission := currentCommission
	if len(commissions) > 0 {
		avgCommission = mean(commissions)
	}

	usdtRate := currentRate
	if usdtRate <= 0 {
		usdtRate = avgRate
	}
	if usdtRate <= 0 {
		usdtRate = FallbackUSDTRate
	}

	stats.TotalAmount = round2(total)
	stats.AwaitingAmount = round2(awaiting)
	stats.ToPayAmount = round2(toPay)
	stats.PaidAmount = round2(paid)
	stats.AvgRate = round2(avgRate)
	stats.AvgCommission = round2(avgCommission)
	stats.UnpaidUSDT = round2(awaiting / usdtRate)
	stats.ToPayUSDT = round2(toPay / usdtRate)
	stats.TotalUSDT = round2(total / usdtRate)
	stats.PaidUSDT = round2(paid / usdtRate)

	return stats
}

func mean(vs []float64) float64 {
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
