// Package analytics computes derived read-only summaries over the full
// receipt collection. Nothing here is materialized: every report is
// recomputed from the persisted set on each call.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/finexhq/finex-server/internal/receipt"
)

// CategorySpending is one slice of the category breakdown
type CategorySpending struct {
	Category   string  `json:"category"`
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
	ItemCount  int     `json:"itemCount"`
}

// MonthlyComparison compares the current calendar month against the last
type MonthlyComparison struct {
	CurrentMonth     float64 `json:"currentMonth"`
	LastMonth        float64 `json:"lastMonth"`
	PercentageChange float64 `json:"percentageChange"`
	Trend            string  `json:"trend"` // "up", "down", "stable"
}

// DailySpending is one day's total within the reporting window
type DailySpending struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

// TopMerchant is one entry in the merchant ranking
type TopMerchant struct {
	StoreName    string  `json:"storeName"`
	TotalSpent   float64 `json:"totalSpent"`
	ReceiptCount int     `json:"receiptCount"`
}

// SpendingTrend is one month's total in the six-month trend series
type SpendingTrend struct {
	Month  string  `json:"month"` // "Jan 2006"
	Amount float64 `json:"amount"`
}

// Report is the full analytics response
type Report struct {
	MonthlyComparison MonthlyComparison  `json:"monthlyComparison"`
	CategoryBreakdown []CategorySpending `json:"categoryBreakdown"`
	SpendingTrends    []SpendingTrend    `json:"spendingTrends"`
	DailySpending     []DailySpending    `json:"dailySpending"`
	TopMerchants      []TopMerchant      `json:"topMerchants"`
}

// topMerchantLimit bounds the merchant ranking
const topMerchantLimit = 10

// stableBandPercent is the +/- band within which month-over-month change
// counts as "stable"
const stableBandPercent = 5.0

// Service computes analytics reports from the receipt collection
type Service struct {
	db         receipt.DB
	timeSource receipt.TimeSource
}

// NewService creates an analytics Service
func NewService(db receipt.DB) *Service {
	return &Service{db: db, timeSource: realClock{}}
}

// NewServiceWithTimeSource creates an analytics Service with a custom clock
// for testing
func NewServiceWithTimeSource(db receipt.DB, ts receipt.TimeSource) *Service {
	return &Service{db: db, timeSource: ts}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Report builds the analytics report. When start and end are both non-zero
// they bound the breakdown and daily series; otherwise the current calendar
// month is used. The monthly comparison and trend series always cover
// calendar months regardless of the filter.
func (s *Service) Report(start, end time.Time) (*Report, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts for analytics: %w", err)
	}

	now := s.timeSource.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	filtered := receipts
	windowStart, windowEnd := monthStart, now
	if !start.IsZero() && !end.IsZero() {
		windowStart, windowEnd = start, end
		filtered = filterByCreated(receipts, start, end)
	} else {
		filtered = filterByCreated(receipts, monthStart, now)
		if len(filtered) == 0 {
			// No activity this month: fall back to the full set so the
			// breakdown is not empty on a fresh view
			filtered = receipts
		}
	}

	report := &Report{
		MonthlyComparison: s.monthlyComparison(receipts, now),
		CategoryBreakdown: categoryBreakdown(filtered),
		SpendingTrends:    spendingTrends(receipts, now),
		DailySpending:     dailySpending(receipts, windowStart, windowEnd),
		TopMerchants:      topMerchants(filtered),
	}

	return report, nil
}

func filterByCreated(receipts []*receipt.Receipt, start, end time.Time) []*receipt.Receipt {
	out := []*receipt.Receipt{}
	for _, r := range receipts {
		if !r.CreatedAt.Before(start) && !r.CreatedAt.After(end) {
			out = append(out, r)
		}
	}
	return out
}

func (s *Service) monthlyComparison(receipts []*receipt.Receipt, now time.Time) MonthlyComparison {
	currentStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	lastStart := currentStart.AddDate(0, -1, 0)

	var current, last float64
	for _, r := range filterByCreated(receipts, currentStart, now) {
		current += r.TotalAmount
	}
	for _, r := range filterByCreated(receipts, lastStart, currentStart.Add(-time.Nanosecond)) {
		last += r.TotalAmount
	}

	var change float64
	switch {
	case last > 0:
		change = (current - last) / last * 100
	case current > 0:
		change = 100
	}

	trend := "stable"
	if math.Abs(change) >= stableBandPercent {
		if change > 0 {
			trend = "up"
		} else {
			trend = "down"
		}
	}

	return MonthlyComparison{
		CurrentMonth:     round2(current),
		LastMonth:        round2(last),
		PercentageChange: round2(change),
		Trend:            trend,
	}
}

func categoryBreakdown(receipts []*receipt.Receipt) []CategorySpending {
	totals := make(map[string]*CategorySpending)
	var totalSpent float64

	for _, r := range receipts {
		category := r.Category
		if category == "" {
			category = receipt.CategoryOther
		}
		entry, ok := totals[category]
		if !ok {
			entry = &CategorySpending{Category: category}
			totals[category] = entry
		}
		entry.Amount += r.TotalAmount
		entry.ItemCount += len(r.Items)
		totalSpent += r.TotalAmount
	}

	breakdown := make([]CategorySpending, 0, len(totals))
	for _, entry := range totals {
		if totalSpent > 0 {
			entry.Percentage = round2(entry.Amount / totalSpent * 100)
		}
		entry.Amount = round2(entry.Amount)
		breakdown = append(breakdown, *entry)
	}

	sort.Slice(breakdown, func(i, j int) bool {
		if breakdown[i].Amount != breakdown[j].Amount {
			return breakdown[i].Amount > breakdown[j].Amount
		}
		return breakdown[i].Category < breakdown[j].Category
	})

	return breakdown
}

func spendingTrends(receipts []*receipt.Receipt, now time.Time) []SpendingTrend {
	trends := []SpendingTrend{}
	for i := 5; i >= 0; i-- {
		month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -i, 0)
		trend := SpendingTrend{Month: month.Format("Jan 2006")}
		for _, r := range receipts {
			if r.CreatedAt.Year() == month.Year() && r.CreatedAt.Month() == month.Month() {
				trend.Amount += r.TotalAmount
			}
		}
		trend.Amount = round2(trend.Amount)
		trends = append(trends, trend)
	}
	return trends
}

func dailySpending(receipts []*receipt.Receipt, start, end time.Time) []DailySpending {
	totals := make(map[string]float64)
	for _, r := range filterByCreated(receipts, start, end) {
		day := r.CreatedAt.Format("2006-01-02")
		totals[day] += r.TotalAmount
	}

	days := make([]DailySpending, 0, len(totals))
	for day, amount := range totals {
		days = append(days, DailySpending{Date: day, Amount: round2(amount)})
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].Date < days[j].Date
	})
	return days
}

func topMerchants(receipts []*receipt.Receipt) []TopMerchant {
	totals := make(map[string]*TopMerchant)
	for _, r := range receipts {
		if r.StoreName == "" {
			continue
		}
		entry, ok := totals[r.StoreName]
		if !ok {
			entry = &TopMerchant{StoreName: r.StoreName}
			totals[r.StoreName] = entry
		}
		entry.TotalSpent += r.TotalAmount
		entry.ReceiptCount++
	}

	merchants := make([]TopMerchant, 0, len(totals))
	for _, entry := range totals {
		entry.TotalSpent = round2(entry.TotalSpent)
		merchants = append(merchants, *entry)
	}
	sort.Slice(merchants, func(i, j int) bool {
		if merchants[i].TotalSpent != merchants[j].TotalSpent {
			return merchants[i].TotalSpent > merchants[j].TotalSpent
		}
		return merchants[i].StoreName < merchants[j].StoreName
	})

	if len(merchants) > topMerchantLimit {
		merchants = merchants[:topMerchantLimit]
	}
	return merchants
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
