// Package analytics computes aggregate statistics and monthly spend over receipt snapshots.
package analytics

import (
	"slices"
	"time"

	"github.com/zombor/receipt-analyzer/internal/receipt"
)

// Stats summarizes the amounts and vendors of a set of receipts
type Stats struct {
	Total  float64 `json:"total"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	// Mode is nil when several amounts tie for most frequent
	Mode            *float64       `json:"mode"`
	VendorFrequency map[string]int `json:"vendor_frequency"`
}

// MonthlyTotal is the summed amount for one YYYY-MM bucket
type MonthlyTotal struct {
	Month string  `json:"month"`
	Total float64 `json:"total"`
}

// ComputeStats aggregates amounts and vendor counts. An empty set yields zeros and a zero mode.
func ComputeStats(records []*receipt.Receipt) Stats {
	stats := Stats{VendorFrequency: make(map[string]int)}
	if len(records) == 0 {
		zero := 0.0
		stats.Mode = &zero
		return stats
	}

	amounts := make([]float64, 0, len(records))
	for _, r := range records {
		amounts = append(amounts, r.Amount)
		stats.Total += r.Amount
		stats.VendorFrequency[r.Vendor]++
	}

	stats.Mean = stats.Total / float64(len(amounts))
	stats.Median = median(amounts)
	stats.Mode = mode(amounts)
	return stats
}

func median(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// mode returns the strictly most frequent value, or nil on a tie
func mode(values []float64) *float64 {
	counts := make(map[float64]int, len(values))
	for _, v := range values {
		counts[v]++
	}

	var best float64
	bestCount, ties := 0, 0
	for v, c := range counts {
		switch {
		case c > bestCount:
			best, bestCount, ties = v, c, 1
		case c == bestCount:
			ties++
		}
	}
	if ties > 1 {
		return nil
	}
	return &best
}

// MonthlyTrend sums amounts per YYYY-MM in ascending month order.
// Receipts whose date is not a valid YYYY-MM-DD are left out.
func MonthlyTrend(records []*receipt.Receipt) []MonthlyTotal {
	totals := make(map[string]float64)
	for _, r := range records {
		date, err := time.Parse(time.DateOnly, r.Date)
		if err != nil {
			continue
		}
		totals[date.Format("2006-01")] += r.Amount
	}

	months := make([]string, 0, len(totals))
	for m := range totals {
		months = append(months, m)
	}
	slices.Sort(months)

	trend := make([]MonthlyTotal, 0, len(months))
	for _, m := range months {
		trend = append(trend, MonthlyTotal{Month: m, Total: totals[m]})
	}
	return trend
}
