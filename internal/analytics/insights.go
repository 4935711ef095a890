package analytics

import (
	"sort"

	"github.com/finsight/finsight-go/internal/models"
)

// SpendingInsights computes aggregate spending statistics: total and average
// expense amounts, per-category totals, and the monthly spending trend in
// calendar order. With no expenses it returns a zero-valued report.
func SpendingInsights(txns []models.TransactionRecord) *models.InsightsReport {
	expenses := filterExpenses(txns)
	if len(expenses) == 0 {
		return &models.InsightsReport{
			SpendingByCategory: map[string]float64{},
			SpendingTrend:      []models.MonthlyPoint{},
		}
	}

	var total float64
	byCategory := make(map[string]float64)
	byMonth := make(map[string]float64)
	for _, tx := range expenses {
		amount := tx.AbsAmount()
		total += amount
		byCategory[tx.Category] += amount
		byMonth[tx.Date.Format("2006-01")] += amount
	}

	months := make([]string, 0, len(byMonth))
	for ym := range byMonth {
		months = append(months, ym)
	}
	sort.Strings(months)

	trend := make([]models.MonthlyPoint, 0, len(months))
	for _, ym := range months {
		trend = append(trend, models.MonthlyPoint{YearMonth: ym, Amount: byMonth[ym]})
	}

	return &models.InsightsReport{
		TotalSpending:      total,
		AvgTransaction:     total / float64(len(expenses)),
		SpendingByCategory: byCategory,
		SpendingTrend:      trend,
	}
}
