package analytics

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/finsight/finsight-go/internal/config"
	"github.com/finsight/finsight-go/internal/models"
)

// minSamplesForZScore is the minimum number of expenses a category needs
// before z-scores are computed for it. Below this, every transaction in the
// category gets z = 0 and is never flagged.
const minSamplesForZScore = 3

// AnomalyDetector scores expense transactions against their category's
// statistics and classifies outliers. It is a pure function over its inputs:
// no state is kept between runs.
type AnomalyDetector struct {
	threshold float64
	logger    *logrus.Logger
}

// NewAnomalyDetector creates a new anomaly detector.
func NewAnomalyDetector(cfg config.AnomalyConfig, logger *logrus.Logger) *AnomalyDetector {
	return &AnomalyDetector{
		threshold: cfg.ZScoreThreshold,
		logger:    logger,
	}
}

// Detect scores every expense transaction and returns the full anomaly report.
//
// A transaction's z-score is computed only when its category has at least
// three expenses and non-zero variance; otherwise the z-score is zero and the
// transaction is never flagged, preventing spurious flags in sparse or
// zero-variance categories.
//
// With no expense transactions the report is empty-valued rather than an
// error. Malformed records surface as *ValidationError.
func (d *AnomalyDetector) Detect(txns []models.TransactionRecord) (*models.AnomalyReport, error) {
	if err := validateRecords(txns); err != nil {
		return nil, err
	}

	expenses := filterExpenses(txns)
	if len(expenses) == 0 {
		d.logger.Warn("No expense transactions found")
		return &models.AnomalyReport{
			AnomalyTransactions: []models.AnomalyRecord{},
			AnomalyRate:         0,
			LargestAnomalies:    []models.AnomalyRecord{},
			StatsByCategory:     map[string]models.CategoryStats{},
		}, nil
	}

	stats := categoryStatistics(expenses)

	anomalies := make([]models.AnomalyRecord, 0)
	for _, tx := range expenses {
		cs := stats[tx.Category]
		z := 0.0
		if cs.Count >= minSamplesForZScore && cs.Std > 0 {
			z = (tx.AbsAmount() - cs.Mean) / cs.Std
		}
		if math.Abs(z) > d.threshold {
			anomalies = append(anomalies, models.AnomalyRecord{
				Date:          tx.Date.Format("2006-01-02"),
				Description:   tx.Description,
				Amount:        tx.AbsAmount(),
				Category:      tx.Category,
				ZScore:        z,
				IsAnomaly:     true,
				ExpectedRange: fmt.Sprintf("$%.2f ± $%.2f", cs.Mean, cs.Std),
			})
			cs.AnomalyCount++
			stats[tx.Category] = cs
		}
	}

	rate := float64(len(anomalies)) / float64(len(expenses))

	d.logger.WithFields(logrus.Fields{
		"anomalies": len(anomalies),
		"expenses":  len(expenses),
		"rate":      rate,
	}).Info("Anomaly detection complete")

	return &models.AnomalyReport{
		AnomalyTransactions: anomalies,
		AnomalyRate:         rate,
		LargestAnomalies:    largestAnomalies(anomalies),
		StatsByCategory:     stats,
		TotalAnomalies:      len(anomalies),
		TotalExpenses:       len(expenses),
	}, nil
}

// validateRecords rejects records missing a date, amount, or category.
func validateRecords(txns []models.TransactionRecord) error {
	for i, tx := range txns {
		if tx.Date.IsZero() {
			return &ValidationError{Index: i, Field: "date"}
		}
		if tx.Amount == 0 {
			return &ValidationError{Index: i, Field: "amount"}
		}
		if tx.Category == "" {
			return &ValidationError{Index: i, Field: "category"}
		}
	}
	return nil
}

// filterExpenses keeps only expense transactions (negative amounts),
// preserving input order.
func filterExpenses(txns []models.TransactionRecord) []models.TransactionRecord {
	expenses := make([]models.TransactionRecord, 0, len(txns))
	for _, tx := range txns {
		if tx.IsExpense() {
			expenses = append(expenses, tx)
		}
	}
	return expenses
}

// categoryStatistics computes mean, sample standard deviation, and count of
// absolute amounts grouped by category.
func categoryStatistics(expenses []models.TransactionRecord) map[string]models.CategoryStats {
	grouped := make(map[string][]float64)
	for _, tx := range expenses {
		grouped[tx.Category] = append(grouped[tx.Category], tx.AbsAmount())
	}

	stats := make(map[string]models.CategoryStats, len(grouped))
	for category, amounts := range grouped {
		stats[category] = models.CategoryStats{
			Mean:  mean(amounts),
			Std:   sampleStdDev(amounts),
			Count: len(amounts),
		}
	}
	return stats
}

// largestAnomalies returns the top max(10, ceil(0.1*n)) anomalies ranked by
// absolute amount descending, capped at n. The sort is stable so ties keep
// input order.
func largestAnomalies(anomalies []models.AnomalyRecord) []models.AnomalyRecord {
	n := len(anomalies)
	if n == 0 {
		return []models.AnomalyRecord{}
	}

	size := int(math.Ceil(0.1 * float64(n)))
	if size < 10 {
		size = 10
	}
	if size > n {
		size = n
	}

	ranked := make([]models.AnomalyRecord, n)
	copy(ranked, anomalies)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Amount > ranked[j].Amount
	})

	return ranked[:size]
}
