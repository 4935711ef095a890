package analytics

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/finsight-go/internal/config"
	"github.com/finsight/finsight-go/internal/models"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestDetector() *AnomalyDetector {
	return NewAnomalyDetector(config.AnomalyConfig{ZScoreThreshold: 3.0}, newTestLogger())
}

func expense(date time.Time, description string, amount float64, category string) models.TransactionRecord {
	return models.TransactionRecord{
		Date:        date,
		Description: description,
		Amount:      -amount,
		Category:    category,
	}
}

func TestDetectFlagsLargeOutlier(t *testing.T) {
	start := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	txns := make([]models.TransactionRecord, 0, 13)
	for i := 0; i < 12; i++ {
		amount := 90.0
		if i%2 == 1 {
			amount = 110.0
		}
		txns = append(txns, expense(start.AddDate(0, i, 0), "restaurant", amount, "Dining"))
	}
	txns = append(txns, expense(start.AddDate(1, 0, 0), "group dinner", 500.0, "Dining"))

	report, err := newTestDetector().Detect(txns)
	require.NoError(t, err)

	require.Len(t, report.AnomalyTransactions, 1)
	flagged := report.AnomalyTransactions[0]
	assert.True(t, flagged.IsAnomaly)
	assert.Equal(t, 500.0, flagged.Amount)
	assert.Equal(t, "Dining", flagged.Category)
	assert.Greater(t, flagged.ZScore, 3.0)
	assert.Contains(t, flagged.ExpectedRange, "±")

	assert.Equal(t, 13, report.TotalExpenses)
	assert.Equal(t, 1, report.TotalAnomalies)
	assert.InDelta(t, 1.0/13.0, report.AnomalyRate, 1e-12)

	stats := report.StatsByCategory["Dining"]
	assert.Equal(t, 13, stats.Count)
	assert.Equal(t, 1, stats.AnomalyCount)
	assert.Greater(t, stats.Std, 0.0)

	require.Len(t, report.LargestAnomalies, 1)
	assert.Equal(t, 500.0, report.LargestAnomalies[0].Amount)
}

func TestDetectSparseCategoryNeverFlagged(t *testing.T) {
	date := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	txns := []models.TransactionRecord{
		expense(date, "coffee", 10, "Dining"),
		expense(date.AddDate(0, 0, 7), "dinner", 100, "Dining"),
	}

	report, err := newTestDetector().Detect(txns)
	require.NoError(t, err)

	assert.Empty(t, report.AnomalyTransactions)
	assert.Zero(t, report.AnomalyRate)
	assert.Equal(t, 2, report.StatsByCategory["Dining"].Count)
}

func TestDetectZeroVarianceCategory(t *testing.T) {
	date := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	txns := make([]models.TransactionRecord, 0, 5)
	for i := 0; i < 5; i++ {
		txns = append(txns, expense(date.AddDate(0, 0, i), "subscription", 50, "Entertainment"))
	}

	report, err := newTestDetector().Detect(txns)
	require.NoError(t, err)

	assert.Empty(t, report.AnomalyTransactions)
	assert.Zero(t, report.StatsByCategory["Entertainment"].Std)
}

func TestDetectNoExpenses(t *testing.T) {
	txns := []models.TransactionRecord{
		{
			Date:        time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
			Description: "salary",
			Amount:      3000,
			Category:    "Income",
		},
	}

	report, err := newTestDetector().Detect(txns)
	require.NoError(t, err)

	assert.NotNil(t, report.AnomalyTransactions)
	assert.Empty(t, report.AnomalyTransactions)
	assert.NotNil(t, report.LargestAnomalies)
	assert.Empty(t, report.LargestAnomalies)
	assert.Zero(t, report.AnomalyRate)
	assert.Empty(t, report.StatsByCategory)
	assert.Zero(t, report.TotalExpenses)
}

func TestDetectRejectsMalformedRecords(t *testing.T) {
	date := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		txn   models.TransactionRecord
		field string
	}{
		{
			name:  "zero date",
			txn:   models.TransactionRecord{Description: "x", Amount: -10, Category: "Dining"},
			field: "date",
		},
		{
			name:  "zero amount",
			txn:   models.TransactionRecord{Date: date, Description: "x", Category: "Dining"},
			field: "amount",
		},
		{
			name:  "empty category",
			txn:   models.TransactionRecord{Date: date, Description: "x", Amount: -10},
			field: "category",
		},
	}

	detector := newTestDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := detector.Detect([]models.TransactionRecord{tt.txn})
			require.Error(t, err)
			assert.True(t, IsValidationError(err))

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, 0, ve.Index)
		})
	}
}

func TestLargestAnomaliesRanking(t *testing.T) {
	anomalies := make([]models.AnomalyRecord, 0, 25)
	for i := 1; i <= 25; i++ {
		anomalies = append(anomalies, models.AnomalyRecord{Amount: float64(i)})
	}

	largest := largestAnomalies(anomalies)

	require.Len(t, largest, 10)
	for i, record := range largest {
		assert.Equal(t, float64(25-i), record.Amount)
	}
}

func TestLargestAnomaliesCappedAtInputSize(t *testing.T) {
	anomalies := []models.AnomalyRecord{
		{Amount: 40}, {Amount: 10}, {Amount: 30}, {Amount: 20},
	}

	largest := largestAnomalies(anomalies)

	require.Len(t, largest, 4)
	assert.Equal(t, 40.0, largest[0].Amount)
	assert.Equal(t, 10.0, largest[3].Amount)
}

func TestSpendingInsights(t *testing.T) {
	jan := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	txns := []models.TransactionRecord{
		expense(jan, "groceries", 100, "Groceries"),
		expense(feb, "groceries", 200, "Groceries"),
		expense(feb, "cinema", 50, "Entertainment"),
		{Date: jan, Description: "salary", Amount: 3000, Category: "Income"},
	}

	report := SpendingInsights(txns)

	assert.InDelta(t, 350.0, report.TotalSpending, 1e-12)
	assert.InDelta(t, 350.0/3.0, report.AvgTransaction, 1e-12)
	assert.Equal(t, map[string]float64{"Groceries": 300, "Entertainment": 50}, report.SpendingByCategory)
	require.Len(t, report.SpendingTrend, 2)
	assert.Equal(t, "2025-01", report.SpendingTrend[0].YearMonth)
	assert.Equal(t, 100.0, report.SpendingTrend[0].Amount)
	assert.Equal(t, "2025-02", report.SpendingTrend[1].YearMonth)
	assert.Equal(t, 250.0, report.SpendingTrend[1].Amount)
}

func TestSpendingInsightsNoExpenses(t *testing.T) {
	report := SpendingInsights(nil)

	assert.Zero(t, report.TotalSpending)
	assert.Zero(t, report.AvgTransaction)
	assert.Empty(t, report.SpendingByCategory)
	assert.Empty(t, report.SpendingTrend)
}
