package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/finsight-go/internal/models"
)

func trainingTransactions() []models.TransactionRecord {
	start := time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)
	txns := monthlyExpenses("Groceries", start,
		[]float64{400, 420, 390, 450, 430, 470, 440, 480, 460, 500, 490, 520})
	txns = append(txns, monthlyExpenses("Dining", start,
		[]float64{120, 90, 150, 110, 130, 100, 140, 115, 125, 135, 105, 145})...)
	return txns
}

func TestForecastNonNegativeAndDeterministic(t *testing.T) {
	forecaster := NewSpendingForecaster(testForecastConfig(), newTestLogger())
	_, err := forecaster.Train(trainingTransactions())
	require.NoError(t, err)

	first, err := forecaster.Forecast(3)
	require.NoError(t, err)
	second, err := forecaster.Forecast(3)
	require.NoError(t, err)

	assert.Equal(t, first, second, "identical models and seed states yield identical forecasts")

	require.Contains(t, first, "Groceries")
	require.Contains(t, first, "Dining")
	for category, forecast := range first {
		require.Len(t, forecast.Predictions, 3, category)
		for _, prediction := range forecast.Predictions {
			assert.GreaterOrEqual(t, prediction, 0.0)
		}
	}
}

func TestForecastWithoutModels(t *testing.T) {
	forecaster := NewSpendingForecaster(testForecastConfig(), newTestLogger())

	_, err := forecaster.Forecast(3)
	assert.ErrorIs(t, err, ErrNoModels)
}

func TestForecastDecliningSeriesClampedAtZero(t *testing.T) {
	start := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	txns := monthlyExpenses("Subscriptions", start,
		[]float64{600, 500, 400, 300, 200, 100, 50, 10})

	forecaster := NewSpendingForecaster(testForecastConfig(), newTestLogger())
	_, err := forecaster.Train(txns)
	require.NoError(t, err)

	forecasts, err := forecaster.Forecast(6)
	require.NoError(t, err)

	for _, prediction := range forecasts["Subscriptions"].Predictions {
		assert.GreaterOrEqual(t, prediction, 0.0)
	}
}

func TestTrainRecordsMajorCategories(t *testing.T) {
	forecaster := NewSpendingForecaster(testForecastConfig(), newTestLogger())
	metrics, err := forecaster.Train(trainingTransactions())
	require.NoError(t, err)

	assert.Equal(t, []string{"Dining", "Groceries"}, forecaster.MajorCategories())
	assert.Contains(t, metrics, "Groceries")
	assert.NotNil(t, forecaster.Model("Groceries"))
	assert.Nil(t, forecaster.Model("Travel"))
}

func TestRunForecastPipeline(t *testing.T) {
	report, err := RunForecastPipeline(testForecastConfig(), newTestLogger(), trainingTransactions(), 3, "")
	require.NoError(t, err)

	assert.Equal(t, 3, report.NMonthsAhead)
	assert.Equal(t, []string{"Dining", "Groceries"}, report.MajorCategories)
	require.Len(t, report.Forecasts, 2)
	require.Len(t, report.TrainingMetrics, 2)

	expectedAvg := (report.TrainingMetrics["Dining"].MAE + report.TrainingMetrics["Groceries"].MAE) / 2
	assert.InDelta(t, expectedAvg, report.AvgMAE, 1e-12)
}

func TestRunForecastPipelineInsufficientHistory(t *testing.T) {
	start := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	txns := monthlyExpenses("Groceries", start, []float64{100, 110})

	_, err := RunForecastPipeline(testForecastConfig(), newTestLogger(), txns, 3, "")
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}
