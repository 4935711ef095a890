package models

// CategoryStats holds per-category dispersion statistics over absolute
// expense amounts.
type CategoryStats struct {
	// Mean is the average absolute expense amount in the category.
	Mean float64 `json:"mean"`
	// Std is the sample standard deviation; zero when fewer than two expenses exist.
	Std float64 `json:"std"`
	// Count is the number of expense transactions in the category.
	Count int `json:"count"`
	// AnomalyCount is the number of flagged transactions in the category.
	AnomalyCount int `json:"anomaly_count"`
}

// AnomalyRecord is a scored expense transaction.
type AnomalyRecord struct {
	// Date is the transaction date formatted as YYYY-MM-DD.
	Date string `json:"date"`
	// Description is the statement narrative.
	Description string `json:"description"`
	// Amount is the absolute expense amount.
	Amount float64 `json:"amount"`
	// Category is the assigned spending category.
	Category string `json:"category"`
	// ZScore is the normalized deviation from the category mean; zero when the
	// category has too few samples or no variance.
	ZScore float64 `json:"z_score"`
	// IsAnomaly reports whether the absolute z-score exceeded the threshold.
	IsAnomaly bool `json:"is_anomaly"`
	// ExpectedRange describes the category's typical amount as "mean ± std".
	ExpectedRange string `json:"expected_range,omitempty"`
}

// AnomalyReport is the full output of anomaly detection.
type AnomalyReport struct {
	// AnomalyTransactions lists every flagged transaction in input order.
	AnomalyTransactions []AnomalyRecord `json:"anomaly_transactions"`
	// AnomalyRate is flagged / total expenses, in [0,1]; zero with no expenses.
	AnomalyRate float64 `json:"anomaly_rate"`
	// LargestAnomalies is the top subset of anomalies by absolute amount.
	LargestAnomalies []AnomalyRecord `json:"largest_anomalies"`
	// StatsByCategory maps each category to its statistics.
	StatsByCategory map[string]CategoryStats `json:"stats_by_category"`
	// TotalAnomalies is the number of flagged transactions.
	TotalAnomalies int `json:"total_anomalies"`
	// TotalExpenses is the number of expense transactions considered.
	TotalExpenses int `json:"total_expenses"`
}

// MonthlyPoint is one month of aggregated spending.
type MonthlyPoint struct {
	// YearMonth is the calendar month formatted as YYYY-MM.
	YearMonth string `json:"year_month"`
	// Month is the calendar month number (1-12).
	Month int `json:"-"`
	// Amount is the summed absolute expense amount for the month.
	Amount float64 `json:"amount"`
}

// InsightsReport holds aggregate spending statistics.
type InsightsReport struct {
	// TotalSpending is the sum of absolute expense amounts.
	TotalSpending float64 `json:"total_spending"`
	// AvgTransaction is the mean absolute expense amount.
	AvgTransaction float64 `json:"avg_transaction"`
	// SpendingByCategory maps each category to its total spending.
	SpendingByCategory map[string]float64 `json:"spending_by_category"`
	// SpendingTrend is the month-by-month spending series in calendar order.
	SpendingTrend []MonthlyPoint `json:"spending_trend"`
}

// CategoryForecast is the forecast output for one category.
type CategoryForecast struct {
	// Predictions are the N sequential monthly point predictions.
	Predictions []float64 `json:"predictions"`
	// MAE is the walk-forward cross-validation error estimate.
	MAE float64 `json:"mae"`
}

// CategoryTrainingMetrics reports training quality for one category model.
type CategoryTrainingMetrics struct {
	// MAE is the mean absolute error across walk-forward folds.
	MAE float64 `json:"mae"`
	// CVMAEs lists the per-fold mean absolute errors.
	CVMAEs []float64 `json:"cv_maes"`
	// DataPoints is the number of monthly rows the model saw.
	DataPoints int `json:"data_points"`
}

// ForecastReport is the full output of the forecast pipeline.
type ForecastReport struct {
	// Forecasts maps each trained category to its predictions.
	Forecasts map[string]CategoryForecast `json:"forecasts"`
	// TrainingMetrics maps each trained category to its CV metrics.
	TrainingMetrics map[string]CategoryTrainingMetrics `json:"training_metrics"`
	// MajorCategories lists the categories that crossed the spending threshold.
	MajorCategories []string `json:"major_categories"`
	// AvgMAE is the mean of all categories' held-out MAE estimates.
	AvgMAE float64 `json:"avg_mae"`
	// NMonthsAhead is the forecast horizon.
	NMonthsAhead int `json:"n_months_ahead"`
}

// EmptyForecastReport returns the zero-valued report used when training
// degrades gracefully on insufficient history.
func EmptyForecastReport(nMonths int) *ForecastReport {
	return &ForecastReport{
		Forecasts:       map[string]CategoryForecast{},
		TrainingMetrics: map[string]CategoryTrainingMetrics{},
		MajorCategories: []string{},
		AvgMAE:          0,
		NMonthsAhead:    nMonths,
	}
}
