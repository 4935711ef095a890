package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/finsight-go/internal/analytics"
	"github.com/finsight/finsight-go/internal/config"
	"github.com/finsight/finsight-go/internal/database"
	"github.com/finsight/finsight-go/internal/extract"
	"github.com/finsight/finsight-go/internal/models"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fixedCategorizer labels every expense with one category, offline.
type fixedCategorizer struct {
	category string
}

func (f *fixedCategorizer) Categorize(_ context.Context, txns []models.TransactionRecord) ([]models.TransactionRecord, *models.CategorizationMetrics, error) {
	labeled := make([]models.TransactionRecord, len(txns))
	copy(labeled, txns)
	for i := range labeled {
		labeled[i].Category = f.category
		labeled[i].Confidence = 0.9
	}
	return labeled, &models.CategorizationMetrics{
		Categories:           []string{f.category},
		AvgConfidence:        0.9,
		TopCategories:        map[string]int{f.category: len(labeled)},
		CategoryDistribution: map[string]int{f.category: len(labeled)},
	}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Port:        8080,
			MaxUploadMB: 10,
		},
		Anomaly: config.AnomalyConfig{ZScoreThreshold: 3.0},
		Forecast: config.ForecastConfig{
			MinHistoryMonths:       6,
			HorizonMonths:          3,
			MajorCategoryThreshold: 0.05,
			NEstimators:            50,
			MaxDepth:               3,
			LearningRate:           0.1,
		},
	}
}

func newTestRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := newTestLogger()

	handler := NewAnalysisHandler(
		cfg,
		logger,
		extract.NewTableNormalizer(logger),
		&fixedCategorizer{category: "Groceries"},
		analytics.NewAnomalyDetector(cfg.Anomaly, logger),
		database.NewTransactionStore(nil, logger),
	)

	router := gin.New()
	router.POST("/api/v1/statements/analyze", handler.Analyze)
	return router
}

// statementRows builds one debit row per month for count months.
func statementRows(count int, amount float64) []extract.TableRow {
	rows := make([]extract.TableRow, 0, count)
	year, month := 2024, 1
	for i := 0; i < count; i++ {
		rows = append(rows, extract.TableRow{
			Date:        fmt.Sprintf("15-%02d-%d", month, year),
			Description: "GROCERY STORE",
			Debit:       fmt.Sprintf("%.2f", amount+float64(i*10)),
		})
		month++
		if month > 12 {
			month = 1
			year++
		}
	}
	return rows
}

func postAnalyze(t *testing.T, router *gin.Engine, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/statements/analyze", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAnalyzeFullPipeline(t *testing.T) {
	router := newTestRouter(testConfig())

	w := postAnalyze(t, router, AnalyzeRequest{Rows: statementRows(12, 100)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	_, err := uuid.Parse(resp.RunID)
	assert.NoError(t, err)

	assert.Equal(t, 12, resp.Summary.TotalTransactions)
	assert.Equal(t, 12, resp.Summary.TotalExpenses)
	assert.Equal(t, "2024-01-15", resp.Summary.PeriodStart)
	assert.Equal(t, "2024-12-15", resp.Summary.PeriodEnd)
	assert.Equal(t, 1, resp.Summary.CategoriesDetected)

	require.NotNil(t, resp.Anomalies)
	assert.Equal(t, 12, resp.Anomalies.TotalExpenses)

	require.NotNil(t, resp.Forecast)
	assert.Equal(t, 3, resp.Forecast.NMonthsAhead)
	require.Contains(t, resp.Forecast.Forecasts, "Groceries")
	assert.Len(t, resp.Forecast.Forecasts["Groceries"].Predictions, 3)

	require.NotNil(t, resp.Insights)
	assert.Len(t, resp.Insights.SpendingTrend, 12)
}

func TestAnalyzeShortHistoryDegradesForecast(t *testing.T) {
	router := newTestRouter(testConfig())

	w := postAnalyze(t, router, AnalyzeRequest{Rows: statementRows(3, 100)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Empty(t, resp.Forecast.Forecasts, "too little history degrades to an empty forecast")
	assert.Zero(t, resp.Forecast.AvgMAE)
	assert.Equal(t, 3, resp.Forecast.NMonthsAhead)
	assert.Equal(t, 3, resp.Summary.TotalTransactions, "the rest of the analysis still runs")
}

func TestAnalyzeMonthsAheadOverride(t *testing.T) {
	router := newTestRouter(testConfig())

	w := postAnalyze(t, router, AnalyzeRequest{Rows: statementRows(12, 100), MonthsAhead: 6})
	require.Equal(t, http.StatusOK, w.Code)

	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 6, resp.Forecast.NMonthsAhead)
	assert.Len(t, resp.Forecast.Forecasts["Groceries"].Predictions, 6)
}

func TestAnalyzeInvalidBody(t *testing.T) {
	router := newTestRouter(testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/statements/analyze", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeNoUsableRows(t *testing.T) {
	router := newTestRouter(testConfig())

	w := postAnalyze(t, router, AnalyzeRequest{Rows: []extract.TableRow{
		{Date: "garbage", Description: "JUNK", Debit: "10.00"},
	}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no transactions")
}

func TestCapAnomalyLists(t *testing.T) {
	report := &models.AnomalyReport{}
	for i := 0; i < 30; i++ {
		record := models.AnomalyRecord{Amount: float64(i)}
		report.AnomalyTransactions = append(report.AnomalyTransactions, record)
		report.LargestAnomalies = append(report.LargestAnomalies, record)
	}

	capAnomalyLists(report)

	assert.Len(t, report.AnomalyTransactions, 20)
	assert.Len(t, report.LargestAnomalies, 10)
}
