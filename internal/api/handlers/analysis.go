package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/finsight/finsight-go/internal/analytics"
	"github.com/finsight/finsight-go/internal/config"
	"github.com/finsight/finsight-go/internal/database"
	"github.com/finsight/finsight-go/internal/extract"
	"github.com/finsight/finsight-go/internal/models"
)

// Response caps keep analysis payloads bounded on statements with many
// flagged transactions.
const (
	responseAnomalyCap = 20
	responseLargestCap = 10
	maxForecastMonths  = 24
)

// TransactionCategorizer labels a transaction batch.
type TransactionCategorizer interface {
	Categorize(ctx context.Context, txns []models.TransactionRecord) ([]models.TransactionRecord, *models.CategorizationMetrics, error)
}

// AnalysisHandler runs the full statement analysis pipeline.
type AnalysisHandler struct {
	cfg         *config.Config
	logger      *logrus.Logger
	extractor   extract.Extractor
	categorizer TransactionCategorizer
	detector    *analytics.AnomalyDetector
	store       *database.TransactionStore
}

// NewAnalysisHandler creates the analysis handler.
func NewAnalysisHandler(
	cfg *config.Config,
	logger *logrus.Logger,
	extractor extract.Extractor,
	categorizer TransactionCategorizer,
	detector *analytics.AnomalyDetector,
	store *database.TransactionStore,
) *AnalysisHandler {
	return &AnalysisHandler{
		cfg:         cfg,
		logger:      logger,
		extractor:   extractor,
		categorizer: categorizer,
		detector:    detector,
		store:       store,
	}
}

// AnalyzeRequest carries extracted statement table rows plus an optional
// forecast horizon override.
type AnalyzeRequest struct {
	Rows        []extract.TableRow `json:"rows" binding:"required"`
	MonthsAhead int                `json:"months_ahead"`
}

// AnalysisSummary gives the headline numbers of one analysis run.
type AnalysisSummary struct {
	TotalTransactions  int            `json:"total_transactions"`
	TotalExpenses      int            `json:"total_expenses"`
	TotalSpend         float64        `json:"total_spend"`
	PeriodStart        string         `json:"period_start"`
	PeriodEnd          string         `json:"period_end"`
	CategoriesDetected int            `json:"categories_detected"`
	TopCategories      map[string]int `json:"top_categories"`
}

// AnalyzeResponse is the full analysis output.
type AnalyzeResponse struct {
	RunID          string                        `json:"run_id"`
	Summary        AnalysisSummary               `json:"summary"`
	Categorization *models.CategorizationMetrics `json:"categorization"`
	Anomalies      *models.AnomalyReport         `json:"anomalies"`
	Insights       *models.InsightsReport        `json:"insights"`
	Forecast       *models.ForecastReport        `json:"forecast"`
}

// Analyze handles POST /api/v1/statements/analyze.
//
// The pipeline is normalize, categorize, detect anomalies, aggregate
// insights, forecast. Insufficient history for forecasting degrades to an
// empty forecast while the rest of the analysis still succeeds.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	runID := uuid.New()
	log := h.logger.WithField("run_id", runID)

	txns, err := h.extractor.Normalize(req.Rows)
	if err != nil {
		if errors.Is(err, extract.ErrNoTransactions) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.WithError(err).Error("Statement normalization failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to normalize statement"})
		return
	}

	labeled, categorization, err := h.categorizer.Categorize(c.Request.Context(), txns)
	if err != nil {
		log.WithError(err).Error("Categorization failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to categorize transactions"})
		return
	}

	anomalies, err := h.detector.Detect(labeled)
	if err != nil {
		if analytics.IsValidationError(err) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		log.WithError(err).Error("Anomaly detection failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to detect anomalies"})
		return
	}

	insights := analytics.SpendingInsights(labeled)

	months := req.MonthsAhead
	if months <= 0 {
		months = h.cfg.Forecast.HorizonMonths
	}
	if months > maxForecastMonths {
		months = maxForecastMonths
	}

	forecast, err := analytics.RunForecastPipeline(h.cfg.Forecast, h.logger, labeled, months, h.cfg.Forecast.ModelDir)
	if err != nil {
		if !errors.Is(err, analytics.ErrInsufficientHistory) {
			log.WithError(err).Error("Forecasting failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to forecast spending"})
			return
		}
		log.WithError(err).Info("Forecast degraded to empty result")
		forecast = models.EmptyForecastReport(months)
	}

	if h.store.Available() {
		if err := h.store.SaveBatch(c.Request.Context(), runID, labeled); err != nil {
			log.WithError(err).Warn("Failed to persist analysis run")
		}
	}

	capAnomalyLists(anomalies)

	log.WithFields(logrus.Fields{
		"transactions": len(labeled),
		"anomalies":    anomalies.TotalAnomalies,
		"forecasts":    len(forecast.Forecasts),
	}).Info("Analysis complete")

	c.JSON(http.StatusOK, AnalyzeResponse{
		RunID:          runID.String(),
		Summary:        buildSummary(labeled, categorization, insights),
		Categorization: categorization,
		Anomalies:      anomalies,
		Insights:       insights,
		Forecast:       forecast,
	})
}

// capAnomalyLists truncates the report's transaction lists to the response caps.
func capAnomalyLists(report *models.AnomalyReport) {
	if len(report.AnomalyTransactions) > responseAnomalyCap {
		report.AnomalyTransactions = report.AnomalyTransactions[:responseAnomalyCap]
	}
	if len(report.LargestAnomalies) > responseLargestCap {
		report.LargestAnomalies = report.LargestAnomalies[:responseLargestCap]
	}
}

func buildSummary(txns []models.TransactionRecord, categorization *models.CategorizationMetrics, insights *models.InsightsReport) AnalysisSummary {
	summary := AnalysisSummary{
		TotalTransactions:  len(txns),
		TotalSpend:         insights.TotalSpending,
		CategoriesDetected: len(categorization.Categories),
		TopCategories:      categorization.TopCategories,
	}

	for _, tx := range txns {
		if tx.IsExpense() {
			summary.TotalExpenses++
		}
	}

	if len(txns) > 0 {
		// Records arrive date-ordered from normalization.
		summary.PeriodStart = txns[0].Date.Format("2006-01-02")
		summary.PeriodEnd = txns[len(txns)-1].Date.Format("2006-01-02")
	}

	return summary
}
