package analytics

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/finsight/finsight-go/internal/config"
	"github.com/finsight/finsight-go/internal/models"
)

// maxCVFolds caps the number of walk-forward cross-validation folds.
const maxCVFolds = 5

// CategoryModel owns one trained regression model together with everything
// needed to forecast and persist it.
type CategoryModel struct {
	// Model is the fitted gradient-boosted regressor.
	Model *GBMRegressor `json:"model"`
	// FeatureColumns is the schema the model was trained on.
	FeatureColumns []string `json:"feature_columns"`
	// LastState is the feature state of the last observed month, used to seed
	// recursive forecasting.
	LastState FeatureState `json:"last_state"`
	// MAE is the held-out error estimate from walk-forward cross-validation.
	MAE float64 `json:"mae"`
	// CVMAEs lists the per-fold errors behind MAE.
	CVMAEs []float64 `json:"cv_maes"`
	// DataPoints is the number of monthly rows in the training table.
	DataPoints int `json:"data_points"`
}

// CategoryModelTrainer fits one regression model per major spending category
// using walk-forward cross-validation.
type CategoryModelTrainer struct {
	cfg    config.ForecastConfig
	logger *logrus.Logger
}

// NewCategoryModelTrainer creates a trainer with the given configuration.
func NewCategoryModelTrainer(cfg config.ForecastConfig, logger *logrus.Logger) *CategoryModelTrainer {
	return &CategoryModelTrainer{cfg: cfg, logger: logger}
}

// Train fits a model for every major category with enough monthly history.
//
// Each category is validated with walk-forward cross-validation
// (folds = min(5, rows-1), every fold's training rows strictly precede its
// test rows) and then refit on the full series. The CV score stays the
// reported accuracy estimate even though the deployed model sees more data:
// an acknowledged optimistic-bias tradeoff in favor of using all history.
//
// Returns ErrInsufficientHistory when no category crosses the major-spending
// threshold or none has the minimum months of history.
func (t *CategoryModelTrainer) Train(txns []models.TransactionRecord) (map[string]*CategoryModel, map[string]models.CategoryTrainingMetrics, []string, error) {
	major := MajorCategories(txns, t.cfg.MajorCategoryThreshold)
	if len(major) == 0 {
		return nil, nil, nil, fmt.Errorf("no category exceeds %.0f%% of spending: %w",
			t.cfg.MajorCategoryThreshold*100, ErrInsufficientHistory)
	}
	t.logger.WithField("categories", major).Info("Major categories selected")

	series := BuildMonthlySeries(txns)

	trained := make(map[string]*CategoryModel)
	metrics := make(map[string]models.CategoryTrainingMetrics)

	for _, category := range major {
		points := series[category]
		if len(points) < t.cfg.MinHistoryMonths {
			t.logger.WithFields(logrus.Fields{
				"category": category,
				"months":   len(points),
			}).Warn("Insufficient history, skipping category")
			continue
		}

		model := t.trainCategory(category, points)
		trained[category] = model
		metrics[category] = models.CategoryTrainingMetrics{
			MAE:        model.MAE,
			CVMAEs:     model.CVMAEs,
			DataPoints: model.DataPoints,
		}
	}

	if len(trained) == 0 {
		return nil, nil, nil, fmt.Errorf("need at least %d months of history: %w",
			t.cfg.MinHistoryMonths, ErrInsufficientHistory)
	}

	return trained, metrics, major, nil
}

// trainCategory cross-validates and fits the final model for one category.
func (t *CategoryModelTrainer) trainCategory(category string, points []models.MonthlyPoint) *CategoryModel {
	rows := BuildFeatureTable(points)

	features := make([][]float64, len(rows))
	targets := make([]float64, len(rows))
	for i, row := range rows {
		features[i] = StateFromRow(row).Vector(FeatureColumns)
		targets[i] = row.Target
	}

	gbm := t.gbmConfig()

	folds := len(rows) - 1
	if folds > maxCVFolds {
		folds = maxCVFolds
	}

	cvMAEs := make([]float64, 0, folds)
	for _, split := range walkForwardSplits(len(rows), folds) {
		model := gbm.Fit(features[:split.trainEnd], targets[:split.trainEnd])

		predicted := make([]float64, 0, split.testEnd-split.trainEnd)
		for i := split.trainEnd; i < split.testEnd; i++ {
			predicted = append(predicted, model.Predict(features[i]))
		}
		cvMAEs = append(cvMAEs, meanAbsoluteError(targets[split.trainEnd:split.testEnd], predicted))
	}

	avgMAE := mean(cvMAEs)

	// Refit on the full series for the deployed model.
	final := gbm.Fit(features, targets)

	t.logger.WithFields(logrus.Fields{
		"category": category,
		"mae":      avgMAE,
		"rows":     len(rows),
	}).Info("Trained category model")

	return &CategoryModel{
		Model:          final,
		FeatureColumns: append([]string(nil), FeatureColumns...),
		LastState:      StateFromRow(rows[len(rows)-1]),
		MAE:            avgMAE,
		CVMAEs:         cvMAEs,
		DataPoints:     len(rows),
	}
}

func (t *CategoryModelTrainer) gbmConfig() GBMConfig {
	cfg := DefaultGBMConfig()
	if t.cfg.NEstimators > 0 {
		cfg.NEstimators = t.cfg.NEstimators
	}
	if t.cfg.MaxDepth > 0 {
		cfg.MaxDepth = t.cfg.MaxDepth
	}
	if t.cfg.LearningRate > 0 {
		cfg.LearningRate = t.cfg.LearningRate
	}
	return cfg
}

// foldSplit marks one walk-forward fold: rows [0, trainEnd) train the model,
// rows [trainEnd, testEnd) evaluate it.
type foldSplit struct {
	trainEnd int
	testEnd  int
}

// walkForwardSplits produces time-ordered expanding-window folds. Test sets
// are equally sized trailing blocks; each fold trains on everything strictly
// before its test block, so no future data leaks into training.
func walkForwardSplits(n int, folds int) []foldSplit {
	if folds < 1 || n < 2 {
		return nil
	}

	testSize := n / (folds + 1)
	if testSize < 1 {
		testSize = 1
	}

	splits := make([]foldSplit, 0, folds)
	for i := 0; i < folds; i++ {
		trainEnd := n - (folds-i)*testSize
		if trainEnd < 1 {
			continue
		}
		splits = append(splits, foldSplit{trainEnd: trainEnd, testEnd: trainEnd + testSize})
	}
	return splits
}
