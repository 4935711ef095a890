package analytics

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/finsight/finsight-go/internal/config"
	"github.com/finsight/finsight-go/internal/models"
)

// SpendingForecaster trains per-category models and produces N-step-ahead
// spending forecasts by recursive prediction. A forecaster reconstructed via
// LoadForecaster can forecast without retraining.
type SpendingForecaster struct {
	cfg             config.ForecastConfig
	logger          *logrus.Logger
	models          map[string]*CategoryModel
	featureColumns  []string
	majorCategories []string
}

// NewSpendingForecaster creates an untrained forecaster.
func NewSpendingForecaster(cfg config.ForecastConfig, logger *logrus.Logger) *SpendingForecaster {
	return &SpendingForecaster{
		cfg:            cfg,
		logger:         logger,
		models:         make(map[string]*CategoryModel),
		featureColumns: append([]string(nil), FeatureColumns...),
	}
}

// Train fits one model per major category and returns training metrics.
// It fails with ErrInsufficientHistory when no category qualifies.
func (f *SpendingForecaster) Train(txns []models.TransactionRecord) (map[string]models.CategoryTrainingMetrics, error) {
	trainer := NewCategoryModelTrainer(f.cfg, f.logger)
	trained, metrics, major, err := trainer.Train(txns)
	if err != nil {
		return nil, err
	}

	f.models = trained
	f.majorCategories = major
	return metrics, nil
}

// Forecast produces nMonths sequential point predictions per trained
// category.
//
// Each step predicts from the current feature state, clamps the prediction to
// be non-negative, and folds it back into a new state for the next step. The
// step function is pure: identical models and seed states always yield
// identical forecasts.
func (f *SpendingForecaster) Forecast(nMonths int) (map[string]models.CategoryForecast, error) {
	if len(f.models) == 0 {
		return nil, ErrNoModels
	}

	forecasts := make(map[string]models.CategoryForecast, len(f.models))
	for category, cm := range f.models {
		predictions := make([]float64, 0, nMonths)
		state := cm.LastState
		for i := 0; i < nMonths; i++ {
			pred := cm.Model.Predict(state.Vector(cm.FeatureColumns))
			if pred < 0 {
				pred = 0
			}
			predictions = append(predictions, pred)
			state = state.Next(pred)
		}
		forecasts[category] = models.CategoryForecast{
			Predictions: predictions,
			MAE:         cm.MAE,
		}
	}

	f.logger.WithFields(logrus.Fields{
		"categories": len(forecasts),
		"months":     nMonths,
	}).Info("Generated forecasts")

	return forecasts, nil
}

// MajorCategories returns the categories the forecaster was trained on.
func (f *SpendingForecaster) MajorCategories() []string {
	return f.majorCategories
}

// Model returns the trained model for one category, or nil.
func (f *SpendingForecaster) Model(category string) *CategoryModel {
	return f.models[category]
}

// trainedCategories returns the model keys in deterministic order.
func (f *SpendingForecaster) trainedCategories() []string {
	categories := make([]string, 0, len(f.models))
	for category := range f.models {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	return categories
}

// RunForecastPipeline composes training, forecasting, persistence, and the
// aggregate error metric into one train→forecast→persist run.
//
// Training failures surface to the caller (ErrInsufficientHistory is expected
// to be downgraded to an empty forecast by the orchestrating layer); save
// failures surface as *PersistenceError. modelDir may be empty to skip
// persistence.
func RunForecastPipeline(cfg config.ForecastConfig, logger *logrus.Logger, txns []models.TransactionRecord, nMonths int, modelDir string) (*models.ForecastReport, error) {
	forecaster := NewSpendingForecaster(cfg, logger)

	metrics, err := forecaster.Train(txns)
	if err != nil {
		return nil, err
	}

	forecasts, err := forecaster.Forecast(nMonths)
	if err != nil {
		return nil, err
	}

	if modelDir != "" {
		if err := forecaster.Save(modelDir); err != nil {
			return nil, err
		}
	}

	maes := make([]float64, 0, len(metrics))
	for _, m := range metrics {
		maes = append(maes, m.MAE)
	}

	return &models.ForecastReport{
		Forecasts:       forecasts,
		TrainingMetrics: metrics,
		MajorCategories: forecaster.MajorCategories(),
		AvgMAE:          mean(maes),
		NMonthsAhead:    nMonths,
	}, nil
}
