package analytics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/finsight/finsight-go/internal/config"
)

// forecasterConfigFile holds the forecaster-level persisted state.
const forecasterConfigFile = "forecaster_config.json"

// forecasterConfig is the persisted forecaster-level state. Together with the
// per-category model files it is enough to reconstruct a forecast-capable
// orchestrator without retraining.
type forecasterConfig struct {
	FeatureColumns   []string `json:"feature_columns"`
	MajorCategories  []string `json:"major_categories"`
	MinHistoryMonths int      `json:"min_history_months"`
}

// modelFileName builds the per-category model filename. Underscores and
// spaces are stripped from the category so names stay filesystem-safe.
func modelFileName(category string) string {
	clean := strings.NewReplacer("_", "", " ", "").Replace(category)
	return "gbm_" + clean + ".json"
}

// Save persists every trained category model plus the forecaster config into
// dir, creating it if needed.
func (f *SpendingForecaster) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &PersistenceError{Path: dir, Err: err}
	}

	for _, category := range f.trainedCategories() {
		path := filepath.Join(dir, modelFileName(category))
		if err := writeJSON(path, f.models[category]); err != nil {
			return err
		}
		f.logger.WithFields(logrus.Fields{
			"category": category,
			"path":     path,
		}).Info("Saved category model")
	}

	cfgPath := filepath.Join(dir, forecasterConfigFile)
	err := writeJSON(cfgPath, forecasterConfig{
		FeatureColumns:   f.featureColumns,
		MajorCategories:  f.majorCategories,
		MinHistoryMonths: f.cfg.MinHistoryMonths,
	})
	if err != nil {
		return err
	}

	f.logger.WithField("path", cfgPath).Info("Saved forecaster config")
	return nil
}

// LoadForecaster reconstructs a forecaster from a directory written by Save.
//
// A missing or unreadable config file, and any corrupt model file, surface as
// *PersistenceError so callers can distinguish "never trained" from bad
// input. Individual missing model files are tolerated: the corresponding
// category is simply not forecast.
func LoadForecaster(dir string, cfg config.ForecastConfig, logger *logrus.Logger) (*SpendingForecaster, error) {
	var persisted forecasterConfig
	if err := readJSON(filepath.Join(dir, forecasterConfigFile), &persisted); err != nil {
		return nil, err
	}

	cfg.MinHistoryMonths = persisted.MinHistoryMonths
	forecaster := NewSpendingForecaster(cfg, logger)
	forecaster.featureColumns = persisted.FeatureColumns
	forecaster.majorCategories = persisted.MajorCategories

	for _, category := range persisted.MajorCategories {
		path := filepath.Join(dir, modelFileName(category))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			logger.WithField("category", category).Warn("No saved model for category")
			continue
		}

		var cm CategoryModel
		if err := readJSON(path, &cm); err != nil {
			return nil, err
		}
		forecaster.models[category] = &cm
		logger.WithField("category", category).Info("Loaded category model")
	}

	return forecaster, nil
}

// writeJSON writes v to path, flushing to disk before returning. The file
// handle is released on every exit path.
func writeJSON(path string, v interface{}) error {
	file, err := os.Create(path)
	if err != nil {
		return &PersistenceError{Path: path, Err: err}
	}
	defer func() {
		_ = file.Close()
	}()

	if err := json.NewEncoder(file).Encode(v); err != nil {
		return &PersistenceError{Path: path, Err: err}
	}
	if err := file.Sync(); err != nil {
		return &PersistenceError{Path: path, Err: err}
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		return &PersistenceError{Path: path, Err: err}
	}
	defer func() {
		_ = file.Close()
	}()

	if err := json.NewDecoder(file).Decode(v); err != nil {
		return &PersistenceError{Path: path, Err: err}
	}
	return nil
}
