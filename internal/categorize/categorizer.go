package categorize

import (
	"context"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/finsight/finsight-go/internal/models"
)

// defaultBatchSize is used when the configuration does not set one.
const defaultBatchSize = 8

// Categorizer assigns a spending category to every transaction by combining
// the label cache with the classification service.
type Categorizer struct {
	labeler   Labeler
	cache     *LabelCache
	batchSize int
	logger    *logrus.Logger
}

// NewCategorizer creates a categorizer. cache may be backed by a nil Redis
// client, in which case every description goes to the labeler.
func NewCategorizer(labeler Labeler, cache *LabelCache, batchSize int, logger *logrus.Logger) *Categorizer {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Categorizer{
		labeler:   labeler,
		cache:     cache,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Categorize labels every transaction and returns a new slice; the input is
// never mutated.
//
// Descriptions are normalized (lowercased, whitespace collapsed) before
// lookup so cache keys and classifier inputs agree. Empty descriptions and
// failed classifications degrade to the fallback label instead of failing
// the batch.
func (c *Categorizer) Categorize(ctx context.Context, txns []models.TransactionRecord) ([]models.TransactionRecord, *models.CategorizationMetrics, error) {
	labeled := make([]models.TransactionRecord, len(txns))
	copy(labeled, txns)

	c.logger.WithField("transactions", len(txns)).Info("Categorizing transactions")

	for start := 0; start < len(labeled); start += c.batchSize {
		end := start + c.batchSize
		if end > len(labeled) {
			end = len(labeled)
		}

		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}

			label := c.labelOne(ctx, labeled[i].Description)
			labeled[i].Category = label.Category
			labeled[i].Confidence = label.Confidence
		}
	}

	return labeled, buildMetrics(labeled), nil
}

func (c *Categorizer) labelOne(ctx context.Context, description string) Label {
	normalized := normalizeDescription(description)
	if normalized == "" {
		return fallback()
	}

	if label, ok := c.cache.Get(ctx, normalized); ok {
		return label
	}

	label, err := c.labeler.Classify(ctx, normalized)
	if err != nil {
		c.logger.WithError(err).WithField("description", normalized).
			Warn("Classification failed, using fallback label")
		return fallback()
	}

	c.cache.Set(ctx, normalized, label)
	return label
}

// normalizeDescription lowercases a description and collapses whitespace.
func normalizeDescription(description string) string {
	return strings.Join(strings.Fields(strings.ToLower(description)), " ")
}

// buildMetrics summarizes a labeled transaction set.
func buildMetrics(txns []models.TransactionRecord) *models.CategorizationMetrics {
	distribution := make(map[string]int)
	var confidenceSum float64
	for _, tx := range txns {
		distribution[tx.Category]++
		confidenceSum += tx.Confidence
	}

	categories := make([]string, 0, len(distribution))
	for category := range distribution {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	avgConfidence := 0.0
	if len(txns) > 0 {
		avgConfidence = confidenceSum / float64(len(txns))
	}

	return &models.CategorizationMetrics{
		Categories:           categories,
		AvgConfidence:        avgConfidence,
		TopCategories:        topCategories(distribution, 5),
		CategoryDistribution: distribution,
	}
}

// topCategories returns the most frequent labels capped at limit. Count ties
// break alphabetically so the result is deterministic.
func topCategories(distribution map[string]int, limit int) map[string]int {
	type entry struct {
		category string
		count    int
	}

	entries := make([]entry, 0, len(distribution))
	for category, count := range distribution {
		entries = append(entries, entry{category: category, count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].category < entries[j].category
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}

	top := make(map[string]int, len(entries))
	for _, e := range entries {
		top[e.category] = e.count
	}
	return top
}
