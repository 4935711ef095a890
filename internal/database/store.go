package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/finsight/finsight-go/internal/models"
)

// TransactionQuerier defines the database operations needed by the store.
type TransactionQuerier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// TransactionStore records normalized transactions per analysis run. Storage
// is optional: with no database configured the store is constructed around a
// nil pool and its methods report unavailability.
type TransactionStore struct {
	db     TransactionQuerier
	logger *logrus.Logger
}

// NewTransactionStore creates a store backed by the connection pool. db may
// be nil.
func NewTransactionStore(db *PostgresDB, logger *logrus.Logger) *TransactionStore {
	var querier TransactionQuerier
	if db != nil {
		querier = db.Pool
	}
	return &TransactionStore{db: querier, logger: logger}
}

// NewTransactionStoreWithQuerier creates a store with a custom querier (for tests).
func NewTransactionStoreWithQuerier(db TransactionQuerier, logger *logrus.Logger) *TransactionStore {
	return &TransactionStore{db: db, logger: logger}
}

// Available reports whether a database is wired in.
func (s *TransactionStore) Available() bool {
	return s.db != nil
}

const insertTransactionSQL = `
	INSERT INTO transactions (run_id, txn_date, description, amount, category, confidence)
	VALUES ($1, $2, $3, $4, $5, $6)`

// SaveBatch stores every transaction under the given analysis-run ID.
func (s *TransactionStore) SaveBatch(ctx context.Context, runID uuid.UUID, txns []models.TransactionRecord) error {
	if s.db == nil {
		return fmt.Errorf("transaction store is not available")
	}

	for _, tx := range txns {
		_, err := s.db.Exec(ctx, insertTransactionSQL,
			runID, tx.Date, tx.Description, tx.Amount, tx.Category, tx.Confidence)
		if err != nil {
			return fmt.Errorf("failed to store transaction: %w", err)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"run_id":       runID,
		"transactions": len(txns),
	}).Info("Stored analysis run transactions")

	return nil
}

const listByRunSQL = `
	SELECT txn_date, description, amount, category, confidence
	FROM transactions
	WHERE run_id = $1
	ORDER BY txn_date ASC`

// ListByRun returns every transaction stored under an analysis-run ID in
// date order.
func (s *TransactionStore) ListByRun(ctx context.Context, runID uuid.UUID) ([]models.TransactionRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("transaction store is not available")
	}

	rows, err := s.db.Query(ctx, listByRunSQL, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txns []models.TransactionRecord
	for rows.Next() {
		var (
			date        time.Time
			description string
			amount      float64
			category    string
			confidence  float64
		)
		if err := rows.Scan(&date, &description, &amount, &category, &confidence); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, models.TransactionRecord{
			Date:        date,
			Description: description,
			Amount:      amount,
			Category:    category,
			Confidence:  confidence,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}

	return txns, nil
}
