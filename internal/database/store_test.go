package database

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/finsight-go/internal/models"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestSaveBatch(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	store := NewTransactionStoreWithQuerier(mockPool, newTestLogger())
	runID := uuid.New()

	txns := []models.TransactionRecord{
		{
			Date:        time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
			Description: "grocery store",
			Amount:      -120.50,
			Category:    "Groceries",
			Confidence:  0.91,
		},
		{
			Date:        time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
			Description: "salary",
			Amount:      3000,
			Category:    "Salary_Income",
			Confidence:  0.88,
		},
	}

	for _, tx := range txns {
		mockPool.ExpectExec("INSERT INTO transactions").
			WithArgs(runID, tx.Date, tx.Description, tx.Amount, tx.Category, tx.Confidence).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	require.NoError(t, store.SaveBatch(context.Background(), runID, txns))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSaveBatchExecError(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	store := NewTransactionStoreWithQuerier(mockPool, newTestLogger())
	runID := uuid.New()

	mockPool.ExpectExec("INSERT INTO transactions").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(assert.AnError)

	err = store.SaveBatch(context.Background(), runID, []models.TransactionRecord{
		{Date: time.Now(), Description: "x", Amount: -1},
	})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestListByRun(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	store := NewTransactionStoreWithQuerier(mockPool, newTestLogger())
	runID := uuid.New()
	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	mockPool.ExpectQuery("SELECT txn_date, description, amount, category, confidence").
		WithArgs(runID).
		WillReturnRows(pgxmock.NewRows(
			[]string{"txn_date", "description", "amount", "category", "confidence"}).
			AddRow(date, "grocery store", -120.50, "Groceries", 0.91))

	txns, err := store.ListByRun(context.Background(), runID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "grocery store", txns[0].Description)
	assert.Equal(t, -120.50, txns[0].Amount)
	assert.Equal(t, "Groceries", txns[0].Category)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestStoreUnavailable(t *testing.T) {
	store := NewTransactionStore(nil, newTestLogger())

	assert.False(t, store.Available())
	assert.Error(t, store.SaveBatch(context.Background(), uuid.New(), nil))
	_, err := store.ListByRun(context.Background(), uuid.New())
	assert.Error(t, err)
}
