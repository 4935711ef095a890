package models

import "time"

// TransactionRecord is a single normalized bank-statement transaction.
// Records are immutable once produced by extraction and labeling; every
// analytics stage derives new data instead of mutating them.
type TransactionRecord struct {
	// Date is the transaction date.
	Date time.Time `json:"date"`
	// Description is the statement narrative for the transaction.
	Description string `json:"description"`
	// Amount is the signed net amount: positive for credits, negative for debits.
	Amount float64 `json:"amount"`
	// Category is the spending category assigned by the labeling collaborator.
	Category string `json:"category,omitempty"`
	// Confidence is the labeling confidence in [0,1].
	Confidence float64 `json:"confidence,omitempty"`
}

// IsExpense reports whether the transaction is an expense (negative amount).
func (t TransactionRecord) IsExpense() bool {
	return t.Amount < 0
}

// AbsAmount returns the absolute value of the signed amount.
func (t TransactionRecord) AbsAmount() float64 {
	if t.Amount < 0 {
		return -t.Amount
	}
	return t.Amount
}

// CategorizationMetrics summarizes a labeling pass over a transaction set.
type CategorizationMetrics struct {
	// Categories is the list of distinct labels assigned.
	Categories []string `json:"categories"`
	// AvgConfidence is the mean labeling confidence.
	AvgConfidence float64 `json:"avg_confidence"`
	// TopCategories maps the five most frequent labels to their counts.
	TopCategories map[string]int `json:"top_categories"`
	// CategoryDistribution maps every label to its count.
	CategoryDistribution map[string]int `json:"category_distribution"`
}
