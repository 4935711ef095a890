package extract

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/finsight/finsight-go/internal/models"
)

// ErrNoTransactions indicates that no usable transaction survived
// normalization.
var ErrNoTransactions = errors.New("no transactions found in statement")

// Extractor converts raw statement table rows into normalized transaction
// records.
type Extractor interface {
	Normalize(rows []TableRow) ([]models.TransactionRecord, error)
}

// TableRow is one raw row of an extracted statement table. All cells are
// strings exactly as they appeared in the source document.
type TableRow struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Credit      string `json:"credit"`
	Debit       string `json:"debit"`
	Balance     string `json:"balance"`
}

// dateLayouts are tried in order when parsing statement dates. Day-first
// layouts come first because most bank statements use them.
var dateLayouts = []string{
	"02-01-2006",
	"02/01/2006",
	"2006-01-02",
	"02 Jan 2006",
	"Jan 2, 2006",
}

// TableNormalizer converts raw statement table rows into validated,
// date-ordered TransactionRecords.
type TableNormalizer struct {
	logger *logrus.Logger
}

// NewTableNormalizer creates a normalizer.
func NewTableNormalizer(logger *logrus.Logger) *TableNormalizer {
	return &TableNormalizer{logger: logger}
}

// Normalize converts raw rows into transaction records.
//
// Rows with an unparseable date or a zero net amount are dropped rather than
// failing the batch. The net amount is credit minus debit, so debits come out
// negative. Output is sorted ascending by date; ties keep input order.
// Returns ErrNoTransactions when nothing survives.
func (n *TableNormalizer) Normalize(rows []TableRow) ([]models.TransactionRecord, error) {
	records := make([]models.TransactionRecord, 0, len(rows))
	dropped := 0

	for i, row := range rows {
		date, ok := parseDate(row.Date)
		if !ok {
			n.logger.WithFields(logrus.Fields{
				"row":  i,
				"date": row.Date,
			}).Warn("Dropping row with unparseable date")
			dropped++
			continue
		}

		net := parseAmount(row.Credit).Sub(parseAmount(row.Debit))
		if net.IsZero() {
			dropped++
			continue
		}

		amount, _ := net.Float64()
		records = append(records, models.TransactionRecord{
			Date:        date,
			Description: collapseWhitespace(row.Description),
			Amount:      amount,
		})
	}

	if len(records) == 0 {
		return nil, ErrNoTransactions
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})

	n.logger.WithFields(logrus.Fields{
		"records": len(records),
		"dropped": dropped,
	}).Info("Normalized statement rows")

	return records, nil
}

// parseDate tries each supported layout in order.
func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if date, err := time.Parse(layout, raw); err == nil {
			return date, true
		}
	}
	return time.Time{}, false
}

// amountCleaner strips currency symbols, thousands separators, and spaces.
var amountCleaner = strings.NewReplacer(
	"$", "", "£", "", "€", "", "₹", "",
	",", "", " ", "",
)

// parseAmount converts a raw amount cell to a decimal. Blank or unparseable
// cells are treated as zero. Parenthesized amounts are negative, per common
// statement convention.
func parseAmount(raw string) decimal.Decimal {
	cleaned := amountCleaner.Replace(strings.TrimSpace(raw))
	if cleaned == "" || cleaned == "-" {
		return decimal.Zero
	}

	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}

	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	if negative {
		return value.Neg()
	}
	return value
}

// collapseWhitespace trims a description and squeezes internal runs of
// whitespace into single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
