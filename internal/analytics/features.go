package analytics

import (
	"math"
	"sort"

	"github.com/finsight/finsight-go/internal/models"
)

// FeatureColumns is the engineered feature schema, in training order.
var FeatureColumns = []string{
	"lag_1", "lag_2", "lag_3",
	"rolling_mean_3", "rolling_std_3",
	"month_sin", "month_cos",
	"pct_change", "month_index",
}

// rollingWindow is the trailing window length for rolling statistics.
const rollingWindow = 3

// FeatureRow is one month of engineered features with its target amount.
// All features are built strictly from the target month's predecessors,
// except the cyclic month encoding and the ordinal index, which depend only
// on the month's own calendar position.
type FeatureRow struct {
	Lag1         float64 `json:"lag_1"`
	Lag2         float64 `json:"lag_2"`
	Lag3         float64 `json:"lag_3"`
	RollingMean3 float64 `json:"rolling_mean_3"`
	RollingStd3  float64 `json:"rolling_std_3"`
	MonthSin     float64 `json:"month_sin"`
	MonthCos     float64 `json:"month_cos"`
	PctChange    float64 `json:"pct_change"`
	MonthIndex   float64 `json:"month_index"`
	// Month is the calendar month number (1-12) of the row.
	Month int `json:"month"`
	// Target is the observed monthly amount the model learns to predict.
	Target float64 `json:"target"`
}

// FeatureState is the immutable feature vector used to seed and advance
// recursive forecasting. Each step produces a new state rather than mutating
// the previous one.
type FeatureState struct {
	Lag1         float64 `json:"lag_1"`
	Lag2         float64 `json:"lag_2"`
	Lag3         float64 `json:"lag_3"`
	RollingMean3 float64 `json:"rolling_mean_3"`
	RollingStd3  float64 `json:"rolling_std_3"`
	MonthSin     float64 `json:"month_sin"`
	MonthCos     float64 `json:"month_cos"`
	PctChange    float64 `json:"pct_change"`
	MonthIndex   float64 `json:"month_index"`
	Month        int     `json:"month"`
}

// StateFromRow extracts the feature state of an observed row.
func StateFromRow(r FeatureRow) FeatureState {
	return FeatureState{
		Lag1:         r.Lag1,
		Lag2:         r.Lag2,
		Lag3:         r.Lag3,
		RollingMean3: r.RollingMean3,
		RollingStd3:  r.RollingStd3,
		MonthSin:     r.MonthSin,
		MonthCos:     r.MonthCos,
		PctChange:    r.PctChange,
		MonthIndex:   r.MonthIndex,
		Month:        r.Month,
	}
}

// Vector assembles the state's values in the order given by columns.
func (s FeatureState) Vector(columns []string) []float64 {
	out := make([]float64, len(columns))
	for i, col := range columns {
		out[i] = s.value(col)
	}
	return out
}

func (s FeatureState) value(column string) float64 {
	switch column {
	case "lag_1":
		return s.Lag1
	case "lag_2":
		return s.Lag2
	case "lag_3":
		return s.Lag3
	case "rolling_mean_3":
		return s.RollingMean3
	case "rolling_std_3":
		return s.RollingStd3
	case "month_sin":
		return s.MonthSin
	case "month_cos":
		return s.MonthCos
	case "pct_change":
		return s.PctChange
	case "month_index":
		return s.MonthIndex
	}
	return 0
}

// Next advances the state one month using the given prediction.
//
// The lag features shift and the rolling mean is recomputed from the three
// lags only. The rolling std and pct_change stay frozen at their last
// observed values; the calendar month wraps December into January.
func (s FeatureState) Next(prediction float64) FeatureState {
	month := (s.Month + 1) % 12
	if month == 0 {
		month = 12
	}

	return FeatureState{
		Lag1:         prediction,
		Lag2:         s.Lag1,
		Lag3:         s.Lag2,
		RollingMean3: (prediction + s.Lag1 + s.Lag2) / rollingWindow,
		RollingStd3:  s.RollingStd3,
		MonthSin:     monthSin(month),
		MonthCos:     monthCos(month),
		PctChange:    s.PctChange,
		MonthIndex:   s.MonthIndex + 1,
		Month:        month,
	}
}

func monthSin(month int) float64 {
	return math.Sin(2 * math.Pi * float64(month) / 12)
}

func monthCos(month int) float64 {
	return math.Cos(2 * math.Pi * float64(month) / 12)
}

// BuildMonthlySeries aggregates expense transactions into per-category
// monthly series in calendar order. Months with no expenses in a category are
// not synthesized as zero rows: the downstream time index counts observed
// months, not calendar months.
func BuildMonthlySeries(txns []models.TransactionRecord) map[string][]models.MonthlyPoint {
	type key struct {
		category  string
		yearMonth string
	}

	sums := make(map[key]float64)
	months := make(map[key]int)
	for _, tx := range txns {
		if !tx.IsExpense() {
			continue
		}
		k := key{category: tx.Category, yearMonth: tx.Date.Format("2006-01")}
		sums[k] += tx.AbsAmount()
		months[k] = int(tx.Date.Month())
	}

	series := make(map[string][]models.MonthlyPoint)
	for k, amount := range sums {
		series[k.category] = append(series[k.category], models.MonthlyPoint{
			YearMonth: k.yearMonth,
			Month:     months[k],
			Amount:    amount,
		})
	}
	for category := range series {
		points := series[category]
		sort.Slice(points, func(i, j int) bool {
			return points[i].YearMonth < points[j].YearMonth
		})
	}
	return series
}

// MajorCategories returns the categories whose share of total expense
// spending strictly exceeds threshold, sorted alphabetically.
func MajorCategories(txns []models.TransactionRecord, threshold float64) []string {
	var total float64
	byCategory := make(map[string]float64)
	for _, tx := range txns {
		if !tx.IsExpense() {
			continue
		}
		byCategory[tx.Category] += tx.AbsAmount()
		total += tx.AbsAmount()
	}
	if total == 0 {
		return nil
	}

	var major []string
	for category, amount := range byCategory {
		if amount/total > threshold {
			major = append(major, category)
		}
	}
	sort.Strings(major)
	return major
}

// BuildFeatureTable converts a time-ordered monthly series into one
// FeatureRow per month. Undefined feature values (warm-up lags, rolling std
// of a single sample, first pct_change) are forward-filled from the nearest
// prior defined value, then any still-undefined leading values become zero.
func BuildFeatureTable(series []models.MonthlyPoint) []FeatureRow {
	n := len(series)
	if n == 0 {
		return nil
	}

	amounts := make([]float64, n)
	for i, p := range series {
		amounts[i] = p.Amount
	}

	lag1 := make([]float64, n)
	lag2 := make([]float64, n)
	lag3 := make([]float64, n)
	rollMean := make([]float64, n)
	rollStd := make([]float64, n)
	pct := make([]float64, n)

	for t := 0; t < n; t++ {
		lag1[t] = lagValue(amounts, t, 1)
		lag2[t] = lagValue(amounts, t, 2)
		lag3[t] = lagValue(amounts, t, 3)

		start := t - rollingWindow + 1
		if start < 0 {
			start = 0
		}
		window := amounts[start : t+1]
		rollMean[t] = mean(window)
		if len(window) < 2 {
			rollStd[t] = math.NaN()
		} else {
			rollStd[t] = sampleStdDev(window)
		}

		if t == 0 {
			pct[t] = math.NaN()
		} else {
			pct[t] = (amounts[t] - amounts[t-1]) / amounts[t-1]
		}
	}

	for _, column := range [][]float64{lag1, lag2, lag3, rollMean, rollStd, pct} {
		fillForward(column)
	}

	rows := make([]FeatureRow, n)
	for t := 0; t < n; t++ {
		rows[t] = FeatureRow{
			Lag1:         lag1[t],
			Lag2:         lag2[t],
			Lag3:         lag3[t],
			RollingMean3: rollMean[t],
			RollingStd3:  rollStd[t],
			MonthSin:     monthSin(series[t].Month),
			MonthCos:     monthCos(series[t].Month),
			PctChange:    pct[t],
			MonthIndex:   float64(t),
			Month:        series[t].Month,
			Target:       amounts[t],
		}
	}
	return rows
}

func lagValue(amounts []float64, t int, k int) float64 {
	if t < k {
		return math.NaN()
	}
	return amounts[t-k]
}

// fillForward replaces NaN entries with the nearest prior defined value and
// zeroes any leading NaNs.
func fillForward(column []float64) {
	last := math.NaN()
	for i, v := range column {
		if math.IsNaN(v) {
			if math.IsNaN(last) {
				column[i] = 0
			} else {
				column[i] = last
			}
		} else {
			last = v
		}
	}
}
