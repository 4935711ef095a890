package categorize

// Categories is the fixed label set used for zero-shot classification.
var Categories = []string{
	"Food", "Groceries", "Transport", "Bills_Utilities", "Shopping",
	"Entertainment", "Healthcare", "Education", "Travel", "Insurance",
	"Investment", "Salary_Income", "Transfer", "ATM_Withdrawal", "Other",
}

// FallbackLabel is assigned when a description is empty or classification
// fails, with FallbackConfidence as its score.
const (
	FallbackLabel      = "Other"
	FallbackConfidence = 0.5
)

// Label is one classification result.
type Label struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

func fallback() Label {
	return Label{Category: FallbackLabel, Confidence: FallbackConfidence}
}
