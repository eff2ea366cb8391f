package dictionary

import "github.com/govfin/ledger/internal/ledger"

// CategoryDef is a suggested category served to clients when the account has
// not defined its own yet. Suggestions are labels only; nothing is persisted
// until the holder creates a real category from one.
type CategoryDef struct {
	Label string `json:"label"`
	// Linked marks income suggestions that typically imply a recurring
	// deduction (e.g. a salary with a pension withholding).
	Linked bool `json:"linked,omitempty"`
}

var curated = map[ledger.Kind][]CategoryDef{
	ledger.KindIncome: {
		{Label: "Salary", Linked: true},
		{Label: "Pension"},
		{Label: "Rental Income"},
		{Label: "Social Support"},
		{Label: "Freelance"},
		{Label: "Other Income"},
	},
	ledger.KindExpense: {
		{Label: "Rent"},
		{Label: "Utilities"},
		{Label: "Groceries"},
		{Label: "Transport"},
		{Label: "Health"},
		{Label: "Education"},
		{Label: "Insurance Deduction"},
		{Label: "General"},
	},
}

// CategoriesFor returns curated suggestions for one kind, or for both when
// kind is nil.
func CategoriesFor(k *ledger.Kind) []CategoryDef {
	if k == nil {
		out := make([]CategoryDef, 0)
		out = append(out, curated[ledger.KindIncome]...)
		out = append(out, curated[ledger.KindExpense]...)
		return out
	}
	return curated[*k]
}
