package extract

// Fields is the structured record a receipt parse produces. Pointer and
// zero values mean "not determined"; Confidence always reflects the last
// tier that ran successfully, not an aggregate.
type Fields struct {
	Merchant   string   `json:"merchant,omitempty"`
	Amount     *float64 `json:"amount"`
	Date       string   `json:"date,omitempty"` // YYYY-MM-DD
	CategoryID int      `json:"category_id,omitempty"`
	Confidence int      `json:"confidence"`
	Reasoning  string   `json:"reasoning,omitempty"`
}

// MergeFrom overlays values from a higher-capability tier onto f. A field is
// taken from higher whenever higher determined it; lower-tier values never
// displace higher-tier ones.
func (f *Fields) MergeFrom(higher Fields) {
	if higher.Merchant != "" {
		f.Merchant = higher.Merchant
	}
	if higher.Amount != nil {
		f.Amount = higher.Amount
	}
	if higher.Date != "" {
		f.Date = higher.Date
	}
	if higher.CategoryID != 0 {
		f.CategoryID = higher.CategoryID
	}
	if higher.Reasoning != "" {
		f.Reasoning = higher.Reasoning
	}
}

// Result is the outcome of the full extraction pipeline. The pipeline never
// fails outright: missing tiers degrade the result instead.
type Result struct {
	Fields
	RawText  string `json:"extracted_text,omitempty"`
	Source   string `json:"source"` // "vision", "heuristic", "heuristic+refined"
	Degraded bool   `json:"degraded"`
}
