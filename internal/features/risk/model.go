package risk

// EntitySnapshot is a read-only view of the computed financial fields of the
// entity being gated (quote, order change, ...). Callers build it from their
// own records; the evaluator never touches storage.
type EntitySnapshot struct {
	EntityType   string  `json:"entity_type"`
	TotalAmount  float64 `json:"total_amount"`
	FinalAmount  float64 `json:"final_amount"`
	TotalCost    float64 `json:"total_cost"`
	DiscountRate float64 `json:"discount_rate"` // multiplier, 1.0 = no discount
}

// CustomRule is a tenant-authored gate on top of the built-in thresholds.
// Expression is a tengo script; it sees the snapshot fields as globals and
// must leave its verdict in a boolean `hit`.
type CustomRule struct {
	Name       string `bson:"name" json:"name"`
	Expression string `bson:"expression" json:"expression"`
	Block      bool   `bson:"block" json:"block"` // hard-block instead of approval-only
}

// Policy holds the tenant-configured thresholds.
type Policy struct {
	MinProfitMargin     float64      `bson:"min_profit_margin" json:"min_profit_margin"`
	MinDiscountRate     float64      `bson:"min_discount_rate" json:"min_discount_rate"`
	BlockNegativeMargin bool         `bson:"block_negative_margin" json:"block_negative_margin"`
	CustomRules         []CustomRule `bson:"custom_rules,omitempty" json:"custom_rules,omitempty"`
}

// Result is the evaluator's verdict. BlockSubmission means the caller must not
// persist the change at all; RequiresApproval alone still allows a draft.
type Result struct {
	RequiresApproval bool     `json:"requires_approval"`
	BlockSubmission  bool     `json:"block_submission"`
	Reasons          []string `json:"reasons"`
}

const (
	ReasonNegativeProfit = "negative profit"
	ReasonLowMargin      = "low margin"
	ReasonHighDiscount   = "high discount"
)
