package entity

// StructuredDocument is the merged structured extraction for one
// pipeline run. It is produced once (deterministic atoms + generative
// output) and owned exclusively by the run that created it.
type StructuredDocument struct {
	Parties         []Party             `json:"parties"`
	Subject         string              `json:"subject,omitempty"`
	Term            Term                `json:"term"`
	Financials      Financials          `json:"financials"`
	PaymentSchedule []ScheduledPayment  `json:"payment_schedule,omitempty"`
	Obligations     []Obligation        `json:"obligations,omitempty"`
	Penalties       []Penalty           `json:"penalties,omitempty"`
	Termination     []TerminationClause `json:"termination,omitempty"`
	Risks           []string            `json:"risks,omitempty"`
	ModelConfidence float32             `json:"confidence,omitempty"` // 0..1
}

type Party struct {
	Role           string `json:"role"` // e.g. customer, contractor
	Name           string `json:"name"`
	TaxID          string `json:"tax_id,omitempty"`
	Address        string `json:"address,omitempty"`
	Representative string `json:"representative,omitempty"`
}

type Term struct {
	StartDate      string `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate        string `json:"end_date,omitempty"`   // YYYY-MM-DD
	DurationMonths int    `json:"duration_months,omitempty"`
	AutoRenewal    bool   `json:"auto_renewal,omitempty"`
}

type Financials struct {
	TotalAmount          float64 `json:"total_amount"`
	Currency             string  `json:"currency"` // ISO 4217
	PrepaymentPercent    float64 `json:"prepayment_percent,omitempty"`
	PenaltyPercentPerDay float64 `json:"penalty_percent_per_day,omitempty"`
	VATIncluded          bool    `json:"vat_included,omitempty"`
}

type ScheduledPayment struct {
	DueDate     string  `json:"due_date,omitempty"` // YYYY-MM-DD
	Amount      float64 `json:"amount"`
	Description string  `json:"description,omitempty"`
}

type Obligation struct {
	Party string `json:"party"`
	Text  string `json:"text"`
}

type Penalty struct {
	Trigger       string  `json:"trigger,omitempty"`
	Text          string  `json:"text"`
	PercentPerDay float64 `json:"percent_per_day,omitempty"`
	CapPercent    float64 `json:"cap_percent,omitempty"`
}

type TerminationClause struct {
	Text       string `json:"text"`
	NoticeDays int    `json:"notice_days,omitempty"`
}
