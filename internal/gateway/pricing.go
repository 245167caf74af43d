package gateway

// Pricing holds per-unit backend pricing, USD per 1K units.
type Pricing struct {
	InputPerK  float64
	OutputPerK float64
}

// PriceTable maps provider name to its pricing.
type PriceTable map[string]Pricing

// EstimateUnits approximates the units a call will consume before it
// is made: prompt length at ~4 chars/unit plus the output budget.
// Used only for rate-limit admission; actual usage replaces it after
// the call.
func EstimateUnits(prompt, system string, maxTokens int) int {
	units := (len(prompt) + len(system)) / 4
	if maxTokens > 0 {
		units += maxTokens
	} else {
		units += 1024
	}
	return units
}

// Cost prices actual usage for a provider. Unknown providers cost
// zero rather than failing: pricing gaps must not block generation.
func (t PriceTable) Cost(provider string, u Usage) float64 {
	p, ok := t[provider]
	if !ok {
		return 0
	}
	return float64(u.InputUnits)/1000*p.InputPerK + float64(u.OutputUnits)/1000*p.OutputPerK
}

// EstimateCost prices an admission estimate, attributing all
// estimated units to the costlier output rate to stay conservative.
func (t PriceTable) EstimateCost(provider string, units int) float64 {
	p, ok := t[provider]
	if !ok {
		return 0
	}
	rate := p.OutputPerK
	if p.InputPerK > rate {
		rate = p.InputPerK
	}
	return float64(units) / 1000 * rate
}
