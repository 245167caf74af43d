package genextract

// BuildContractJSONSchema returns a JSON-Schema (draft 2020-12 subset)
// as a generic map. It is sent to the backend as the structured output
// contract and compiled locally to validate whatever comes back.
func BuildContractJSONSchema() map[string]any {
	party := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"role":           map[string]any{"type": "string", "minLength": 1},
			"name":           map[string]any{"type": "string", "minLength": 1},
			"tax_id":         map[string]any{"type": "string", "pattern": `^(\d{10}|\d{12})?$`},
			"address":        map[string]any{"type": "string"},
			"representative": map[string]any{"type": "string"},
		},
		"required": []string{"role", "name"},
	}

	payment := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"due_date":    dateProp(),
			"amount":      map[string]any{"type": "number", "minimum": 0.0},
			"description": map[string]any{"type": "string"},
		},
		"required": []string{"amount"},
	}

	props := map[string]any{
		"parties": map[string]any{
			"type":     "array",
			"items":    party,
			"minItems": 1,
		},
		"subject": map[string]any{"type": "string"},
		"term": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"start_date":      dateProp(),
				"end_date":        dateProp(),
				"duration_months": map[string]any{"type": "integer", "minimum": 0},
				"auto_renewal":    map[string]any{"type": "boolean"},
			},
		},
		"financials": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"total_amount":            map[string]any{"type": "number", "minimum": 0.0},
				"currency":                map[string]any{"type": "string", "minLength": 3, "maxLength": 3},
				"prepayment_percent":      percentProp(),
				"penalty_percent_per_day": map[string]any{"type": "number", "minimum": 0.0},
				"vat_included":            map[string]any{"type": "boolean"},
			},
			"required": []string{"total_amount", "currency"},
		},
		"payment_schedule": map[string]any{"type": "array", "items": payment},
		"obligations": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"party": map[string]any{"type": "string"},
					"text":  map[string]any{"type": "string", "minLength": 1},
				},
				"required": []string{"party", "text"},
			},
		},
		"penalties": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"trigger":         map[string]any{"type": "string"},
					"text":            map[string]any{"type": "string", "minLength": 1},
					"percent_per_day": map[string]any{"type": "number", "minimum": 0.0},
					"cap_percent":     percentProp(),
				},
				"required": []string{"text"},
			},
		},
		"termination": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"text":        map[string]any{"type": "string", "minLength": 1},
					"notice_days": map[string]any{"type": "integer", "minimum": 0},
				},
				"required": []string{"text"},
			},
		},
		"risks": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             []string{"parties", "financials"},
	}
}

// BuildSectionAnalysisSchema constrains the deep-review call: an array
// of per-section findings.
func BuildSectionAnalysisSchema() map[string]any {
	recommendation := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"priority": map[string]any{"type": "string", "enum": []string{"low", "medium", "high", "critical"}},
			"text":     map[string]any{"type": "string", "minLength": 1},
		},
		"required": []string{"priority", "text"},
	}
	section := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"section":         map[string]any{"type": "string", "minLength": 1},
			"summary":         map[string]any{"type": "string"},
			"warnings":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"recommendations": map[string]any{"type": "array", "items": recommendation},
		},
		"required": []string{"section"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"sections": map[string]any{"type": "array", "items": section},
		},
		"required": []string{"sections"},
	}
}

func dateProp() map[string]any {
	return map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`}
}

func percentProp() map[string]any {
	return map[string]any{"type": "number", "minimum": 0.0, "maximum": 100.0}
}
