package premium

import (
	"fmt"
)

// Encoder maps validated records onto the schema's fixed slot layout.
// Category codes are precomputed into one table per field so every label
// has exactly one slot pattern.
type Encoder struct {
	schema *Schema
	tables map[string]map[string][]float64
}

// NewEncoder builds the per-field category code tables
func NewEncoder(schema *Schema) *Encoder {
	en := &Encoder{
		schema: schema,
		tables: make(map[string]map[string][]float64),
	}
	for _, f := range schema.fields {
		if f.Kind == KindCategorical {
			en.tables[f.Name] = buildCodeTable(f)
		}
	}
	return en
}

// CodeTable returns a copy of the slot values each category of a field
// encodes to
func (en *Encoder) CodeTable(field string) map[string][]float64 {
	table, ok := en.tables[field]
	if !ok {
		return nil
	}
	out := make(map[string][]float64, len(table))
	for label, codes := range table {
		out[label] = append([]float64(nil), codes...)
	}
	return out
}

// Encode produces a fresh feature vector. Records validated against a
// different schema are rejected as an internal error.
func (en *Encoder) Encode(rec *ValidatedRecord) (FeatureVector, error) {
	if rec == nil || rec.schema != en.schema {
		return nil, fmt.Errorf("%w: record was not validated against the encoder schema", ErrInternal)
	}

	vec := make(FeatureVector, 0, en.schema.Dimension())
	for _, f := range en.schema.fields {
		switch f.Kind {
		case KindNumeric:
			vec = append(vec, f.Scaling.Apply(rec.numbers[f.Name]))
		case KindCategorical:
			codes, ok := en.tables[f.Name][rec.labels[f.Name]]
			if !ok {
				return nil, fmt.Errorf("%w: no code for %s=%q", ErrInternal, f.Name, rec.labels[f.Name])
			}
			vec = append(vec, codes...)
		}
	}

	if len(vec) != en.schema.Dimension() {
		return nil, &DimensionMismatchError{Expected: en.schema.Dimension(), Got: len(vec)}
	}
	return vec, nil
}

func buildCodeTable(f Field) map[string][]float64 {
	table := make(map[string][]float64, len(f.Categories))

	switch f.Encoding {
	case EncodingOrdinal:
		for _, c := range f.Categories {
			table[c.Label] = []float64{c.Code}
		}

	case EncodingOneHot, EncodingCombined:
		var indicators []string
		for _, c := range f.Categories {
			if c.Label != f.Baseline {
				indicators = append(indicators, c.Label)
			}
		}
		for _, c := range f.Categories {
			codes := make([]float64, len(indicators))
			for i, label := range indicators {
				if label == c.Label {
					codes[i] = 1
				}
			}
			table[c.Label] = codes
		}

	case EncodingConditions:
		for _, c := range f.Categories {
			present := make(map[string]bool, len(c.Conditions))
			for _, name := range c.Conditions {
				present[name] = true
			}
			codes := make([]float64, 0, len(f.BaseConditions)+1)
			var risk float64
			for _, base := range f.BaseConditions {
				if present[base.Name] {
					codes = append(codes, 1)
					risk += base.Weight
				} else {
					codes = append(codes, 0)
				}
			}
			table[c.Label] = append(codes, risk/f.RiskMax)
		}
	}
	return table
}
