package premium

import (
	"encoding/json"
	"math"
	"sort"
)

// Validator checks raw records against a schema
type Validator struct {
	schema *Schema
	strict bool
}

// NewValidator creates a validator. With strict set, fields the schema does
// not declare are rejected instead of ignored.
func NewValidator(schema *Schema, strict bool) *Validator {
	return &Validator{schema: schema, strict: strict}
}

// Validate returns the typed record or the first violation, checking fields
// in schema order and undeclared fields last
func (v *Validator) Validate(raw RawRecord) (*ValidatedRecord, error) {
	rec, violations := v.check(raw, true)
	if len(violations) > 0 {
		return nil, violations[0]
	}
	return rec, nil
}

// ValidateAll returns every violation of the record as Violations
func (v *Validator) ValidateAll(raw RawRecord) (*ValidatedRecord, error) {
	rec, violations := v.check(raw, false)
	if len(violations) > 0 {
		return nil, violations
	}
	return rec, nil
}

func (v *Validator) check(raw RawRecord, failFast bool) (*ValidatedRecord, Violations) {
	rec := &ValidatedRecord{
		schema:  v.schema,
		numbers: make(map[string]float64),
		labels:  make(map[string]string),
	}

	var violations Violations
	for _, f := range v.schema.fields {
		value, present := raw[f.Name]
		var err ValidationError
		if !present || value == nil {
			err = &MissingFieldError{Field: f.Name}
		} else if f.Kind == KindNumeric {
			var n float64
			n, err = checkNumber(f, value)
			if err == nil {
				rec.numbers[f.Name] = n
			}
		} else {
			var label string
			label, err = v.checkCategory(f, value)
			if err == nil {
				rec.labels[f.Name] = label
			}
		}

		if err != nil {
			violations = append(violations, err)
			if failFast {
				return nil, violations
			}
		}
	}

	if v.strict {
		var unknown []string
		for name := range raw {
			if _, ok := v.schema.index[name]; !ok {
				unknown = append(unknown, name)
			}
		}
		sort.Strings(unknown)
		for _, name := range unknown {
			violations = append(violations, &UnknownFieldError{Field: name})
			if failFast {
				return nil, violations
			}
		}
	}

	if len(violations) > 0 {
		return nil, violations
	}
	return rec, nil
}

func checkNumber(f Field, value any) (float64, ValidationError) {
	expected := "number"
	if f.Integer {
		expected = "integer"
	}

	n, ok := toFloat(value)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, &InvalidTypeError{Field: f.Name, Value: value, Expected: expected}
	}
	if f.Integer && n != math.Trunc(n) {
		return 0, &InvalidTypeError{Field: f.Name, Value: value, Expected: expected}
	}
	if n < f.Min || n > f.Max {
		return 0, &RangeError{Field: f.Name, Value: n, Min: f.Min, Max: f.Max}
	}
	return n, nil
}

// checkCategory matches labels exactly; there is no case folding and no
// fallback category
func (v *Validator) checkCategory(f Field, value any) (string, ValidationError) {
	label, ok := value.(string)
	if !ok {
		return "", &InvalidTypeError{Field: f.Name, Value: value, Expected: "string"}
	}
	if !v.schema.hasCategory(f.Name, label) {
		return "", &UnknownCategoryError{Field: f.Name, Value: label, Allowed: f.Labels()}
	}
	return label, nil
}

func toFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
