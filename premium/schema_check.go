package premium

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateFields checks a field list before it becomes a Schema. Field names
// double as CEL variable names in segment conditions, so they follow CEL
// identifier rules.
func ValidateFields(fields []Field) error {
	if len(fields) == 0 {
		return fmt.Errorf("schema cannot be empty, must contain at least one field")
	}

	seen := make(map[string]bool, len(fields))
	slots := make(map[string]string)
	for _, f := range fields {
		if err := validateIdentifier(f.Name); err != nil {
			return fmt.Errorf("invalid field name %q: %w", f.Name, err)
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = true

		var err error
		switch f.Kind {
		case KindNumeric:
			err = validateNumeric(f)
		case KindCategorical:
			err = validateCategorical(f)
		default:
			err = fmt.Errorf("unknown kind %q (must be numeric or categorical)", f.Kind)
		}
		if err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}

		for _, slot := range f.Slots() {
			if owner, dup := slots[slot]; dup {
				return fmt.Errorf("feature slot %q produced by both %q and %q", slot, owner, f.Name)
			}
			slots[slot] = f.Name
		}
	}
	return nil
}

func validateNumeric(f Field) error {
	if math.IsNaN(f.Min) || math.IsInf(f.Min, 0) {
		return fmt.Errorf("minimum must be finite")
	}
	if math.IsNaN(f.Max) || f.Max < f.Min {
		return fmt.Errorf("maximum %v is below minimum %v", f.Max, f.Min)
	}
	if f.Integer && (f.Min != math.Trunc(f.Min)) {
		return fmt.Errorf("integer field has fractional minimum %v", f.Min)
	}
	if len(f.Categories) > 0 {
		return fmt.Errorf("numeric field cannot declare categories")
	}

	switch f.Scaling.Method {
	case ScaleNone:
	case ScaleMinMax:
		if !(f.Scaling.Hi > f.Scaling.Lo) {
			return fmt.Errorf("minmax scaling needs hi > lo, got [%v, %v]", f.Scaling.Lo, f.Scaling.Hi)
		}
	case ScaleStandard:
		if !(f.Scaling.Std > 0) {
			return fmt.Errorf("standard scaling needs a positive std, got %v", f.Scaling.Std)
		}
	default:
		return fmt.Errorf("unknown scaling method %q", f.Scaling.Method)
	}
	return nil
}

func validateCategorical(f Field) error {
	if len(f.Categories) == 0 {
		return fmt.Errorf("categorical field must declare at least one category")
	}

	labels := make(map[string]bool, len(f.Categories))
	for _, c := range f.Categories {
		if c.Label == "" {
			return fmt.Errorf("empty category label")
		}
		if strings.TrimSpace(c.Label) != c.Label {
			return fmt.Errorf("category %q has leading/trailing whitespace", c.Label)
		}
		if labels[c.Label] {
			return fmt.Errorf("duplicate category %q", c.Label)
		}
		labels[c.Label] = true
	}
	if f.Baseline != "" && !labels[f.Baseline] {
		return fmt.Errorf("baseline %q is not a declared category", f.Baseline)
	}

	switch f.Encoding {
	case EncodingOrdinal:
		codes := make(map[float64]string, len(f.Categories))
		for _, c := range f.Categories {
			if math.IsNaN(c.Code) || math.IsInf(c.Code, 0) {
				return fmt.Errorf("category %q has non-finite code", c.Label)
			}
			if other, dup := codes[c.Code]; dup {
				return fmt.Errorf("categories %q and %q share code %v", other, c.Label, c.Code)
			}
			codes[c.Code] = c.Label
		}
	case EncodingOneHot, EncodingCombined:
		// distinct labels already guarantee distinct indicator patterns
	case EncodingConditions:
		return validateConditions(f)
	default:
		return fmt.Errorf("unknown encoding %q", f.Encoding)
	}
	return nil
}

// validateConditions makes sure every category decomposes into declared base
// conditions and that no two categories collapse onto the same set
func validateConditions(f Field) error {
	if len(f.BaseConditions) == 0 {
		return fmt.Errorf("conditions encoding needs base conditions")
	}
	if !(f.RiskMax > 0) {
		return fmt.Errorf("conditions encoding needs a positive risk max, got %v", f.RiskMax)
	}

	base := make(map[string]bool, len(f.BaseConditions))
	for _, c := range f.BaseConditions {
		if err := validateIdentifier(c.Name); err != nil {
			return fmt.Errorf("invalid condition name %q: %w", c.Name, err)
		}
		if base[c.Name] {
			return fmt.Errorf("duplicate base condition %q", c.Name)
		}
		if c.Weight < 0 || math.IsNaN(c.Weight) || math.IsInf(c.Weight, 0) {
			return fmt.Errorf("base condition %q has invalid weight %v", c.Name, c.Weight)
		}
		base[c.Name] = true
	}

	sets := make(map[string]string, len(f.Categories))
	for _, c := range f.Categories {
		inCategory := make(map[string]bool, len(c.Conditions))
		for _, name := range c.Conditions {
			if !base[name] {
				return fmt.Errorf("category %q references undeclared condition %q", c.Label, name)
			}
			if inCategory[name] {
				return fmt.Errorf("category %q lists condition %q twice", c.Label, name)
			}
			inCategory[name] = true
		}

		key := conditionSetKey(c.Conditions)
		if other, dup := sets[key]; dup {
			return fmt.Errorf("categories %q and %q decompose to the same conditions", other, c.Label)
		}
		sets[key] = c.Label
	}
	return nil
}

func conditionSetKey(conditions []string) string {
	sorted := append([]string(nil), conditions...)
	sort.Strings(sorted)
	return strings.Join(sorted, "&")
}

// validateIdentifier checks a field or condition name: 1-100 characters
// matching ^[a-zA-Z_][a-zA-Z0-9_]*$ and not a CEL reserved word
func validateIdentifier(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > 100 {
		return fmt.Errorf("identifier length %d exceeds maximum of 100 characters", len(name))
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("must match pattern ^[a-zA-Z_][a-zA-Z0-9_]*$")
	}
	if reservedKeywords[name] {
		return fmt.Errorf("cannot use reserved keyword %q as identifier", name)
	}
	return nil
}

var reservedKeywords = map[string]bool{
	"true": true, "false": true, "null": true,
	"if": true, "else": true, "for": true, "while": true,
	"break": true, "continue": true, "return": true,
	"var": true, "let": true, "const": true, "function": true,
	"in": true, "as": true, "import": true, "package": true,
	"namespace": true, "loop": true, "void": true,
}
