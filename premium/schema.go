package premium

import (
	"fmt"
	"math"
	"strings"
)

// Kind is the input domain of a field
type Kind string

const (
	KindNumeric     Kind = "numeric"
	KindCategorical Kind = "categorical"
)

// Encoding selects how a categorical field becomes feature slots
type Encoding string

const (
	// EncodingOrdinal emits one slot holding the category's declared code
	EncodingOrdinal Encoding = "ordinal"

	// EncodingOneHot emits one indicator per non-baseline category
	EncodingOneHot Encoding = "onehot"

	// EncodingCombined treats every category, compound ones included, as its
	// own one-hot indicator
	EncodingCombined Encoding = "combined"

	// EncodingConditions decomposes each category into base conditions: one
	// indicator per base condition plus a normalized risk score slot
	EncodingConditions Encoding = "conditions"
)

// ScalingMethod names a deterministic numeric transform
type ScalingMethod string

const (
	ScaleNone     ScalingMethod = ""
	ScaleMinMax   ScalingMethod = "minmax"
	ScaleStandard ScalingMethod = "standard"
)

// Scaling is a fitted numeric transform. MinMax maps [Lo, Hi] onto [0, 1];
// Standard maps x to (x - Mean) / Std.
type Scaling struct {
	Method ScalingMethod
	Lo     float64
	Hi     float64
	Mean   float64
	Std    float64
}

// MinMax returns a linear rescale of [lo, hi] onto [0, 1]
func MinMax(lo, hi float64) Scaling {
	return Scaling{Method: ScaleMinMax, Lo: lo, Hi: hi}
}

// Standard returns a z-score transform
func Standard(mean, std float64) Scaling {
	return Scaling{Method: ScaleStandard, Mean: mean, Std: std}
}

// Apply transforms x
func (s Scaling) Apply(x float64) float64 {
	switch s.Method {
	case ScaleMinMax:
		return (x - s.Lo) / (s.Hi - s.Lo)
	case ScaleStandard:
		return (x - s.Mean) / s.Std
	default:
		return x
	}
}

// Category is one allowed value of a categorical field
type Category struct {
	Label string

	// Code is the slot value under EncodingOrdinal
	Code float64

	// Conditions lists the base conditions under EncodingConditions
	Conditions []string
}

// Condition is a base medical condition with its risk weight
type Condition struct {
	Name   string
	Weight float64
}

// Field describes one input attribute
type Field struct {
	Name string
	Kind Kind

	// numeric
	Integer bool
	Min     float64
	Max     float64
	Scaling Scaling

	// categorical
	Encoding       Encoding
	Categories     []Category
	Baseline       string
	BaseConditions []Condition
	RiskMax        float64
}

// Labels returns the allowed categories in declaration order
func (f Field) Labels() []string {
	labels := make([]string, len(f.Categories))
	for i, c := range f.Categories {
		labels[i] = c.Label
	}
	return labels
}

// Slots returns the feature names this field contributes, in vector order
func (f Field) Slots() []string {
	if f.Kind == KindNumeric {
		return []string{f.Name}
	}

	switch f.Encoding {
	case EncodingOrdinal:
		return []string{f.Name}
	case EncodingOneHot, EncodingCombined:
		var slots []string
		for _, c := range f.Categories {
			if c.Label == f.Baseline {
				continue
			}
			slots = append(slots, f.Name+"_"+c.Label)
		}
		return slots
	case EncodingConditions:
		slots := make([]string, 0, len(f.BaseConditions)+1)
		for _, c := range f.BaseConditions {
			slots = append(slots, f.Name+"_"+c.Name)
		}
		return append(slots, f.Name+"_risk_score")
	}
	return nil
}

// Schema is the ordered, immutable set of input fields
type Schema struct {
	fields []Field
	index  map[string]int
	labels map[string]map[string]int
	slots  []string
}

// NewSchema checks and freezes a field list. The fields are deep-copied so
// later changes by the caller cannot leak into a live schema.
func NewSchema(fields ...Field) (*Schema, error) {
	if err := ValidateFields(fields); err != nil {
		return nil, err
	}

	s := &Schema{
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
		labels: make(map[string]map[string]int),
	}
	for i, f := range fields {
		f = copyField(f)
		s.fields[i] = f
		s.index[f.Name] = i
		if f.Kind == KindCategorical {
			lookup := make(map[string]int, len(f.Categories))
			for j, c := range f.Categories {
				lookup[c.Label] = j
			}
			s.labels[f.Name] = lookup
		}
		s.slots = append(s.slots, f.Slots()...)
	}
	return s, nil
}

// MustNewSchema is NewSchema for package-level tables known to be valid
func MustNewSchema(fields ...Field) *Schema {
	s, err := NewSchema(fields...)
	if err != nil {
		panic(fmt.Sprintf("invalid feature schema: %v", err))
	}
	return s
}

// Fields returns a copy of the field list
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	for i, f := range s.fields {
		out[i] = copyField(f)
	}
	return out
}

// Field looks up a field by name
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return copyField(s.fields[i]), true
}

// FeatureNames returns the slot names in vector order
func (s *Schema) FeatureNames() []string {
	out := make([]string, len(s.slots))
	copy(out, s.slots)
	return out
}

// Dimension is the length of every encoded vector
func (s *Schema) Dimension() int {
	return len(s.slots)
}

func (s *Schema) hasCategory(field, label string) bool {
	_, ok := s.labels[field][label]
	return ok
}

// String renders the schema as a table, one field per line
func (s *Schema) String() string {
	var b strings.Builder
	for _, f := range s.fields {
		switch f.Kind {
		case KindNumeric:
			typ := "number"
			if f.Integer {
				typ = "integer"
			}
			max := fmt.Sprintf("%v", f.Max)
			if math.IsInf(f.Max, 1) {
				max = "+inf"
			}
			fmt.Fprintf(&b, "%-18s %-8s [%v, %s]\n", f.Name, typ, f.Min, max)
		case KindCategorical:
			fmt.Fprintf(&b, "%-18s %-8s %s {%s}\n", f.Name, "category", f.Encoding, strings.Join(f.Labels(), ", "))
		}
	}
	return b.String()
}

func copyField(f Field) Field {
	if f.Categories != nil {
		cats := make([]Category, len(f.Categories))
		for i, c := range f.Categories {
			if c.Conditions != nil {
				c.Conditions = append([]string(nil), c.Conditions...)
			}
			cats[i] = c
		}
		f.Categories = cats
	}
	if f.BaseConditions != nil {
		f.BaseConditions = append([]Condition(nil), f.BaseConditions...)
	}
	return f
}
