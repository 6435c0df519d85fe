// Package premium turns an applicant attribute record into an annual premium
// estimate. Validation, encoding, scoring and rounding are pure functions of
// the request and the immutable schema/artifact they were built from.
package premium

// RawRecord is an unvalidated applicant payload as decoded from JSON
type RawRecord map[string]any

// ValidatedRecord holds typed field values that passed schema validation.
// Numeric fields are stored as float64 (integers are exact), categorical
// fields as the declared category string.
type ValidatedRecord struct {
	schema  *Schema
	numbers map[string]float64
	labels  map[string]string
}

// Number returns a validated numeric field value
func (r *ValidatedRecord) Number(field string) (float64, bool) {
	v, ok := r.numbers[field]
	return v, ok
}

// Category returns a validated categorical field value
func (r *ValidatedRecord) Category(field string) (string, bool) {
	v, ok := r.labels[field]
	return v, ok
}

// Activation returns the record as CEL activation values. Integer fields are
// exposed as int64 so expressions like `age <= 25` type-check naturally.
func (r *ValidatedRecord) Activation() map[string]any {
	out := make(map[string]any, len(r.numbers)+len(r.labels))
	for _, f := range r.schema.fields {
		switch f.Kind {
		case KindNumeric:
			v := r.numbers[f.Name]
			if f.Integer {
				out[f.Name] = int64(v)
			} else {
				out[f.Name] = v
			}
		case KindCategorical:
			out[f.Name] = r.labels[f.Name]
		}
	}
	return out
}

// FeatureVector is the fixed-order numeric input to the scoring model
type FeatureVector []float64

// Score is the raw model output and the segment that produced it
type Score struct {
	Value        float64
	Segment      string
	ModelVersion string
}

// PremiumResult is the finalized premium returned to callers
type PremiumResult struct {
	Premium      float64 `json:"predicted_premium"`
	Raw          float64 `json:"raw_output"`
	Clamped      bool    `json:"clamped"`
	ClampReason  string  `json:"clamp_reason,omitempty"`
	Segment      string  `json:"segment"`
	ModelVersion string  `json:"model_version"`
}

// Explanation exposes the intermediate representation of a prediction
type Explanation struct {
	Result   *PremiumResult     `json:"result"`
	Features map[string]float64 `json:"features"`
	Order    []string           `json:"order"`
}
