package main

import (
	"math"

	"github.com/liamcoop/premium/premium"
)

// API request and response models

// PredictResponse is the body of a successful prediction. Only the premium
// is returned unless the caller asks for an explanation.
type PredictResponse struct {
	PredictedPremium float64 `json:"predicted_premium"`

	Segment      string             `json:"segment,omitempty"`
	ModelVersion string             `json:"model_version,omitempty"`
	Clamped      *bool              `json:"clamped,omitempty"`
	RequestID    string             `json:"request_id,omitempty"`
	PredictionID string             `json:"prediction_id,omitempty"`
	Features     map[string]float64 `json:"features,omitempty"`
}

// BatchRequest carries records scored independently of each other
type BatchRequest struct {
	Records []premium.RawRecord `json:"records"`
}

// BatchItem is one batch result; exactly one of the premium or the error
// fields is set
type BatchItem struct {
	Index            int         `json:"index"`
	PredictedPremium *float64    `json:"predicted_premium,omitempty"`
	Error            string      `json:"error,omitempty"`
	Violations       []Violation `json:"violations,omitempty"`
}

// BatchResponse lists results in input order
type BatchResponse struct {
	Results   []BatchItem `json:"results"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

// Violation describes one rejected field
type Violation struct {
	Field      string `json:"field"`
	Value      any    `json:"value,omitempty"`
	Constraint string `json:"constraint"`
	Reason     string `json:"reason"`
}

// ValidationErrorResponse is returned with 400 for rejected records
type ValidationErrorResponse struct {
	Error      string      `json:"error"`
	Violations []Violation `json:"violations"`
}

// SchemaField describes one applicant field for form builders
type SchemaField struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	Integer    bool     `json:"integer,omitempty"`
	Min        *float64 `json:"min,omitempty"`
	Max        *float64 `json:"max,omitempty"`
	Encoding   string   `json:"encoding,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Slots      []string `json:"slots"`
}

// SchemaResponse is the body of GET /api/v1/schema
type SchemaResponse struct {
	Artifact     string        `json:"artifact"`
	ModelVersion string        `json:"model_version"`
	Fields       []SchemaField `json:"fields"`
	FeatureOrder []string      `json:"feature_order"`
}

func violationsOf(errs []premium.ValidationError) []Violation {
	out := make([]Violation, len(errs))
	for i, e := range errs {
		out[i] = Violation{
			Field:      e.FieldName(),
			Value:      e.Received(),
			Constraint: e.Constraint(),
			Reason:     e.Reason(),
		}
	}
	return out
}

func schemaResponse(p *premium.Pipeline) SchemaResponse {
	fields := p.Schema().Fields()
	resp := SchemaResponse{
		Artifact:     p.Artifact().Name(),
		ModelVersion: p.Artifact().Version(),
		Fields:       make([]SchemaField, len(fields)),
		FeatureOrder: p.Schema().FeatureNames(),
	}
	for i, f := range fields {
		sf := SchemaField{
			Name:  f.Name,
			Kind:  string(f.Kind),
			Slots: f.Slots(),
		}
		if f.Kind == premium.KindNumeric {
			sf.Integer = f.Integer
			lo := f.Min
			sf.Min = &lo
			if !math.IsInf(f.Max, 1) {
				hi := f.Max
				sf.Max = &hi
			}
		} else {
			sf.Encoding = string(f.Encoding)
			sf.Categories = f.Labels()
		}
		resp.Fields[i] = sf
	}
	return resp
}
