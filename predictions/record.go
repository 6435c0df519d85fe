// Package predictions keeps an audit trail of served premiums and caches
// results for repeated applicant records.
package predictions

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/liamcoop/premium/premium"
)

// ErrNotFound is returned when a prediction ID is unknown
var ErrNotFound = errors.New("prediction not found")

// Record is one served prediction. Input holds only the validated schema
// fields, so undeclared request fields never reach storage.
type Record struct {
	ID           string            `json:"id"`
	RequestID    string            `json:"request_id,omitempty"`
	Input        premium.RawRecord `json:"input"`
	Premium      float64           `json:"predicted_premium"`
	RawOutput    float64           `json:"raw_output"`
	Clamped      bool              `json:"clamped"`
	ClampReason  string            `json:"clamp_reason,omitempty"`
	Segment      string            `json:"segment"`
	ModelVersion string            `json:"model_version"`
	Cached       bool              `json:"cached"`
	CreatedAt    time.Time         `json:"created_at"`
}

// NewRecord builds an audit record with a fresh ID
func NewRecord(requestID string, rec *premium.ValidatedRecord, res *premium.PremiumResult, cached bool) *Record {
	return &Record{
		ID:           uuid.NewString(),
		RequestID:    requestID,
		Input:        premium.RawRecord(rec.Activation()),
		Premium:      res.Premium,
		RawOutput:    res.Raw,
		Clamped:      res.Clamped,
		ClampReason:  res.ClampReason,
		Segment:      res.Segment,
		ModelVersion: res.ModelVersion,
		Cached:       cached,
		CreatedAt:    time.Now().UTC(),
	}
}

func (r *Record) clone() *Record {
	out := *r
	if r.Input != nil {
		out.Input = make(premium.RawRecord, len(r.Input))
		for k, v := range r.Input {
			out.Input[k] = v
		}
	}
	return &out
}
