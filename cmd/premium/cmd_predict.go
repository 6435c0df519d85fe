package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/liamcoop/premium/premium"
	"github.com/spf13/cobra"
)

func newPredictCommand(flags *pipelineFlags) *cobra.Command {
	var explain bool

	cmd := &cobra.Command{
		Use:   "predict [file | -]",
		Short: "Price applicant records",
		Long: `Price applicant records read from a JSON file or standard input.

The input may be a single object, an array of objects, or a stream of
objects. One JSON line is printed per record, in input order. Records that
fail validation are reported with every violation and make the command exit
with status 1.

  premium predict applicant.json
  cat applicants.ndjson | premium predict --explain`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := flags.load()
			if err != nil {
				return err
			}

			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer f.Close()
				in = f
			}

			records, err := readRecords(in)
			if err != nil {
				return err
			}
			return predictRecords(cmd.OutOrStdout(), pipeline, records, explain)
		},
	}
	cmd.Flags().BoolVar(&explain, "explain", false, "Include the segment and encoded features")
	return cmd
}

type violationJSON struct {
	Field      string `json:"field"`
	Value      any    `json:"value,omitempty"`
	Constraint string `json:"constraint"`
	Reason     string `json:"reason"`
}

type predictionJSON struct {
	Index            int                `json:"index"`
	PredictedPremium *float64           `json:"predicted_premium,omitempty"`
	Segment          string             `json:"segment,omitempty"`
	ModelVersion     string             `json:"model_version,omitempty"`
	Clamped          *bool              `json:"clamped,omitempty"`
	Features         map[string]float64 `json:"features,omitempty"`
	Error            string             `json:"error,omitempty"`
	Violations       []violationJSON    `json:"violations,omitempty"`
}

// readRecords accepts one object, an array of objects or a stream of values
func readRecords(r io.Reader) ([]premium.RawRecord, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var records []premium.RawRecord
	for {
		var v any
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse input: %w", err)
		}

		switch val := v.(type) {
		case map[string]any:
			records = append(records, premium.RawRecord(val))
		case []any:
			for i, item := range val {
				obj, ok := item.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("parse input: element %d is not an object", i)
				}
				records = append(records, premium.RawRecord(obj))
			}
		default:
			return nil, fmt.Errorf("parse input: expected an object or an array of objects")
		}
	}
	if len(records) == 0 {
		return nil, errors.New("no records in input")
	}
	return records, nil
}

func predictRecords(w io.Writer, pipeline *premium.Pipeline, records []premium.RawRecord, explain bool) error {
	enc := json.NewEncoder(w)
	rejected := 0

	for i, raw := range records {
		out := predictionJSON{Index: i}

		res, features, err := predictOne(pipeline, raw, explain)
		var violations premium.Violations
		switch {
		case errors.As(err, &violations):
			rejected++
			out.Error = "validation failed"
			for _, v := range violations {
				out.Violations = append(out.Violations, violationJSON{
					Field:      v.FieldName(),
					Value:      v.Received(),
					Constraint: v.Constraint(),
					Reason:     v.Reason(),
				})
			}
		case err != nil:
			return fmt.Errorf("record %d: %w", i, err)
		default:
			p := res.Premium
			out.PredictedPremium = &p
			if explain {
				clamped := res.Clamped
				out.Segment = res.Segment
				out.ModelVersion = res.ModelVersion
				out.Clamped = &clamped
				out.Features = features
			}
		}

		if err := enc.Encode(out); err != nil {
			return err
		}
	}

	if rejected > 0 {
		return &RejectedError{Rejected: rejected, Total: len(records)}
	}
	return nil
}

// predictOne reports every violation of a rejected record
func predictOne(pipeline *premium.Pipeline, raw premium.RawRecord, explain bool) (*premium.PremiumResult, map[string]float64, error) {
	rec, err := pipeline.Validator().ValidateAll(raw)
	if err != nil {
		return nil, nil, err
	}
	if !explain {
		res, err := pipeline.PredictRecord(rec)
		return res, nil, err
	}

	exp, err := pipeline.Explain(raw)
	if err != nil {
		return nil, nil, err
	}
	return exp.Result, exp.Features, nil
}
