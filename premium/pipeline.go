package premium

import (
	"fmt"
	"slices"
	"strconv"
)

// Options configures a Pipeline
type Options struct {
	// StrictSchema rejects fields the schema does not declare
	StrictSchema bool

	// Floor is the clamp threshold for raw model output
	Floor float64

	// Decimals is the rounding precision of reported premiums
	Decimals int32
}

// DefaultOptions ignores unknown fields, floors at 0 and rounds to whole units
func DefaultOptions() Options {
	return Options{Floor: DefaultFloor, Decimals: DefaultDecimals}
}

// Pipeline runs validate -> encode -> score -> finalize. A failure at any
// stage aborts the request; there are no partial results.
type Pipeline struct {
	schema    *Schema
	artifact  *Artifact
	validator *Validator
	encoder   *Encoder
	scorer    *Scorer
	finalizer *Finalizer
}

// NewPipeline wires the stages around a schema and an artifact compiled for it
func NewPipeline(schema *Schema, artifact *Artifact, opts Options) (*Pipeline, error) {
	if schema == nil || artifact == nil {
		return nil, fmt.Errorf("schema and artifact are required")
	}
	if !slices.Equal(schema.FeatureNames(), artifact.features) {
		return nil, fmt.Errorf("artifact %q was not built for this schema", artifact.name)
	}

	finalizer, err := NewFinalizer(opts.Floor, opts.Decimals)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		schema:    schema,
		artifact:  artifact,
		validator: NewValidator(schema, opts.StrictSchema),
		encoder:   NewEncoder(schema),
		scorer:    NewScorer(artifact),
		finalizer: finalizer,
	}, nil
}

// Schema returns the feature schema
func (p *Pipeline) Schema() *Schema { return p.schema }

// Artifact returns the scoring artifact
func (p *Pipeline) Artifact() *Artifact { return p.artifact }

// Validator returns the validation stage
func (p *Pipeline) Validator() *Validator { return p.validator }

// CacheScope identifies everything besides the record that shapes a
// finalized result: the artifact and the finalizer settings. Pipelines with
// equal scopes return equal results for equal records.
func (p *Pipeline) CacheScope() string {
	return fmt.Sprintf("%s@%s:floor=%s:dp=%d",
		p.artifact.name, p.artifact.version,
		strconv.FormatFloat(p.finalizer.floor, 'g', -1, 64), p.finalizer.decimals)
}

// Predict estimates the premium for a raw record
func (p *Pipeline) Predict(raw RawRecord) (*PremiumResult, error) {
	rec, err := p.validator.Validate(raw)
	if err != nil {
		return nil, err
	}
	return p.PredictRecord(rec)
}

// PredictAll is Predict but reports every validation violation at once
func (p *Pipeline) PredictAll(raw RawRecord) (*PremiumResult, error) {
	rec, err := p.validator.ValidateAll(raw)
	if err != nil {
		return nil, err
	}
	return p.PredictRecord(rec)
}

// Explain predicts and also returns the encoded feature vector
func (p *Pipeline) Explain(raw RawRecord) (*Explanation, error) {
	rec, err := p.validator.Validate(raw)
	if err != nil {
		return nil, err
	}
	vec, err := p.encoder.Encode(rec)
	if err != nil {
		return nil, err
	}
	result, err := p.finish(rec, vec)
	if err != nil {
		return nil, err
	}

	names := p.schema.FeatureNames()
	features := make(map[string]float64, len(names))
	for i, name := range names {
		features[name] = vec[i]
	}
	return &Explanation{Result: result, Features: features, Order: names}, nil
}

// PredictRecord runs the stages after validation. Callers that validate
// separately, for example to derive a cache key, continue from here.
func (p *Pipeline) PredictRecord(rec *ValidatedRecord) (*PremiumResult, error) {
	vec, err := p.encoder.Encode(rec)
	if err != nil {
		return nil, err
	}
	return p.finish(rec, vec)
}

func (p *Pipeline) finish(rec *ValidatedRecord, vec FeatureVector) (*PremiumResult, error) {
	score, err := p.scorer.Score(rec, vec)
	if err != nil {
		return nil, err
	}
	result := p.finalizer.Finalize(score)
	return &result, nil
}

// Load builds a pipeline over the default schema from an artifact file, or
// from the embedded artifact when path is empty
func Load(path string, opts Options) (*Pipeline, error) {
	schema := DefaultSchema()

	var (
		artifact *Artifact
		err      error
	)
	if path == "" {
		artifact, err = DefaultArtifact(schema)
	} else {
		artifact, err = LoadArtifactFile(path, schema)
	}
	if err != nil {
		return nil, err
	}
	return NewPipeline(schema, artifact, opts)
}
