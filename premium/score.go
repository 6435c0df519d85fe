package premium

// Scorer applies a shared artifact to feature vectors. The artifact is
// injected once and only read, so a Scorer is safe for concurrent use.
type Scorer struct {
	artifact *Artifact
}

// NewScorer creates a scorer over a compiled artifact
func NewScorer(artifact *Artifact) *Scorer {
	return &Scorer{artifact: artifact}
}

// Score routes the record to a segment and evaluates its model. A vector of
// the wrong length is a contract violation and is never padded or truncated.
func (s *Scorer) Score(rec *ValidatedRecord, vec FeatureVector) (Score, error) {
	if len(vec) != s.artifact.Dimension() {
		return Score{}, &DimensionMismatchError{Expected: s.artifact.Dimension(), Got: len(vec)}
	}

	seg, err := s.artifact.route(rec)
	if err != nil {
		return Score{}, err
	}

	return Score{
		Value:        seg.model.predict(vec),
		Segment:      seg.name,
		ModelVersion: s.artifact.version,
	}, nil
}
