package premium

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// TestPredictExample verifies the reference applicant end to end
func TestPredictExample(t *testing.T) {
	p := defaultPipeline(t)

	res, err := p.Predict(exampleRecord())
	require.NoError(t, err)
	assert.Equal(t, 11500.0, res.Premium)
	assert.Equal(t, "rest", res.Segment)
	assert.Equal(t, p.Artifact().Version(), res.ModelVersion)
	assert.False(t, res.Clamped)
}

func TestPredictRoutesBySegment(t *testing.T) {
	p := defaultPipeline(t)

	testCases := []struct {
		name    string
		raw     RawRecord
		segment string
		premium float64
	}{
		{
			// 2500 + 1200*4/82 + 400*0.1 + 150*0.05 + 2200*0.4 + 1800*2
			name:    "young linear",
			raw:     youngRecord(),
			segment: "young",
			premium: 7086,
		},
		{
			name:    "boundary age 25 is young",
			raw:     with(youngRecord(), "age", 25),
			segment: "young",
		},
		{
			name:    "age 26 uses trees",
			raw:     with(youngRecord(), "age", 26),
			segment: "rest",
		},
		{
			// 4000 + Platinum 9000 + age 4500 + risk 5000 + Regular 1800
			// + Obesity 1200 + dependants 600
			name: "high risk",
			raw: with(with(with(with(with(with(exampleRecord(),
				"age", 50),
				"insurance_plan", "Platinum"),
				"medical_history", "Diabetes & Heart disease"),
				"smoking", "Regular"),
				"bmi", "Obesity"),
				"dependants", 3),
			segment: "rest",
			premium: 26100,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := p.Predict(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.segment, res.Segment)
			if tc.premium != 0 {
				assert.Equal(t, tc.premium, res.Premium)
			}
		})
	}
}

func TestPredictClampsNegativeOutput(t *testing.T) {
	p := smallPipeline(t, DefaultOptions())

	// -500 + 25 + 100
	res, err := p.Predict(RawRecord{"age": 25, "smoker": "Yes"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Premium)
	assert.Equal(t, -375.0, res.Raw)
	assert.True(t, res.Clamped)
	assert.Equal(t, "negative", res.Segment)
}

func TestPredictRoundsHalfUp(t *testing.T) {
	res, err := smallPipeline(t, DefaultOptions()).Predict(RawRecord{"age": 40, "smoker": "Yes"})
	require.NoError(t, err)
	assert.Equal(t, 110.5, res.Raw)
	assert.Equal(t, 111.0, res.Premium)

	opts := DefaultOptions()
	opts.Decimals = 1
	res, err = smallPipeline(t, opts).Predict(RawRecord{"age": 40, "smoker": "Yes"})
	require.NoError(t, err)
	assert.Equal(t, 110.5, res.Premium)
}

func TestPredictNoSegmentIsInternal(t *testing.T) {
	_, err := smallPipeline(t, DefaultOptions()).Predict(RawRecord{"age": 40, "smoker": "No"})
	require.Error(t, err)

	var noSeg *NoSegmentError
	require.True(t, errors.As(err, &noSeg))
	assert.Equal(t, "small", noSeg.Artifact)
	assert.True(t, errors.Is(err, ErrInternal))
	assert.False(t, IsValidation(err))
}

func TestScoreDimensionMismatch(t *testing.T) {
	p := defaultPipeline(t)
	rec, err := p.Validator().Validate(exampleRecord())
	require.NoError(t, err)

	scorer := NewScorer(p.Artifact())
	for _, n := range []int{0, 21, 23} {
		_, err := scorer.Score(rec, make(FeatureVector, n))
		var mismatch *DimensionMismatchError
		require.True(t, errors.As(err, &mismatch), "length %d", n)
		assert.Equal(t, 22, mismatch.Expected)
		assert.Equal(t, n, mismatch.Got)
		assert.True(t, errors.Is(err, ErrInternal))
	}
}

func TestPredictValidationFailures(t *testing.T) {
	p := defaultPipeline(t)

	_, err := p.Predict(with(exampleRecord(), "age", 17))
	var rangeErr *RangeError
	assert.True(t, errors.As(err, &rangeErr))

	_, err = p.Predict(with(exampleRecord(), "medical_history", "Gout"))
	var catErr *UnknownCategoryError
	assert.True(t, errors.As(err, &catErr))

	_, err = p.PredictAll(with(with(exampleRecord(), "age", 17), "bmi", "Huge"))
	var violations Violations
	require.True(t, errors.As(err, &violations))
	assert.Len(t, violations, 2)
}

func TestPipelineStrictOption(t *testing.T) {
	opts := DefaultOptions()
	opts.StrictSchema = true
	p, err := Load("", opts)
	require.NoError(t, err)

	_, err = p.Predict(with(exampleRecord(), "nickname", "Al"))
	var unknown *UnknownFieldError
	assert.True(t, errors.As(err, &unknown))
}

func TestExplain(t *testing.T) {
	p := defaultPipeline(t)

	exp, err := p.Explain(with(exampleRecord(), "medical_history", "Thyroid"))
	require.NoError(t, err)
	assert.Equal(t, p.Schema().FeatureNames(), exp.Order)
	assert.Len(t, exp.Features, 22)
	assert.Equal(t, 3.0, exp.Features["insurance_plan"])
	assert.Equal(t, 1.0, exp.Features["medical_history_thyroid"])
	assert.InDelta(t, 5.0/14, exp.Features["medical_history_risk_score"], 1e-12)
	// risk 0.357 crosses the first risk split only
	assert.Equal(t, 14000.0, exp.Result.Premium)
}

func TestNewPipelineRejectsMismatchedArtifact(t *testing.T) {
	artifact, err := LoadArtifact([]byte(smallArtifactYAML), "test", smallSchema(t))
	require.NoError(t, err)

	_, err = NewPipeline(DefaultSchema(), artifact, DefaultOptions())
	assert.Error(t, err)

	_, err = NewPipeline(smallSchema(t), artifact, Options{Floor: -1})
	assert.Error(t, err)

	_, err = Load("/does/not/exist.yaml", DefaultOptions())
	var unavailable *ArtifactUnavailableError
	assert.True(t, errors.As(err, &unavailable))
}

func allRecords() []RawRecord {
	plans := []string{"Bronze", "Silver", "Gold", "Platinum"}
	histories := DefaultSchema()
	mh, _ := histories.Field("medical_history")
	smoking := []string{"No", "Occasional", "Regular"}

	var out []RawRecord
	for age := 18; age <= 100; age += 7 {
		for i, plan := range plans {
			for j, h := range mh.Labels() {
				r := with(exampleRecord(), "age", age)
				r = with(r, "insurance_plan", plan)
				r = with(r, "medical_history", h)
				r = with(r, "smoking", smoking[(i+j)%len(smoking)])
				r = with(r, "dependants", (age+j)%11)
				out = append(out, r)
			}
		}
	}
	return out
}

// TestPredictDeterministicAndNonNegative verifies identical results across
// repeated calls and premiums never below zero
func TestPredictDeterministicAndNonNegative(t *testing.T) {
	p := defaultPipeline(t)

	for _, raw := range allRecords() {
		first, err := p.Predict(raw)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, first.Premium, 0.0)

		again, err := p.Predict(raw)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

// TestPredictConcurrent verifies that concurrent callers sharing a pipeline
// get the same results as sequential ones
func TestPredictConcurrent(t *testing.T) {
	p := defaultPipeline(t)
	records := allRecords()

	expected := make([]*PremiumResult, len(records))
	for i, raw := range records {
		res, err := p.Predict(raw)
		require.NoError(t, err)
		expected[i] = res
	}

	var g errgroup.Group
	g.SetLimit(16)
	for round := 0; round < 4; round++ {
		for i, raw := range records {
			g.Go(func() error {
				res, err := p.Predict(raw)
				if err != nil {
					return fmt.Errorf("record %d: %w", i, err)
				}
				if *res != *expected[i] {
					return fmt.Errorf("record %d: got %+v, want %+v", i, res, expected[i])
				}
				return nil
			})
		}
	}
	require.NoError(t, g.Wait())
}
