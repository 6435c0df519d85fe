package premium

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// exampleRecord is the reference applicant: routed to the tree segment and
// priced at base 4000 + Gold 6000 + age band 1500
func exampleRecord() RawRecord {
	return RawRecord{
		"age":               30,
		"dependants":        0,
		"income":            10,
		"genetical_risk":    1,
		"insurance_plan":    "Gold",
		"gender":            "Male",
		"marital_status":    "Married",
		"employment_status": "Salaried",
		"bmi":               "Normal",
		"smoking":           "No",
		"region":            "Northwest",
		"medical_history":   "None",
	}
}

func youngRecord() RawRecord {
	return RawRecord{
		"age":               22,
		"dependants":        1,
		"income":            10.0,
		"genetical_risk":    2,
		"insurance_plan":    "Silver",
		"gender":            "Female",
		"marital_status":    "Married",
		"employment_status": "Unemployed",
		"bmi":               "Normal",
		"smoking":           "No",
		"region":            "Northeast",
		"medical_history":   "None",
	}
}

func with(r RawRecord, field string, value any) RawRecord {
	out := make(RawRecord, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	out[field] = value
	return out
}

func without(r RawRecord, field string) RawRecord {
	out := make(RawRecord, len(r))
	for k, v := range r {
		if k != field {
			out[k] = v
		}
	}
	return out
}

// smallSchema has two slots: age (unscaled) and smoker_Yes
func smallSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchema(
		Field{Name: "age", Kind: KindNumeric, Integer: true, Min: 18, Max: 100},
		Field{
			Name: "smoker", Kind: KindCategorical, Encoding: EncodingOneHot, Baseline: "No",
			Categories: []Category{{Label: "No"}, {Label: "Yes"}},
		},
	)
	require.NoError(t, err)
	return s
}

const smallArtifactYAML = `
name: small
version: "t1"
features: [age, smoker_Yes]
segments:
  - name: negative
    when: age < 30
    model: {type: linear, intercept: -500, weights: [1, 100]}
  - name: smokers
    when: age >= 30 && smoker == "Yes"
    model:
      type: trees
      base_score: 100
      trees:
        - nodes:
            - {feature: 0, threshold: 50, left: 1, right: 2}
            - {leaf: 10.5}
            - {leaf: 20}
`

func smallPipeline(t *testing.T, opts Options) *Pipeline {
	t.Helper()
	schema := smallSchema(t)
	artifact, err := LoadArtifact([]byte(smallArtifactYAML), "test", schema)
	require.NoError(t, err)
	p, err := NewPipeline(schema, artifact, opts)
	require.NoError(t, err)
	return p
}

func defaultPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := Load("", DefaultOptions())
	require.NoError(t, err)
	return p
}

func floatsKey(codes []float64) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = fmt.Sprintf("%g", c)
	}
	return strings.Join(parts, ",")
}
