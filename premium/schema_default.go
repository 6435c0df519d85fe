package premium

import "math"

// Medical history decomposes compound answers such as
// "Diabetes & Heart disease" into independent base-condition indicators.
// The risk score slot is the summed condition weight over RiskMax, so a
// compound answer always differs from each of its parts and from "None".
var medicalHistory = Field{
	Name:     "medical_history",
	Kind:     KindCategorical,
	Encoding: EncodingConditions,
	BaseConditions: []Condition{
		{Name: "diabetes", Weight: 6},
		{Name: "high_blood_pressure", Weight: 6},
		{Name: "heart_disease", Weight: 8},
		{Name: "thyroid", Weight: 5},
	},
	RiskMax: 14,
	Categories: []Category{
		{Label: "None"},
		{Label: "Diabetes", Conditions: []string{"diabetes"}},
		{Label: "High blood pressure", Conditions: []string{"high_blood_pressure"}},
		{Label: "Heart disease", Conditions: []string{"heart_disease"}},
		{Label: "Thyroid", Conditions: []string{"thyroid"}},
		{Label: "Diabetes & High blood pressure", Conditions: []string{"diabetes", "high_blood_pressure"}},
		{Label: "Diabetes & Heart disease", Conditions: []string{"diabetes", "heart_disease"}},
		{Label: "Diabetes & Thyroid", Conditions: []string{"diabetes", "thyroid"}},
		{Label: "High blood pressure & Heart disease", Conditions: []string{"high_blood_pressure", "heart_disease"}},
	},
}

// DefaultFields is the applicant schema the bundled artifact was fitted on.
// One-hot fields drop their baseline category, which encodes as all zeros.
func DefaultFields() []Field {
	return []Field{
		{Name: "age", Kind: KindNumeric, Integer: true, Min: 18, Max: 100, Scaling: MinMax(18, 100)},
		{Name: "dependants", Kind: KindNumeric, Integer: true, Min: 0, Max: 10, Scaling: MinMax(0, 10)},
		{Name: "income", Kind: KindNumeric, Min: 0, Max: math.Inf(1), Scaling: MinMax(0, 200)},
		{Name: "genetical_risk", Kind: KindNumeric, Integer: true, Min: 0, Max: 5, Scaling: MinMax(0, 5)},
		{
			Name: "insurance_plan", Kind: KindCategorical, Encoding: EncodingOrdinal,
			Categories: []Category{
				{Label: "Bronze", Code: 1},
				{Label: "Silver", Code: 2},
				{Label: "Gold", Code: 3},
				{Label: "Platinum", Code: 4},
			},
		},
		onehot("gender", "Female", "Male", "Female"),
		onehot("marital_status", "Married", "Married", "Unmarried"),
		onehot("employment_status", "Unemployed", "Salaried", "Self-Employed", "Unemployed"),
		onehot("bmi", "Normal", "Underweight", "Normal", "Overweight", "Obesity"),
		onehot("smoking", "No", "No", "Occasional", "Regular"),
		onehot("region", "Northeast", "Northwest", "Southeast", "Southwest", "Northeast"),
		copyField(medicalHistory),
	}
}

// DefaultSchema returns the frozen default applicant schema
func DefaultSchema() *Schema {
	return MustNewSchema(DefaultFields()...)
}

func onehot(name, baseline string, labels ...string) Field {
	cats := make([]Category, len(labels))
	for i, l := range labels {
		cats[i] = Category{Label: l}
	}
	return Field{
		Name:       name,
		Kind:       KindCategorical,
		Encoding:   EncodingOneHot,
		Categories: cats,
		Baseline:   baseline,
	}
}
