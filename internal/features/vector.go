// Package features turns submitted patient fields into the fixed-order
// numeric vector the diagnosis model was trained on.
//
// The model indexes its inputs positionally, so Order is the single source of
// truth for both the service and the model artifact.
package features

import "slices"

// Field names
const (
	FieldAge            = "age"
	FieldTemperature    = "temperature"
	FieldHeartRate      = "heart_rate"
	FieldSex            = "sex"
	FieldComorbDiabetes = "comorb_diabetes"
	FieldComorbHTN      = "comorb_htn"
)

// Symptoms lists the binary symptom flags in model order.
var Symptoms = []string{
	"symptom_fever",
	"symptom_cough",
	"symptom_fatigue",
	"symptom_headache",
	"symptom_nausea",
	"symptom_vomiting",
	"symptom_diarrhea",
	"symptom_sore_throat",
	"symptom_shortness_of_breath",
}

// Order is the exact column order used at training time.
var Order = slices.Concat(
	[]string{FieldAge, FieldTemperature, FieldHeartRate},
	Symptoms,
	[]string{FieldSex, FieldComorbDiabetes, FieldComorbHTN},
)

// Len is the number of model inputs.
const Len = 15

// Vector is a normalized sample, indexed like Order.
type Vector [Len]float64

// Map returns the vector keyed by field name.
func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64, Len)
	for i, name := range Order {
		m[name] = v[i]
	}
	return m
}

// Get returns the value of the named field and whether the name is known.
func (v Vector) Get(name string) (float64, bool) {
	i := Index(name)
	if i < 0 {
		return 0, false
	}
	return v[i], true
}

// Index returns the position of name in Order, or -1.
func Index(name string) int {
	return slices.Index(Order, name)
}

// IsSymptom reports whether a missing value for name defaults to 0.
func IsSymptom(name string) bool {
	return slices.Contains(Symptoms, name)
}

// EncodeSex maps "M" to 0 and every other value, including an empty one, to 1.
func EncodeSex(sex string) float64 {
	if sex == "M" {
		return 0
	}
	return 1
}
