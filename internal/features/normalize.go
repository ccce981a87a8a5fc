package features

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Source records where a field set came from, which decides how strictly
// numeric values are coerced.
type Source int

const (
	SourceForm Source = iota
	SourceJSON
)

func (s Source) String() string {
	switch s {
	case SourceForm:
		return "form"
	case SourceJSON:
		return "json"
	default:
		return "unknown"
	}
}

// Reason classifies a ValidationError.
type Reason int

const (
	ReasonMissing Reason = iota
	ReasonInvalid
)

func (r Reason) String() string {
	if r == ReasonInvalid {
		return "invalid"
	}
	return "missing"
}

// ValidationError names the first field that prevented normalization.
type ValidationError struct {
	Field  string
	Reason Reason
	Value  any
}

func (e *ValidationError) Error() string {
	if e.Reason == ReasonInvalid {
		return "Invalid field: " + e.Field
	}
	return "Missing field: " + e.Field
}

// ErrMalformedBody is returned by FromJSON when the body is not a JSON object.
var ErrMalformedBody = errors.New("request body is not a JSON object")

// Fields is a raw field set from either input mode.
type Fields struct {
	Source Source
	Values map[string]any
}

// Options tunes Normalize.
type Options struct {
	// StrictSex rejects sex values other than "M" and "F".
	StrictSex bool
}

// FromForm collects the known fields from a submitted form. Unknown keys are
// ignored.
func FromForm(form url.Values) Fields {
	values := make(map[string]any, Len)
	for _, name := range Order {
		if _, ok := form[name]; ok {
			values[name] = form.Get(name)
		}
	}
	return Fields{Source: SourceForm, Values: values}
}

// FromJSON decodes a JSON object body. Numbers are kept as json.Number so
// integers survive untouched.
func FromJSON(r io.Reader) (Fields, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return Fields{}, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	if values == nil {
		return Fields{}, ErrMalformedBody
	}
	return Fields{Source: SourceJSON, Values: values}, nil
}

// Normalize builds the model vector. Symptom flags default to 0, every other
// field is required. The first offending field, in Order, is reported.
func Normalize(f Fields, opts Options) (Vector, error) {
	var v Vector
	for i, name := range Order {
		raw, ok := f.Values[name]
		if ok && absent(raw) {
			ok = false
		}
		if !ok {
			if IsSymptom(name) {
				v[i] = 0
				continue
			}
			return Vector{}, &ValidationError{Field: name, Reason: ReasonMissing}
		}

		if name == FieldSex {
			sex := sexValue(raw)
			if opts.StrictSex && sex != "M" && sex != "F" {
				return Vector{}, &ValidationError{Field: name, Reason: ReasonInvalid, Value: raw}
			}
			v[i] = EncodeSex(sex)
			continue
		}

		var (
			x   float64
			err error
		)
		if f.Source == SourceForm {
			x, err = formNumber(raw)
		} else {
			x, err = jsonNumber(raw)
		}
		if err != nil {
			return Vector{}, &ValidationError{Field: name, Reason: ReasonInvalid, Value: raw}
		}
		v[i] = x
	}
	return v, nil
}

func absent(raw any) bool {
	switch x := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	}
	return false
}

func sexValue(raw any) string {
	if s, ok := raw.(string); ok {
		return s
	}
	return fmt.Sprint(raw)
}

// formNumber coerces form input to an integer.
func formNumber(raw any) (float64, error) {
	s, ok := raw.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected form value type %T", raw)
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return float64(n), nil
}

// jsonNumber accepts typed values as sent; numeric strings are tolerated.
func jsonNumber(raw any) (float64, error) {
	var (
		x   float64
		err error
	)
	switch n := raw.(type) {
	case json.Number:
		x, err = n.Float64()
	case float64:
		x = n
	case int:
		x = float64(n)
	case bool:
		if n {
			x = 1
		}
	case string:
		x, err = strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		err = fmt.Errorf("unexpected json value type %T", raw)
	}
	if err != nil {
		return 0, err
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, fmt.Errorf("non-finite value %v", x)
	}
	return x, nil
}
