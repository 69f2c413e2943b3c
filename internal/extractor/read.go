// Package extractor builds typed metadata records from decoded DICOM datasets.
// Every accessor returns its caller-supplied default on a missing element,
// an unexpected value type, a parse failure or a panic inside the decoder's accessors.
package extractor

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

var errEmpty = errors.New("empty value")

// read is the single try-else-default combinator used by every accessor
func read[T any](def T, get func() (T, error)) (v T) {
	defer func() {
		if r := recover(); r != nil {
			v = def
		}
	}()

	got, err := get()
	if err != nil {
		return def
	}
	return got
}

// rawValues returns the element's values rendered as strings
func rawValues(ds *dicom.Dataset, t tag.Tag) ([]string, error) {
	elem, err := ds.FindElementByTag(t)
	if err != nil {
		return nil, err
	}
	if elem.Value == nil {
		return nil, errEmpty
	}

	switch vals := elem.Value.GetValue().(type) {
	case []string:
		return vals, nil
	case []int:
		out := make([]string, len(vals))
		for i, n := range vals {
			out[i] = strconv.Itoa(n)
		}
		return out, nil
	case []float64:
		out := make([]string, len(vals))
		for i, f := range vals {
			out[i] = strconv.FormatFloat(f, 'f', -1, 64)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %v for tag %v", elem.Value.ValueType(), t)
	}
}

func clean(s string) string {
	return strings.Trim(s, " \x00")
}

// String returns the first value of t, or def when it is missing or empty
func String(ds *dicom.Dataset, t tag.Tag, def string) string {
	return read(def, func() (string, error) {
		vals, err := rawValues(ds, t)
		if err != nil {
			return "", err
		}
		if len(vals) == 0 {
			return "", errEmpty
		}
		s := clean(vals[0])
		if s == "" {
			return "", errEmpty
		}
		return s, nil
	})
}

// Number parses the first value of t. Empty, non-numeric and NaN values yield def.
func Number(ds *dicom.Dataset, t tag.Tag, def float64) float64 {
	return read(def, func() (float64, error) {
		raw := String(ds, t, "")
		if raw == "" {
			return 0, errEmpty
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, err
		}
		if math.IsNaN(f) {
			return 0, errEmpty
		}
		return f, nil
	})
}

// Int is Number truncated towards zero
func Int(ds *dicom.Dataset, t tag.Tag, def int) int {
	f := Number(ds, t, math.NaN())
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return int(f)
}

// OptionalNumber returns nil instead of a default
func OptionalNumber(ds *dicom.Dataset, t tag.Tag) *float64 {
	f := Number(ds, t, math.NaN())
	if math.IsNaN(f) {
		return nil
	}
	return &f
}

// Numbers parses every value of a multi-valued numeric tag.
// A single unparseable component discards the whole list.
func Numbers(ds *dicom.Dataset, t tag.Tag) []float64 {
	return read(nil, func() ([]float64, error) {
		vals, err := rawValues(ds, t)
		if err != nil {
			return nil, err
		}
		if len(vals) == 1 && strings.Contains(vals[0], `\`) {
			vals = strings.Split(vals[0], `\`)
		}
		out := make([]float64, 0, len(vals))
		for _, v := range vals {
			f, err := strconv.ParseFloat(clean(v), 64)
			if err != nil {
				return nil, err
			}
			if math.IsNaN(f) {
				return nil, errEmpty
			}
			out = append(out, f)
		}
		if len(out) == 0 {
			return nil, errEmpty
		}
		return out, nil
	})
}
