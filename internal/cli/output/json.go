package output

import (
	"bytes"
	"encoding/json"
	"io"
)

// JSONFormatter formats data as JSON.
type JSONFormatter struct{}

// Format formats data as indented JSON.
func (f *JSONFormatter) Format(w io.Writer, data any) error {
	if t, ok := data.(*Table); ok {
		data = t.Records()
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// project returns the generic JSON form of v: maps, slices, strings,
// bools, nil, int64 for integral numbers and float64 otherwise.
func project(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return normalizeNumbers(out), nil
}

func normalizeNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		f, _ := val.Float64()
		return f
	case map[string]any:
		for k, e := range val {
			val[k] = normalizeNumbers(e)
		}
		return val
	case []any:
		for i, e := range val {
			val[i] = normalizeNumbers(e)
		}
		return val
	default:
		return v
	}
}
