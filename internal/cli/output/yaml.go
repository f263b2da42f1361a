package output

import (
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter formats data as YAML.
type YAMLFormatter struct{}

// Format formats data as YAML using the JSON field names.
func (f *YAMLFormatter) Format(w io.Writer, data any) error {
	if t, ok := data.(*Table); ok {
		data = t.Records()
	}
	generic, err := project(data)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}
