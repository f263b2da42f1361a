package confloader

import "errors"

// ErrReadBytesNotSupported is returned when ReadBytes is called on a map provider.
var ErrReadBytesNotSupported = errors.New("confloader: map provider has no byte form")

// mapProvider is a koanf provider over a nested map. Keys may be dotted.
type mapProvider map[string]any

// ReadBytes is not supported; koanf calls Read for parser-less providers.
func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, ErrReadBytesNotSupported
}

// Read returns the configuration map, expanding dotted keys.
func (m mapProvider) Read() (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		setPath(out, k, v)
	}
	return out, nil
}

// setPath stores v under the dotted key in a nested map.
func setPath(m map[string]any, key string, v any) {
	for {
		head, rest, nested := cut(key)
		if !nested {
			m[head] = v
			return
		}
		child, ok := m[head].(map[string]any)
		if !ok {
			child = make(map[string]any)
			m[head] = child
		}
		m, key = child, rest
	}
}

func cut(key string) (string, string, bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			return key[:i], key[i+1:], true
		}
	}
	return key, "", false
}
