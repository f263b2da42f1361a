package domain

// CodeCandidate is one strategy for locating an order's integer code in a
// raw ingestion payload.
type CodeCandidate struct {
	// Name identifies the strategy in logs and tests.
	Name string
	// Lookup returns the raw candidate value, false when the field is absent.
	Lookup func(raw map[string]any) (any, bool)
}

// CodePolicy is an ordered list of candidates; the first one that yields
// a finite integer wins.
type CodePolicy []CodeCandidate

// TopLevel looks up a top-level payload field.
func TopLevel(field string) CodeCandidate {
	return CodeCandidate{
		Name: field,
		Lookup: func(raw map[string]any) (any, bool) {
			v, ok := raw[field]
			return v, ok
		},
	}
}

// Nested looks up field inside the object stored under parent.
func Nested(parent, field string) CodeCandidate {
	return CodeCandidate{
		Name: parent + "." + field,
		Lookup: func(raw map[string]any) (any, bool) {
			obj, ok := raw[parent].(map[string]any)
			if !ok {
				return nil, false
			}
			v, ok := obj[field]
			return v, ok
		},
	}
}

// DefaultCodePolicy resolves codes the way ingestion has historically
// written them: explicit code, order-number fields nested in info, legacy
// top-level order-number fields, then id.
var DefaultCodePolicy = CodePolicy{
	TopLevel("code"),
	Nested("info", "N° OT"),
	Nested("info", "Nro OT"),
	Nested("info", "OT"),
	Nested("info", "Orden"),
	Nested("info", "numero"),
	TopLevel("N° OT"),
	TopLevel("ot"),
	TopLevel("orden"),
	TopLevel("numero"),
	TopLevel("id"),
}

// Resolve returns the first candidate value that parses as an integer.
// The second result names the winning candidate.
func (p CodePolicy) Resolve(raw map[string]any) (int64, string, bool) {
	for _, c := range p {
		v, ok := c.Lookup(raw)
		if !ok {
			continue
		}
		if code, ok := ParseInteger(v); ok {
			return code, c.Name, true
		}
	}
	return 0, "", false
}

// NewOrderFromPayload converts a raw ingestion payload into an order keyed
// by the resolved code. Payloads carrying a task sequence get their status
// re-derived; cancelled status is kept because cancellation is final.
// Returns false when no candidate resolves to an integer.
func NewOrderFromPayload(raw map[string]any, policy CodePolicy) (*Order, bool) {
	if raw == nil {
		return nil, false
	}
	if policy == nil {
		policy = DefaultCodePolicy
	}
	code, _, ok := policy.Resolve(raw)
	if !ok {
		return nil, false
	}

	o := orderFromMap(cloneMap(raw), code)
	if hasTaskList(raw) {
		o.RecomputeStatus()
	}
	return o, true
}
