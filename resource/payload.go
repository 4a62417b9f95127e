package resource

import "fmt"

// AsFields converts a decoded single-entity payload into Fields.
// A nil payload yields empty Fields.
func AsFields(v any) (Fields, error) {
	switch d := v.(type) {
	case nil:
		return Fields{}, nil
	case map[string]any:
		return d, nil
	default:
		return nil, fmt.Errorf("%w: want object, got %T", ErrUnexpectedPayload, v)
	}
}

// AsFieldList converts a decoded list payload into a slice of Fields.
func AsFieldList(v any) ([]Fields, error) {
	switch d := v.(type) {
	case nil:
		return nil, nil
	case []Fields:
		return d, nil
	case []any:
		out := make([]Fields, 0, len(d))
		for i, item := range d {
			f, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: item %d is %T", ErrUnexpectedPayload, i, item)
			}
			out = append(out, f)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: want array, got %T", ErrUnexpectedPayload, v)
	}
}
