package models

// Bag is a nested container of dynamic message metadata: string keys mapping
// to scalars, nested bags, or lists of either. It is the unit the redactor
// walks, and it round-trips through JSONB columns unchanged.
type Bag map[string]any

// Clone returns a deep copy of the bag. Nested bags and slices are copied;
// scalar values are shared (they are immutable).
func (b Bag) Clone() Bag {
	if b == nil {
		return nil
	}
	out := make(Bag, len(b))
	for k, v := range b {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Bag:
		return val.Clone()
	case map[string]any:
		return Bag(val).Clone()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
