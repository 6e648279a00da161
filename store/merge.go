package store

// MergePatch applies patch on top of dst and returns the result. Nested objects
// are merged key by key; arrays, scalars and nulls in the patch replace the
// existing value. Neither input is modified.
func MergePatch(dst, patch map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(patch))
	for k, v := range dst {
		out[k] = cloneValue(v)
	}
	for k, v := range patch {
		pv, isObj := v.(map[string]any)
		cur, curObj := out[k].(map[string]any)
		if isObj && curObj {
			out[k] = MergePatch(cur, pv)
			continue
		}
		out[k] = cloneValue(v)
	}
	return out
}

func cloneData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneData(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

func cloneDocs(docs []Document) []Document {
	out := make([]Document, len(docs))
	for i, d := range docs {
		out[i] = Document{ID: d.ID, Data: cloneData(d.Data)}
	}
	return out
}
