package exec

// diffProps returns the keys of after whose values differ from before (by
// deep equality), plus any key present in before but absent from after
// (so a script that deletes a field by setting it to nil/null is still
// seen as a change). id and prototype_id are never included: change
// detection covers only ordinary properties, and those two are identity
// fields flattened into the view, not properties.
func diffProps(before, after map[string]any) map[string]any {
	delta := map[string]any{}
	for k, av := range after {
		if k == "id" || k == "prototype_id" {
			continue
		}
		bv, existed := before[k]
		if !existed || !deepEqual(bv, av) {
			delta[k] = av
		}
	}
	for k := range before {
		if k == "id" || k == "prototype_id" {
			continue
		}
		if _, stillPresent := after[k]; !stillPresent {
			delta[k] = nil
		}
	}
	return delta
}

func deepEqual(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !deepEqual(v, bvv) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !deepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
