package integration

// DeepMerge applies patch onto base and returns the result: nested objects
// (map[string]any) are merged recursively key by key; arrays and primitive
// values are overwritten wholesale. base is not mutated; a new map is
// returned.
func DeepMerge(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, patchVal := range patch {
		baseVal, exists := out[k]
		if !exists {
			out[k] = patchVal
			continue
		}
		baseMap, baseIsMap := baseVal.(map[string]any)
		patchMap, patchIsMap := patchVal.(map[string]any)
		if baseIsMap && patchIsMap {
			out[k] = DeepMerge(baseMap, patchMap)
			continue
		}
		out[k] = patchVal
	}
	return out
}
