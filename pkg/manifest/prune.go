package manifest

// Prune returns the subsequence of entities whose ID is referenced by at
// least one action parameter's EntityType, preserving relative order.
//
// This is a correctness requirement of the published manifest, not an
// optimization: an entity no action can produce must not reach the backend.
// Duplicated entity IDs are not deduplicated; both copies survive if
// referenced. Actions are never touched.
func Prune(entities []Entity, actions []Action) []Entity {
	referenced := make(map[string]struct{})
	for _, action := range actions {
		for _, param := range action.Parameters {
			referenced[param.EntityType] = struct{}{}
		}
	}

	kept := make([]Entity, 0, len(entities))
	for _, entity := range entities {
		if _, ok := referenced[entity.ID]; ok {
			kept = append(kept, entity)
		}
	}
	return kept
}
