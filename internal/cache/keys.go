package cache

// GraphKey identifies the logical shape of a frame's render graph.
type GraphKey struct {
	ViewCount     int
	ViewportsHash uint64
	ModulesHash   uint64
	SettingsHash  uint64
}

// Hash folds the key into the structure hash used by PlanKey.
func (k GraphKey) Hash() uint64 {
	return NewHasher().Int(k.ViewCount).Uint64(k.ViewportsHash).Uint64(k.ModulesHash).Uint64(k.SettingsHash).Sum64()
}

// PlanKey identifies a compiled plan for a graph structure.
type PlanKey struct {
	GraphHash    uint64
	MemoryBudget uint64
	ThreadCount  int
}
