package server

// VisibilitySet is the external collaborator that decides, for a given
// entity, which of the currently connected candidates it may relay audio
// to or from. The relay only ever consults it, passing the live set of
// connected entity ids each time, and never mutates it.
type VisibilitySet interface {
	VisibleTo(entityId int32, candidates []int32) map[int32]bool
}

// AllVisible is the default VisibilitySet for a relay with no external
// visibility collaborator wired in: every entity sees every other entity.
type AllVisible struct{}

// VisibleTo returns every candidate id except entityId itself.
func (AllVisible) VisibleTo(entityId int32, candidates []int32) map[int32]bool {
	set := make(map[int32]bool, len(candidates))
	for _, id := range candidates {
		if id != entityId {
			set[id] = true
		}
	}
	return set
}
