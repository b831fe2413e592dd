package services

import "github.com/sarpras-lapor/apiserver/types"

// transitions lists the forward moves of the report lifecycle. Writing the
// current status again is always allowed so admins can edit the note.
var transitions = map[types.Status][]types.Status{
	types.StatusPending:    {types.StatusInProgress, types.StatusDone},
	types.StatusInProgress: {types.StatusDone},
}

// CanTransition reports whether a report may move from one status to another
// without an admin override.
func CanTransition(from, to types.Status) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
