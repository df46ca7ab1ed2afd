package container

import "github.com/cuemby/containerrt/pkg/types"

// transitionTable is the legal source -> destinations map from spec.md §4.7.
var transitionTable = map[types.ContainerState][]types.ContainerState{
	types.StateCreated:    {types.StateStarting, types.StateRemoving},
	types.StateStarting:   {types.StateRunning, types.StateError, types.StateRemoving},
	types.StateRunning:    {types.StateStopping, types.StatePaused, types.StateRestarting, types.StateError, types.StateRemoving},
	types.StatePaused:     {types.StateRunning, types.StateStopping, types.StateRemoving},
	types.StateStopping:   {types.StateStopped, types.StateError, types.StateRemoving},
	types.StateStopped:    {types.StateStarting, types.StateRemoving},
	types.StateRestarting: {types.StateStarting, types.StateError, types.StateRemoving},
	types.StateError:      {types.StateStopped, types.StateRemoving},
	types.StateRemoving:   {types.StateRemoved},
	types.StateRemoved:    {},
	types.StateDead:       {types.StateRemoving},
}

// isLegalTransition reports whether to appears in from's allowed-destination
// list.
func isLegalTransition(from, to types.ContainerState) bool {
	for _, allowed := range transitionTable[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
