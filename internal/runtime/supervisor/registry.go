package supervisor

import (
	"maps"
	"sync"
)

// Registry names the supervisors of long-lived subsystems for health output.
// Entries are getters because a subsystem may replace its supervisor on
// restart.
type Registry struct {
	mu sync.RWMutex
	m  map[string]func() *Supervisor
}

func NewRegistry() *Registry {
	return &Registry{m: map[string]func() *Supervisor{}}
}

// Set registers get under name; a nil get deletes the entry.
func (r *Registry) Set(name string, get func() *Supervisor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if get == nil {
		delete(r.m, name)
		return
	}
	r.m[name] = get
}

// Snapshots returns the state of every running supervisor.
func (r *Registry) Snapshots() map[string]Snapshot {
	r.mu.RLock()
	getters := maps.Clone(r.m)
	r.mu.RUnlock()

	out := make(map[string]Snapshot, len(getters))
	for name, get := range getters {
		if sup := get(); sup != nil {
			out[name] = sup.Snapshot()
		}
	}
	return out
}
