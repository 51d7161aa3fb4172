package advisors

import (
	"sort"
	"sync"

	"github.com/lmoreno87/advmatch/core/model"
)

// Directory provides a read snapshot of the advisor pool. Advisors are
// mutated by external processes between requests; the engine only reads.
type Directory interface {
	ListActive() []model.Advisor
	Get(id string) (model.Advisor, bool)
}

// MemoryDirectory is an in-memory Directory implementation.
type MemoryDirectory struct {
	mu   sync.RWMutex
	data map[string]model.Advisor
}

// NewMemoryDirectory creates an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{data: map[string]model.Advisor{}}
}

// Upsert stores or replaces an advisor.
func (d *MemoryDirectory) Upsert(a model.Advisor) {
	d.mu.Lock()
	d.data[a.ID] = a
	d.mu.Unlock()
}

// Get returns the advisor with the given id.
func (d *MemoryDirectory) Get(id string) (model.Advisor, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.data[id]
	return a, ok
}

// ListActive returns all operationally active advisors, ordered by id for
// deterministic iteration.
func (d *MemoryDirectory) ListActive() []model.Advisor {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var res []model.Advisor
	for _, a := range d.data {
		if a.Active() {
			res = append(res, a)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// List returns every advisor regardless of state, ordered by id.
func (d *MemoryDirectory) List() []model.Advisor {
	d.mu.RLock()
	defer d.mu.RUnlock()
	res := make([]model.Advisor, 0, len(d.data))
	for _, a := range d.data {
		res = append(res, a)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}
