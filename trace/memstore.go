package trace

import (
	"fmt"
	"sort"
	"sync"

	"seisattrib/geom"
)

// MemStore is an in-memory Catalog and Writer. Traces are kept per cube in
// inline/crossline order.
type MemStore struct {
	mu    sync.RWMutex
	cubes map[string]*memCube
	// FailAt makes readers return an error when they reach the position.
	FailAt map[string]geom.BinID
}

type memCube struct {
	info   CubeInfo
	traces []Trace
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{cubes: make(map[string]*memCube)}
}

// PutCube registers or replaces cube metadata, dropping traces of a replaced cube.
func (m *MemStore) PutCube(info CubeInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cubes[info.Name] = &memCube{info: info}
	return nil
}

// PutTraces inserts or overwrites traces of an existing cube.
func (m *MemStore) PutTraces(cube string, traces []Trace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cubes[cube]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, cube)
	}
	for i := range traces {
		tr := traces[i]
		if err := checkTrace(c.info, &tr); err != nil {
			return err
		}
		idx := sort.Search(len(c.traces), func(j int) bool {
			return c.traces[j].Pos.Compare(tr.Pos) >= 0
		})
		if idx < len(c.traces) && c.traces[idx].Pos == tr.Pos {
			c.traces[idx] = tr
			continue
		}
		c.traces = append(c.traces, Trace{})
		copy(c.traces[idx+1:], c.traces[idx:])
		c.traces[idx] = tr
	}
	return nil
}

// DeleteCube drops cube and its traces. Unknown cubes are ignored.
func (m *MemStore) DeleteCube(cube string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cubes, cube)
	return nil
}

// Info returns cube metadata.
func (m *MemStore) Info(cube string) (CubeInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cubes[cube]
	if !ok {
		return CubeInfo{}, fmt.Errorf("%w: %s", ErrNotFound, cube)
	}
	return c.info, nil
}

// Open returns a reader over a snapshot of the cube's traces inside sel.
func (m *MemStore) Open(cube string, sel geom.HorRange) (Reader, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cubes[cube]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, cube)
	}
	r := &sliceReader{pos: geom.UndefBinID, idx: -1}
	for _, tr := range c.traces {
		if sel.Includes(tr.Pos) {
			r.traces = append(r.traces, tr)
		}
	}
	if at, ok := m.FailAt[cube]; ok {
		r.failAt = &at
	}
	return r, nil
}

// Cubes returns the registered cube names in sorted order.
func (m *MemStore) Cubes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.cubes))
	for name := range m.cubes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Traces returns a copy of the stored traces of cube.
func (m *MemStore) Traces(cube string) []Trace {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cubes[cube]
	if !ok {
		return nil
	}
	return append([]Trace(nil), c.traces...)
}

type sliceReader struct {
	traces []Trace
	idx    int
	pos    geom.BinID
	failAt *geom.BinID
}

func (r *sliceReader) Next() (bool, error) {
	if r.idx+1 >= len(r.traces) {
		r.idx = len(r.traces)
		return false, nil
	}
	r.idx++
	r.pos = r.traces[r.idx].Pos
	if r.failAt != nil && *r.failAt == r.pos {
		return false, fmt.Errorf("trace: simulated read failure at %s", r.pos)
	}
	return true, nil
}

func (r *sliceReader) Position() geom.BinID {
	return r.pos
}

func (r *sliceReader) Trace() *Trace {
	if r.idx < 0 || r.idx >= len(r.traces) {
		return nil
	}
	return &r.traces[r.idx]
}

func (r *sliceReader) Close() error {
	r.traces = nil
	return nil
}
