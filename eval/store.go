package eval

import (
	"context"
	"sync"
)

// Store persists datasets and experiment runs.
type Store interface {
	// EnsureDataset returns the named dataset, seeding it with DefaultCases when absent.
	EnsureDataset(ctx context.Context, name string) (Dataset, error)
	SaveRun(ctx context.Context, run Run) error
}

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	datasets map[string]Dataset
	runs     []Run
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{datasets: map[string]Dataset{}}
}

func (m *MemoryStore) EnsureDataset(ctx context.Context, name string) (Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ds, ok := m.datasets[name]; ok {
		return ds, nil
	}
	ds := defaultDataset(name)
	m.datasets[name] = ds
	return ds, nil
}

// PutDataset replaces a dataset.
func (m *MemoryStore) PutDataset(ds Dataset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasets[ds.Name] = ds
}

func (m *MemoryStore) SaveRun(ctx context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *MemoryStore) Runs() []Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Run, len(m.runs))
	copy(out, m.runs)
	return out
}
