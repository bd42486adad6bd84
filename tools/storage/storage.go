package storage

import (
	"context"
	_ "embed"
	"errors"
)

// State loads one static data table (kitchen or restaurant menu) as raw JSON.
type State interface {
	Load(ctx context.Context) ([]byte, error)
}

//go:embed data/kitchen.json
var kitchenJSON []byte

//go:embed data/menu.json
var menuJSON []byte

// DefaultKitchenState returns the built-in fridge, recipe and dietary tables.
func DefaultKitchenState() *MemoryState { return NewMemoryState(kitchenJSON) }

// DefaultMenuState returns the built-in restaurant menu.
func DefaultMenuState() *MemoryState { return NewMemoryState(menuJSON) }

// MemoryState serves data held in memory. It is used for the embedded defaults and in tests.
type MemoryState struct {
	data []byte
	err  error
}

func NewMemoryState(data []byte) *MemoryState {
	return &MemoryState{data: data}
}

func NewMemoryStateWithError() *MemoryState {
	return &MemoryState{err: errors.New("not found")}
}

func (m *MemoryState) Load(ctx context.Context) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.data, nil
}
