package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileState(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name     string
		filename string
		data     []byte
	}{
		{
			name:     "kitchen tables",
			filename: "kitchen.json",
			data:     []byte(`{"fridge": ["oeufs"], "recipes": [], "dietary_info": {}}`),
		},
		{
			name:     "empty menu",
			filename: "menu.json",
			data:     []byte(`{"dishes": []}`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filePath := filepath.Join(tmpDir, tt.filename)
			require.NoError(t, os.WriteFile(filePath, tt.data, 0644))

			loaded, err := NewFileState(filePath).Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.data, loaded)
		})
	}

	t.Run("load nonexistent file", func(t *testing.T) {
		_, err := NewFileState(filepath.Join(tmpDir, "nonexistent.json")).Load(context.Background())
		assert.Error(t, err)
		assert.True(t, os.IsNotExist(err))
	})
}

func TestResolve(t *testing.T) {
	fallback := DefaultKitchenState()

	assert.Same(t, fallback, Resolve("", fallback))

	st, ok := Resolve("/tmp/kitchen.json", fallback).(*FileState)
	require.True(t, ok)
	assert.Equal(t, "/tmp/kitchen.json", st.FilePath)
}

func TestDefaultStates(t *testing.T) {
	for name, st := range map[string]State{
		"kitchen": DefaultKitchenState(),
		"menu":    DefaultMenuState(),
	} {
		t.Run(name, func(t *testing.T) {
			b, err := st.Load(context.Background())
			require.NoError(t, err)
			assert.NotEmpty(t, b)
		})
	}

	_, err := NewMemoryStateWithError().Load(context.Background())
	assert.Error(t, err)
}
