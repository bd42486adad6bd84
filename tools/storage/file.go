package storage

import (
	"context"
	"os"
)

type FileState struct {
	FilePath string
}

func NewFileState(filePath string) *FileState {
	return &FileState{FilePath: filePath}
}

func (f *FileState) Load(ctx context.Context) ([]byte, error) {
	return os.ReadFile(f.FilePath)
}

// Resolve picks a file-backed state when path is set, otherwise the fallback.
func Resolve(path string, fallback State) State {
	if path == "" {
		return fallback
	}
	return NewFileState(path)
}
