package model

import (
	"fmt"
	"os"
)

// Artifact is an opaque blob a plugin attaches to a scenario result.
type Artifact interface {
	Name() string
	MimeType() string
}

// MemoryArtifact keeps its payload in memory.
type MemoryArtifact struct {
	name     string
	mimeType string
	data     []byte
}

// NewMemoryArtifact copies data into a new artifact.
func NewMemoryArtifact(name, mimeType string, data []byte) *MemoryArtifact {
	return &MemoryArtifact{name: name, mimeType: mimeType, data: append([]byte(nil), data...)}
}

func (a *MemoryArtifact) Name() string     { return a.name }
func (a *MemoryArtifact) MimeType() string { return a.mimeType }

// Data returns a copy of the payload.
func (a *MemoryArtifact) Data() []byte {
	return append([]byte(nil), a.data...)
}

func (a *MemoryArtifact) String() string {
	return fmt.Sprintf("MemoryArtifact(%s, %s, %d bytes)", a.name, a.mimeType, len(a.data))
}

// FileArtifact points at a file on disk.
type FileArtifact struct {
	name     string
	mimeType string
	path     string
}

// NewFileArtifact references the file at path.
func NewFileArtifact(name, mimeType, path string) *FileArtifact {
	return &FileArtifact{name: name, mimeType: mimeType, path: path}
}

func (a *FileArtifact) Name() string     { return a.name }
func (a *FileArtifact) MimeType() string { return a.mimeType }
func (a *FileArtifact) Path() string     { return a.path }

// Read loads the file contents.
func (a *FileArtifact) Read() ([]byte, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", a.name, err)
	}
	return data, nil
}

func (a *FileArtifact) String() string {
	return fmt.Sprintf("FileArtifact(%s, %s, %s)", a.name, a.mimeType, a.path)
}
