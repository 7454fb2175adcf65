package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxFileBytes caps how much of a file is returned.
const maxFileBytes = 64 * 1024

// FileReader reads local text files, confined to a base directory.
type FileReader struct {
	baseDir string
}

// NewFileReader creates the file reader tool rooted at baseDir. An empty
// baseDir roots it at the working directory.
func NewFileReader(baseDir string) *FileReader {
	if baseDir == "" {
		baseDir = "."
	}
	return &FileReader{baseDir: baseDir}
}

func (f *FileReader) Name() string {
	return "read"
}

func (f *FileReader) Description() string {
	return "Read a local text file by path"
}

// Call reads the requested file. Paths are resolved under the base directory
// and may not escape it.
func (f *FileReader) Call(_ context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("empty file path")
	}

	base, err := filepath.Abs(f.baseDir)
	if err != nil {
		return "", fmt.Errorf("resolving base directory: %w", err)
	}

	path := filepath.Join(base, filepath.Clean("/"+input))
	if !strings.HasPrefix(path, base+string(filepath.Separator)) && path != base {
		return "", fmt.Errorf("path escapes the allowed directory")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}

	if len(data) > maxFileBytes {
		data = data[:maxFileBytes]
	}
	return string(data), nil
}

var _ Tool = (*FileReader)(nil)
