package storage

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// PlaceholderName is the file served for generations without an upload.
const PlaceholderName = "mock.png"

//go:embed mock.png
var placeholderPNG []byte

// EnsurePlaceholder writes the placeholder image into dir unless a file with
// that name already exists, so operators can replace it.
func EnsurePlaceholder(dir string) error {
	target := filepath.Join(dir, PlaceholderName)
	if _, err := os.Stat(target); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat placeholder: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create public dir: %w", err)
	}
	if err := os.WriteFile(target, placeholderPNG, 0o644); err != nil {
		return fmt.Errorf("write placeholder: %w", err)
	}
	return nil
}
