package ingestion

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// withTempFile writes data to a fresh file under dir, hands its path to fn and
// removes the file afterwards, whether fn succeeds, fails or panics.
func withTempFile(dir, pattern string, data []byte, fn func(path string) error) (err error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}

	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	defer func() {
		rmErr := os.Remove(path)
		if rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) && err == nil {
			err = fmt.Errorf("remove temp file: %w", rmErr)
		}
	}()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	return fn(path)
}
