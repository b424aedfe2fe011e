package fileops

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MaxSourceFileSize bounds files read for analysis.
const MaxSourceFileSize int64 = 1 << 20

var (
	ErrEmptyPath   = errors.New("path cannot be empty")
	ErrNotExist    = errors.New("path does not exist")
	ErrIsDirectory = errors.New("path is a directory, not a file")
	ErrNotDir      = errors.New("path is not a directory")
	ErrTooLarge    = errors.New("file exceeds size limit")
)

// ExpandPath expands a leading "~/" (or a bare "~") to the user's home
// directory. Any other input is returned unchanged.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// ResolveDirectory expands and cleans dir and confirms it names an existing
// directory. An empty dir resolves to the process working directory.
//
// Returns the absolute path.
func ResolveDirectory(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("cannot determine working directory: %w", err)
		}
		return wd, nil
	}

	abs, err := filepath.Abs(ExpandPath(dir))
	if err != nil {
		return "", fmt.Errorf("invalid directory %q: %w", dir, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotExist, dir)
		}
		return "", fmt.Errorf("cannot access directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotDir, dir)
	}
	return abs, nil
}

// ValidateFileSizeLimit checks that filePath is a regular file no larger than
// maxSize bytes.
func ValidateFileSizeLimit(filePath string, maxSize int64) error {
	if maxSize <= 0 {
		return fmt.Errorf("invalid size limit: %d", maxSize)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotExist, filepath.Base(filePath))
		}
		return fmt.Errorf("cannot access file: %w", err)
	}

	if info.IsDir() {
		return fmt.Errorf("%w: %s", ErrIsDirectory, filePath)
	}

	if info.Size() > maxSize {
		return fmt.Errorf("%w: %d bytes exceeds limit %d bytes", ErrTooLarge, info.Size(), maxSize)
	}

	return nil
}

// ReadFileLimited validates filePath with ValidateFileSizeLimit and reads it.
// The read itself is also bounded, so a file that grows between the stat and
// the read still cannot exceed maxSize.
func ReadFileLimited(filePath string, maxSize int64) ([]byte, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, ErrEmptyPath
	}
	filePath = ExpandPath(filePath)

	if err := ValidateFileSizeLimit(filePath, maxSize); err != nil {
		return nil, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("file is not readable: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxSize)
	}
	return data, nil
}
