package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// EnsureFolderExists creates the folder and any missing parents.
func EnsureFolderExists(folder string) error {
	if err := os.MkdirAll(folder, 0755); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", folder, err)
	}
	return nil
}

// CopyFile copies src to dst, creating parent directories as needed and
// preserving the source file's permissions. The destination is truncated if
// it already exists.
func CopyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("source is a directory: %s", src)
	}

	if err := EnsureFolderExists(filepath.Dir(dst)); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close destination file: %w", err)
	}

	return nil
}

// SafeDeleteFile removes a file, treating a missing file as success.
func SafeDeleteFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
