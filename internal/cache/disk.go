package cache

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// artifactPath returns the playable file for key inside dir.
func artifactPath(dir, key, format string) string {
	ext := strings.TrimPrefix(strings.ToLower(format), ".")
	if ext == "" {
		ext = "bin"
	}
	return filepath.Join(dir, key+"."+ext)
}

// writeFileAtomic writes data next to path and renames it into place, so
// readers never observe a partial artifact.
func writeFileAtomic(path string, data []byte) error {
	file, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tempPath := file.Name()

	_, err = file.Write(data)
	closeErr := file.Close()

	if err != nil {
		os.Remove(tempPath)
		return err
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return closeErr
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return err
	}
	return nil
}

// fileExists reports whether path names a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// removeFile deletes path, treating an already missing file as success.
func removeFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// artifactNamePattern matches artifacts of any key version and their temp files.
var artifactNamePattern = regexp.MustCompile(`^\.?v\d+_`)

// isArtifactName reports whether name is an artifact or an artifact temp file.
func isArtifactName(name string) bool {
	return artifactNamePattern.MatchString(name)
}

// removeArtifacts deletes every artifact and stray artifact temp file in dir.
// The index and stats files are left alone.
func removeArtifacts(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var errs []error
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !isArtifactName(name) {
			continue
		}
		if err := removeFile(filepath.Join(dir, name)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
