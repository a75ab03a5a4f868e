package orchestrator

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/liteforge/pkg/domain"
)

// FindArtifacts lists installable packages under dir in lexical order,
// skipping unaligned intermediates. A missing dir yields no artifacts.
func FindArtifacts(dir string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		name := d.Name()
		if !d.IsDir() && strings.EqualFold(filepath.Ext(name), ".apk") && !strings.Contains(name, "unaligned") {
			found = append(found, path)
		}
		return nil
	})
	return found, err
}

// SelectArtifact prefers the universal build, otherwise the first candidate.
func SelectArtifact(paths []string) string {
	for _, p := range paths {
		if strings.Contains(filepath.Base(p), "universal") {
			return p
		}
	}
	if len(paths) > 0 {
		return paths[0]
	}
	return ""
}

// LookupArtifact resolves a download name against the artifacts in dir:
// exact name, then substring, then the preferred artifact.
func LookupArtifact(dir, name string) (string, error) {
	paths, err := FindArtifacts(dir)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", domain.ErrArtifactNotFound
	}

	name = filepath.Base(name)
	for _, p := range paths {
		if filepath.Base(p) == name {
			return p, nil
		}
	}
	for _, p := range paths {
		if strings.Contains(filepath.Base(p), name) {
			return p, nil
		}
	}
	return SelectArtifact(paths), nil
}
