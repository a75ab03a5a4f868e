package rewrite

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/aretw0/liteforge/pkg/domain"
)

var (
	packageDeclaration = regexp.MustCompile(`(?m)^(package[ \t]+)([A-Za-z_][\w.]*)`)
	mainComponentName  = regexp.MustCompile(`override fun getMainComponentName\(\): String = ["'][^"']+["']`)
)

var sourceExtensions = map[string]bool{".kt": true, ".java": true}

// migratePackageTree moves every source file under the new package directory,
// rewriting package declarations and the entry point's registered component name.
// Subdirectories of the old package keep their relative position under the new one.
func (r *Rewriter) migratePackageTree(rc *rewriteContext) StepResult {
	root := r.project.SourceRoot()
	res := StepResult{Path: r.project.Layout.SourceRoot}

	files, err := findSourceFiles(root)
	if err != nil {
		res.Err = fmt.Errorf("scan %s: %w", res.Path, err)
		return res
	}
	if len(files) == 0 {
		res.Err = fmt.Errorf("%w under %s", domain.ErrNoSourceFilesFound, res.Path)
		return res
	}

	oldPkg, err := r.detectPackage(files)
	if err != nil {
		res.Err = err
		return res
	}
	var oldDir string
	if oldPkg != "" {
		rc.report.OldPackage = oldPkg
		oldDir = r.project.PackageDir(oldPkg)
	}

	newPkg := rc.id.PackageName
	newDir := r.project.PackageDir(newPkg)
	vacated := make(map[string]bool)

	for _, src := range files {
		dst, pkg := retarget(src, oldDir, newDir, newPkg)

		data, err := os.ReadFile(src)
		if err != nil {
			res.Err = fmt.Errorf("read %s: %w", r.project.Rel(src), err)
			return res
		}
		text, _ := replaceFirstFunc(packageDeclaration, string(data), func(g []string) string {
			return g[1] + pkg
		})
		if filepath.Base(src) == r.project.Layout.EntryPoint {
			text, _ = replaceFirst(mainComponentName, text,
				fmt.Sprintf("override fun getMainComponentName(): String = %q", rc.id.RegisteredName))
		}

		if dst == src {
			changed, err := writeIfChanged(src, data, []byte(text))
			if err != nil {
				res.Err = err
				return res
			}
			res.Changed = res.Changed || changed
			continue
		}

		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			res.Err = fmt.Errorf("create %s: %w", r.project.Rel(filepath.Dir(dst)), err)
			return res
		}
		mode := os.FileMode(0o644)
		if info, err := os.Stat(src); err == nil {
			mode = info.Mode().Perm()
		}
		if err := os.WriteFile(dst, []byte(text), mode); err != nil {
			res.Err = fmt.Errorf("write %s: %w", r.project.Rel(dst), err)
			return res
		}
		if err := os.Remove(src); err != nil {
			res.Err = fmt.Errorf("remove %s: %w", r.project.Rel(src), err)
			return res
		}

		vacated[filepath.Dir(src)] = true
		res.Changed = true
		rc.report.MovedFiles = append(rc.report.MovedFiles, r.project.Rel(dst))
		res.Messages = append(res.Messages, fmt.Sprintf("Updated and moved %s to new package", filepath.Base(dst)))
	}

	if oldDir != "" && oldDir != newDir {
		vacated[oldDir] = true
	}
	pruneEmptyDirs(root, vacated)

	if rc.report.OldPackage != "" && rc.report.OldPackage != newPkg {
		res.Messages = append(res.Messages, fmt.Sprintf("Migrated package %s to %s", rc.report.OldPackage, newPkg))
	}
	return res
}

// detectPackage returns the package the template currently lives in: the entry
// point's declaration when there is one, else the declaration that every other
// declaration extends, else the first declaration found.
func (r *Rewriter) detectPackage(files []string) (string, error) {
	var decls []string
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", r.project.Rel(f), err)
		}
		m := packageDeclaration.FindSubmatch(data)
		if m == nil {
			continue
		}
		if filepath.Base(f) == r.project.Layout.EntryPoint {
			return string(m[2]), nil
		}
		decls = append(decls, string(m[2]))
	}
	if len(decls) == 0 {
		return "", nil
	}

	for _, candidate := range decls {
		root := true
		for _, d := range decls {
			if d != candidate && !strings.HasPrefix(d, candidate+".") {
				root = false
				break
			}
		}
		if root {
			return candidate, nil
		}
	}
	return decls[0], nil
}

// findSourceFiles lists source files depth-first in lexical order.
func findSourceFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if !d.IsDir() && sourceExtensions[filepath.Ext(path)] {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// retarget returns the destination path and package of a source file.
// Files inside oldDir keep their subpackage; anything else lands directly in newDir.
func retarget(src, oldDir, newDir, newPkg string) (string, string) {
	if oldDir != "" {
		if rel, err := filepath.Rel(oldDir, filepath.Dir(src)); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			if rel == "." {
				return filepath.Join(newDir, filepath.Base(src)), newPkg
			}
			segments := strings.Split(filepath.ToSlash(rel), "/")
			return filepath.Join(newDir, rel, filepath.Base(src)), newPkg + "." + strings.Join(segments, ".")
		}
	}
	return filepath.Join(newDir, filepath.Base(src)), newPkg
}

// pruneEmptyDirs removes each directory in dirs that is empty, walking upward
// until a non-empty directory or root is reached. Deeper paths go first.
func pruneEmptyDirs(root string, dirs map[string]bool) {
	ordered := make([]string, 0, len(dirs))
	for d := range dirs {
		ordered = append(ordered, d)
	}
	sort.Slice(ordered, func(i, j int) bool { return len(ordered[i]) > len(ordered[j]) })

	root = filepath.Clean(root)
	for _, dir := range ordered {
		for dir = filepath.Clean(dir); dir != root && strings.HasPrefix(dir, root+string(filepath.Separator)); dir = filepath.Dir(dir) {
			entries, err := os.ReadDir(dir)
			if err != nil || len(entries) > 0 {
				break
			}
			if err := os.Remove(dir); err != nil {
				break
			}
		}
	}
}
