// Package project describes the on-disk template project that a build rewrites.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/liteforge/pkg/domain"
)

// Layout holds the fixed paths of a template project, relative to its root.
type Layout struct {
	ConfigFile      string `mapstructure:"configFile"`
	ManifestFile    string `mapstructure:"manifestFile"`
	AppDescriptor   string `mapstructure:"appDescriptor"`
	StringsResource string `mapstructure:"stringsResource"`
	BuildGradle     string `mapstructure:"buildGradle"`
	AndroidManifest string `mapstructure:"androidManifest"`
	SettingsGradle  string `mapstructure:"settingsGradle"`
	ServiceAccount  string `mapstructure:"serviceAccount"`
	SourceRoot      string `mapstructure:"sourceRoot"`
	EntryPoint      string `mapstructure:"entryPoint"`
	Keystore        string `mapstructure:"keystore"`
	ArtifactDir     string `mapstructure:"artifactDir"`
}

// DefaultLayout returns the layout of the React Native WebView template.
func DefaultLayout() Layout {
	return Layout{
		ConfigFile:      filepath.Join("app", "config.ts"),
		ManifestFile:    filepath.Join("app", "manifest.ts"),
		AppDescriptor:   "app.json",
		StringsResource: filepath.Join("android", "app", "src", "main", "res", "values", "strings.xml"),
		BuildGradle:     filepath.Join("android", "app", "build.gradle"),
		AndroidManifest: filepath.Join("android", "app", "src", "main", "AndroidManifest.xml"),
		SettingsGradle:  filepath.Join("android", "settings.gradle"),
		ServiceAccount:  filepath.Join("android", "app", domain.ServiceAccountFileName),
		SourceRoot:      filepath.Join("android", "app", "src", "main", "java"),
		EntryPoint:      "MainActivity.kt",
		Keystore:        filepath.Join("android", "app", "debug.keystore"),
		ArtifactDir:     filepath.Join("android", "app", "build", "outputs", "apk", "release"),
	}
}

// Project is a template project rooted at an absolute directory.
type Project struct {
	Root   string
	Layout Layout
}

// Open resolves root to an absolute path and checks that it is a directory.
func Open(root string, layout Layout) (Project, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Project{}, fmt.Errorf("resolve project root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return Project{}, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, abs)
		}
		return Project{}, fmt.Errorf("stat project root: %w", err)
	}
	if !info.IsDir() {
		return Project{}, fmt.Errorf("%w: %s is not a directory", domain.ErrProjectNotFound, abs)
	}
	return Project{Root: abs, Layout: layout.withDefaults()}, nil
}

// Path joins a layout-relative path onto the project root.
func (p Project) Path(rel string) string {
	return filepath.Join(p.Root, rel)
}

// SourceRoot is the absolute "language sources" directory.
func (p Project) SourceRoot() string {
	return p.Path(p.Layout.SourceRoot)
}

// PackageDir maps a dotted package identifier to its directory under the source root.
func (p Project) PackageDir(pkg string) string {
	if pkg == "" {
		return p.SourceRoot()
	}
	return filepath.Join(append([]string{p.SourceRoot()}, strings.Split(pkg, ".")...)...)
}

// ArtifactDir is where the toolchain drops release packages.
func (p Project) ArtifactDir() string {
	return p.Path(p.Layout.ArtifactDir)
}

// LockKey identifies the project for mutual exclusion.
func (p Project) LockKey() string {
	return filepath.Clean(p.Root)
}

// Rel returns path relative to the project root, for log lines.
func (p Project) Rel(path string) string {
	rel, err := filepath.Rel(p.Root, path)
	if err != nil {
		return path
	}
	return rel
}

func (l Layout) withDefaults() Layout {
	d := DefaultLayout()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&l.ConfigFile, d.ConfigFile)
	fill(&l.ManifestFile, d.ManifestFile)
	fill(&l.AppDescriptor, d.AppDescriptor)
	fill(&l.StringsResource, d.StringsResource)
	fill(&l.BuildGradle, d.BuildGradle)
	fill(&l.AndroidManifest, d.AndroidManifest)
	fill(&l.SettingsGradle, d.SettingsGradle)
	fill(&l.ServiceAccount, d.ServiceAccount)
	fill(&l.SourceRoot, d.SourceRoot)
	fill(&l.EntryPoint, d.EntryPoint)
	fill(&l.Keystore, d.Keystore)
	fill(&l.ArtifactDir, d.ArtifactDir)
	return l
}
