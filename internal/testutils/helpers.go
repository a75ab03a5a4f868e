package testutils

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/liteforge/pkg/project"
	"github.com/stretchr/testify/require"
)

// Template files keyed by path relative to the project root.
var Template = map[string]string{
	"app/config.ts": `export const CONFIG = {
  BASE_URL: 'https://www.digikala.com/gold/',
  SENTRY_DSN: '',
};
`,
	"app/manifest.ts": `const defaultManifest: Manifest = {
  webview: {
    statusBarColor: '#FFD08F',
    linkPatterns: [
      {
        pattern: '^https:\/\/digikala\.com',
        action: 'webview',
      },
      {
        pattern: '^[\\w\\W]+$',
        action: 'browser',
      },
    ],
  },
  minBuildNumber: 1,
  forceUpdate: {
    link: 'https://cafebazaar.ir/app/com.digikala.gold',
    description: 'update',
    button: 'update',
  },
};
`,
	"app.json": `{
  "name": "LiteService",
  "displayName": "Lite Service"
}
`,
	"android/app/src/main/res/values/strings.xml": `<resources>
    <string name="app_name">Lite Service</string>
</resources>
`,
	"android/app/build.gradle": `apply plugin: "com.android.application"
apply plugin: "org.jetbrains.kotlin.android"
apply plugin: "com.facebook.react"
// apply plugin: "com.google.gms.google-services" // Disabled until configured

apply from: new File(["node", "--print", "require.resolve('@sentry/react-native/package.json')"].execute().text.trim(), "../sentry.gradle")

android {
    namespace "com.test"
    defaultConfig {
        applicationId "com.test"
        versionCode 1
    }
}

dependencies {
    implementation("com.facebook.react:react-android")
    // implementation platform('com.google.firebase:firebase-bom:33.9.0') // Disabled
    // implementation 'com.google.firebase:firebase-analytics' // Disabled
}
`,
	"android/settings.gradle": `rootProject.name = 'LiteService'
include ':app'
`,
	"android/app/src/main/AndroidManifest.xml": `<manifest xmlns:android="http://schemas.android.com/apk/res/android">
    <application android:name=".MainApplication" />
</manifest>
`,
	"android/app/src/main/java/com/test/MainActivity.kt": `package com.test

import com.facebook.react.ReactActivity

class MainActivity : ReactActivity() {
  override fun getMainComponentName(): String = "LiteService"
}
`,
	"android/app/src/main/java/com/test/MainApplication.kt": `package com.test

import android.app.Application

class MainApplication : Application()
`,
	"android/app/src/main/java/com/test/SplashActivity.kt": `package com.test

import android.app.Activity

class SplashActivity : Activity()
`,
}

// SetupTemplateProject writes the template into a temporary directory and opens it.
func SetupTemplateProject(t *testing.T) project.Project {
	t.Helper()
	return WriteTemplateProject(t, t.TempDir(), Template)
}

// WriteTemplateProject writes files under root and opens it with the default layout.
func WriteTemplateProject(t *testing.T, root string, files map[string]string) project.Project {
	t.Helper()

	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	p, err := project.Open(root, project.DefaultLayout())
	require.NoError(t, err, "Failed to open template project")
	return p
}

// Snapshot reads every file under root, keyed by slash-separated relative path.
func Snapshot(t *testing.T, root string) map[string]string {
	t.Helper()

	files := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			files[filepath.ToSlash(rel)+"/"] = ""
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return files
}

// ReadFile reads a project-relative file.
func ReadFile(t *testing.T, p project.Project, rel string) string {
	t.Helper()
	data, err := os.ReadFile(p.Path(filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}
