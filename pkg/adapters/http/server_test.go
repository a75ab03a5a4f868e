package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/liteforge/pkg/domain"
	"github.com/aretw0/liteforge/pkg/manifest"
	"github.com/aretw0/liteforge/pkg/orchestrator"
)

type fakeBuilder struct {
	mu       sync.Mutex
	events   []domain.Event
	buildErr error
	max      int64
	dir      string
	busy     bool

	requests   []domain.BuildRequest
	descriptor []byte
}

func newFakeBuilder(t *testing.T, events ...domain.Event) *fakeBuilder {
	return &fakeBuilder{events: events, max: 10 << 20, dir: t.TempDir()}
}

func (f *fakeBuilder) Build(ctx context.Context, req domain.BuildRequest) (<-chan domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if req.ServiceAccountPath != "" {
		f.descriptor, _ = os.ReadFile(req.ServiceAccountPath)
	}
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	ch := make(chan domain.Event, len(f.events))
	for _, e := range f.events {
		ch <- e
	}
	close(ch)
	return ch, nil
}

func (f *fakeBuilder) StageDescriptor(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, f.max+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > f.max {
		return "", domain.ErrPayloadTooLarge
	}
	if !json.Valid(data) {
		return "", domain.ErrInvalidFileType
	}
	tmp, err := os.CreateTemp(f.dir, "google-services-*.json")
	if err != nil {
		return "", err
	}
	defer tmp.Close()
	_, err = tmp.Write(data)
	return tmp.Name(), err
}

func (f *fakeBuilder) MaxUploadBytes() int64 { return f.max }

func (f *fakeBuilder) FindArtifact(name string) (string, error) {
	return orchestrator.LookupArtifact(filepath.Join(f.dir, "apk"), name)
}

func (f *fakeBuilder) Busy() bool { return f.busy }

func (f *fakeBuilder) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type upload struct {
	name        string
	contentType string
	content     string
}

func buildForm(t *testing.T, fields map[string]string, file *upload) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, DescriptorField, file.name))
		h.Set("Content-Type", file.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(file.content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func validFields() map[string]string {
	return map[string]string{"url": "example.com", "appName": "My Shop", "packageName": "com.example.shop"}
}

func postBuild(t *testing.T, handler http.Handler, fields map[string]string, file *upload) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := buildForm(t, fields, file)
	req := httptest.NewRequest(http.MethodPost, "/api/build", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func frames(t *testing.T, body string) []domain.Event {
	t.Helper()
	var out []domain.Event
	for _, frame := range strings.Split(body, "\n\n") {
		if frame == "" {
			continue
		}
		require.True(t, strings.HasPrefix(frame, "data: "), "unexpected frame %q", frame)
		var e domain.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &e))
		out = append(out, e)
	}
	return out
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

func TestBuild_StreamsEvents(t *testing.T) {
	builder := newFakeBuilder(t,
		domain.Event{Type: domain.EventProgress, Message: "Updated BASE_URL to: https://example.com"},
		domain.Event{Type: domain.EventStdout, Data: "> Task :app:assembleRelease\n"},
		domain.Event{Type: domain.EventStderr, Data: "warning: deprecated\n"},
		domain.Event{Type: domain.EventSuccess, APKPath: "/srv/out/app-universal-release.apk", APKName: "app-universal-release.apk"},
	)
	w := postBuild(t, NewHandler(builder), validFields(), nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := frames(t, w.Body.String())
	require.Len(t, events, 4)
	assert.Equal(t, domain.EventStdout, events[1].Type)
	assert.Equal(t, "> Task :app:assembleRelease\n", events[1].Data)
	assert.Equal(t, domain.EventStderr, events[2].Type)
	assert.Equal(t, domain.EventSuccess, events[3].Type)
	assert.Equal(t, "/api/download/app-universal-release.apk", events[3].APKPath)
	assert.Equal(t, "app-universal-release.apk", events[3].APKName)

	require.Equal(t, 1, builder.calls())
	assert.Equal(t, "example.com", builder.requests[0].URL)
	assert.Empty(t, builder.requests[0].ServiceAccountPath)
}

func TestBuild_ErrorEvent(t *testing.T) {
	builder := newFakeBuilder(t, domain.Event{Type: domain.EventError, Message: "Build failed with exit code 1"})
	w := postBuild(t, NewHandler(builder), validFields(), nil)

	events := frames(t, w.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, domain.Event{Type: domain.EventError, Message: "Build failed with exit code 1"}, events[0])
}

func TestBuild_Validation(t *testing.T) {
	missing := validFields()
	delete(missing, "appName")
	badPackage := validFields()
	badPackage["packageName"] = "Com.Example"

	tests := []struct {
		name    string
		fields  map[string]string
		file    *upload
		status  int
		message string
	}{
		{"Missing field", missing, nil, http.StatusBadRequest, "Missing required fields: url, appName, packageName"},
		{"Invalid package", badPackage, nil, http.StatusBadRequest, domain.ErrInvalidPackageName.Error()},
		{"Wrong file name", validFields(), &upload{"services.json", "application/json", `{}`}, http.StatusBadRequest, domain.ErrInvalidUploadName.Error()},
		{"Not JSON", validFields(), &upload{"google-services.txt", "text/plain", "hello"}, http.StatusBadRequest, domain.ErrInvalidFileType.Error()},
		{"Malformed JSON", validFields(), &upload{DescriptorName, "application/json", "{nope"}, http.StatusBadRequest, domain.ErrInvalidFileType.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			builder := newFakeBuilder(t)
			w := postBuild(t, NewHandler(builder), tt.fields, tt.file)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, decodeError(t, w), tt.message)
			assert.Zero(t, builder.calls())
		})
	}
}

func TestBuild_StagesDescriptor(t *testing.T) {
	builder := newFakeBuilder(t, domain.Event{Type: domain.EventSuccess, Message: "done"})
	content := `{"project_info":{"project_id":"shop"}}`
	w := postBuild(t, NewHandler(builder), validFields(), &upload{DescriptorName, "application/json", content})

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, builder.calls())
	staged := builder.requests[0].ServiceAccountPath
	require.NotEmpty(t, staged)
	assert.Equal(t, content, string(builder.descriptor))

	_, err := os.Stat(staged)
	assert.True(t, os.IsNotExist(err), "staged descriptor should be removed after the build")
}

func TestBuild_PayloadTooLarge(t *testing.T) {
	builder := newFakeBuilder(t)
	builder.max = 16
	w := postBuild(t, NewHandler(builder), validFields(), &upload{DescriptorName, "application/json", `{"padding":"0123456789012345678901234567890"}`})

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Zero(t, builder.calls())
}

func TestBuild_Busy(t *testing.T) {
	builder := newFakeBuilder(t)
	builder.buildErr = domain.ErrBuildInProgress
	w := postBuild(t, NewHandler(builder), validFields(), nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, domain.ErrBuildInProgress.Error(), decodeError(t, w))
}

func TestBuild_JSONBody(t *testing.T) {
	builder := newFakeBuilder(t, domain.Event{Type: domain.EventSuccess, Message: "done"})
	req := httptest.NewRequest(http.MethodPost, "/api/build",
		strings.NewReader(`{"url":"https://example.com","appName":"Shop","packageName":"com.example.shop","serviceAccountPath":"/etc/passwd"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	NewHandler(builder).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, builder.calls())
	assert.Equal(t, "Shop", builder.requests[0].AppName)
	assert.Empty(t, builder.requests[0].ServiceAccountPath)
}

func TestDownload(t *testing.T) {
	builder := newFakeBuilder(t)
	apkDir := filepath.Join(builder.dir, "apk", "release")
	require.NoError(t, os.MkdirAll(apkDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(apkDir, "app-arm64-v8a-release.apk"), []byte("arm"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(apkDir, "app-universal-release.apk"), []byte("universal"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(apkDir, "my app.apk"), []byte("spaced"), 0o644))
	handler := NewHandler(builder)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	t.Run("Exact name", func(t *testing.T) {
		w := get("/api/download/app-arm64-v8a-release.apk")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "arm", w.Body.String())
		assert.Equal(t, `attachment; filename="app-arm64-v8a-release.apk"`, w.Header().Get("Content-Disposition"))
	})

	t.Run("Escaped name", func(t *testing.T) {
		w := get("/api/download/my%20app.apk")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "spaced", w.Body.String())
	})

	t.Run("Unknown name falls back to universal", func(t *testing.T) {
		w := get("/api/download/whatever.apk")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "universal", w.Body.String())
	})

	t.Run("No artifacts", func(t *testing.T) {
		empty := newFakeBuilder(t)
		w := httptest.NewRecorder()
		NewHandler(empty).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/download/app.apk", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "APK file not found", decodeError(t, w))
	})
}

func TestManifestRoutes(t *testing.T) {
	store := manifest.NewStore(manifest.Default())
	require.NoError(t, store.Init(context.Background()))
	handler := NewHandler(newFakeBuilder(t), WithManifest(store))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/manifest", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got manifest.Manifest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, manifest.Default(), got)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/api/manifest", strings.NewReader(`{"minBuildNumber": 4}`)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 4, store.Get().MinBuildNumber)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/api/manifest", strings.NewReader(`{"splash": {"statusBarColor": "green"}}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	NewHandler(newFakeBuilder(t)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/manifest", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServiceRoutes(t *testing.T) {
	builder := newFakeBuilder(t)
	builder.busy = true
	handler := NewHandler(builder)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.JSONEq(t, `{"status":"ok","busy":true}`, w.Body.String())

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/info", nil))
	assert.Contains(t, w.Body.String(), `"app":"liteforge-http"`)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="googleServicesFile"`)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `liteforge_http_requests_total{method="GET",route="/health",status="200"} 1`)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/build", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestDownloadEvent(t *testing.T) {
	e := DownloadEvent(domain.Event{Type: domain.EventSuccess, APKPath: "/out/app release.apk"})
	assert.Equal(t, "/api/download/app%20release.apk", e.APKPath)
	assert.Equal(t, "app release.apk", e.APKName)

	missing := domain.Event{Type: domain.EventSuccess, Message: "Build completed but APK not found. Check build output."}
	assert.Equal(t, missing, DownloadEvent(missing))
}
