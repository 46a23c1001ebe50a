package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chis/imagesmith/internal/config"
	"github.com/chis/imagesmith/internal/docker"
	"github.com/chis/imagesmith/internal/storage"
	"github.com/chis/imagesmith/internal/testutil"
)

func init() {
	color.NoColor = true
}

// clearedEnv are the variables the configuration layer reads.
var clearedEnv = []string{
	"IMAGESMITH_REGISTRY", "REGISTRY",
	"IMAGESMITH_USERNAME", "GITHUB_ACTOR",
	"IMAGESMITH_TOKEN", "GITHUB_TOKEN",
	"IMAGESMITH_OWNER", "IMAGESMITH_ROOT", "IMAGESMITH_ENGINE",
	"IMAGESMITH_TOKEN_SECRET", "DB_PATH",
	"AWS_REGION", "AWS_DEFAULT_REGION",
	"LOG_LEVEL", "LOG_FORMAT",
}

type fakeTokens map[string]string

func (f fakeTokens) Token(_ context.Context, id string) (string, error) {
	return f[id], nil
}

type harness struct {
	t      *testing.T
	a      *app
	out    bytes.Buffer
	errOut bytes.Buffer
	root   string
	engine *testutil.FakeEngine
	store  *testutil.MemoryStorage
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	for _, env := range clearedEnv {
		t.Setenv(env, "")
	}
	t.Setenv("IMAGESMITH_TOKEN", "ghp_test")

	h := &harness{
		t:      t,
		root:   t.TempDir(),
		engine: testutil.NewFakeEngine(),
		store:  testutil.NewMemoryStorage(),
	}
	h.a = newApp(&h.out, &h.errOut)
	h.a.engine = h.engine
	h.a.runner = &testutil.FakeRunner{}
	h.a.store = h.store
	h.a.images = func() (docker.ImageLister, error) {
		return testutil.NewFakeImages(
			docker.Image{ID: "sha256:a", RepoTags: []string{"ghcr.io/acme/ci:1", "ghcr.io/acme/ci:latest"}},
			docker.Image{ID: "sha256:b", RepoTags: []string{"ghcr.io/other/ci:1"}},
		), nil
	}
	h.a.openSecrets = func(context.Context, string) (config.TokenSource, error) {
		return fakeTokens{"ci/ghcr": "ghp_from_secret"}, nil
	}
	return h
}

// run executes the CLI with the harness root and identity appended.
func (h *harness) run(args ...string) int {
	h.t.Helper()
	args = append(args, "--root", h.root, "--username", "octocat", "--owner", "acme", "--log-level", "error")
	return h.a.execute(context.Background(), args)
}

func decodeResponse(t *testing.T, raw []byte, data any) (success bool, errMsg string) {
	t.Helper()
	var resp struct {
		Success bool            `json:"success"`
		Command string          `json:"command"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp), "stdout: %s", raw)
	if data != nil && len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return resp.Success, resp.Error
}

func TestBuild_DryRun(t *testing.T) {
	h := newHarness(t)
	testutil.WriteNamespace(t, h.root, "ci", testutil.BasicMatrix)

	code := h.run("--push", "--dry-run")

	assert.Equal(t, 0, code, "stderr: %s", h.errOut.String())
	assert.Empty(t, h.engine.Calls())
	out := h.out.String()
	assert.Contains(t, out, "Build summary (dry run)")
	assert.Contains(t, out, "ci/stable")
	assert.Contains(t, out, "ghcr.io/acme/ci:24.04-22")
	assert.Contains(t, out, "0 succeeded, 0 failed, 2 skipped")
	assert.Len(t, h.store.Runs(), 1)
}

func TestBuild_FailedVariantExitsOne(t *testing.T) {
	h := newHarness(t)
	testutil.WriteNamespace(t, h.root, "ci", testutil.BasicMatrix)
	h.engine.FailBuild["ghcr.io/acme/ci:24.04-22"] = true

	code := h.run("--parallel")

	assert.Equal(t, 1, code)
	assert.Contains(t, h.out.String(), "1 succeeded, 1 failed")
	assert.Len(t, h.engine.CallsWithPrefix("build "), 2)
}

func TestBuild_UnknownVariant(t *testing.T) {
	h := newHarness(t)
	testutil.WriteNamespace(t, h.root, "ci", testutil.BasicMatrix)

	code := h.run("--name", "nope", "--dry-run")

	assert.Equal(t, 1, code)
	assert.Contains(t, h.errOut.String(), `variant "nope" not found`)
}

func TestBuild_UnknownVariantJSON(t *testing.T) {
	h := newHarness(t)
	testutil.WriteNamespace(t, h.root, "ci", testutil.BasicMatrix)

	code := h.run("--name", "nope", "--dry-run", "--json")

	assert.Equal(t, 1, code)
	success, errMsg := decodeResponse(t, h.out.Bytes(), nil)
	assert.False(t, success)
	assert.Contains(t, errMsg, "nope")
}

func TestBuild_JSONKeepsEngineOutputOffStdout(t *testing.T) {
	h := newHarness(t)
	h.a.engine = nil
	h.a.runner = nil
	testutil.WriteNamespace(t, h.root, "ci", testutil.BasicMatrix)

	// echo stands in for the engine and prints its arguments.
	code := h.run("--json", "--engine", "echo", "--name", "stable")

	require.Equal(t, 0, code, "stderr: %s", h.errOut.String())
	var summary struct {
		Succeeded int `json:"succeeded"`
	}
	success, _ := decodeResponse(t, h.out.Bytes(), &summary)
	assert.True(t, success)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Contains(t, h.errOut.String(), "--tag ghcr.io/acme/ci:24.04-22")
}

func TestBuild_AllAndNameConflict(t *testing.T) {
	h := newHarness(t)
	testutil.WriteNamespace(t, h.root, "ci", testutil.BasicMatrix)

	code := h.run("--all", "--name", "stable")

	assert.Equal(t, 1, code)
	assert.Contains(t, h.errOut.String(), "all")
	assert.Empty(t, h.engine.Calls())
}

func TestBuild_TokenFromSecret(t *testing.T) {
	h := newHarness(t)
	t.Setenv("IMAGESMITH_TOKEN", "")
	testutil.WriteNamespace(t, h.root, "ci", testutil.BasicMatrix)

	code := h.run("--push", "--name", "stable", "--token-secret", "ci/ghcr")

	assert.Equal(t, 0, code, "stderr: %s", h.errOut.String())
	assert.Equal(t, "login ghcr.io octocat", h.engine.Calls()[0])
}

func TestList_JSON(t *testing.T) {
	h := newHarness(t)
	testutil.WriteNamespace(t, h.root, "ci", testutil.BasicMatrix)

	code := h.run("list", "--json")
	require.Equal(t, 0, code, "stderr: %s", h.errOut.String())

	var listed []listedNamespace
	success, _ := decodeResponse(t, h.out.Bytes(), &listed)
	assert.True(t, success)
	require.Len(t, listed, 1)
	assert.Equal(t, "ci", listed[0].Name)
	require.Len(t, listed[0].Variants, 2)
	assert.Equal(t, "stable", listed[0].Variants[0].Name)
	assert.Contains(t, listed[0].Variants[0].Tags, "ghcr.io/acme/ci:24.04-22")
	assert.Contains(t, listed[0].Variants[0].Tags, "ghcr.io/acme/ci:latest")
}

func TestList_UnknownNamespace(t *testing.T) {
	h := newHarness(t)
	testutil.WriteNamespace(t, h.root, "ci", testutil.BasicMatrix)

	assert.Equal(t, 1, h.run("list", "--namespace", "web"))
}

func TestSweep_DryRun(t *testing.T) {
	h := newHarness(t)

	code := h.run("sweep", "--dry-run")

	assert.Equal(t, 0, code, "stderr: %s", h.errOut.String())
	assert.Empty(t, h.engine.Calls())
	assert.Contains(t, h.out.String(), "Sweep of ghcr.io/acme (dry run)")
	assert.Contains(t, h.out.String(), "0 pushed, 0 failed, 2 skipped")
}

func TestSweep_PushFailure(t *testing.T) {
	h := newHarness(t)
	h.engine.FailPush["ghcr.io/acme/ci:1"] = true

	code := h.run("sweep", "acme")

	assert.Equal(t, 1, code)
	assert.Equal(t, []string{
		"login ghcr.io octocat",
		"push ghcr.io/acme/ci:1",
		"push ghcr.io/acme/ci:latest",
		"logout ghcr.io",
	}, h.engine.Calls())
	assert.Len(t, h.store.Runs(), 1)
}

// fakePackages serves the user-scoped container package endpoints for acme/ci.
type fakePackages struct {
	mu      sync.Mutex
	deleted []string
}

func (f *fakePackages) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/acme/packages/container/ci/versions", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": 2, "name": "sha256:b", "metadata": {"package_type": "container", "container": {"tags": ["24.10-23"]}}},
			{"id": 1, "name": "sha256:a", "metadata": {"package_type": "container", "container": {"tags": ["24.04-22", "latest"]}}}
		]`))
	})
	mux.HandleFunc("DELETE /users/acme/packages/container/ci/versions/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.deleted = append(f.deleted, r.PathValue("id"))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	})
	return mux
}

func withPackages(t *testing.T, h *harness) *fakePackages {
	t.Helper()
	api := &fakePackages{}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	h.a.packagesURL = srv.URL
	return api
}

func TestTags(t *testing.T) {
	h := newHarness(t)
	withPackages(t, h)

	code := h.run("tags", "ci")

	require.Equal(t, 0, code, "stderr: %s", h.errOut.String())
	assert.Equal(t, []string{"24.10-23", "24.04-22", "latest"}, strings.Fields(h.out.String()))
}

func TestTags_RequiresGHCR(t *testing.T) {
	h := newHarness(t)
	withPackages(t, h)

	code := h.run("tags", "ci", "--registry", "registry.example.com")

	assert.Equal(t, 1, code)
	assert.Contains(t, h.errOut.String(), "not ghcr.io")
}

func TestDeleteTag(t *testing.T) {
	h := newHarness(t)
	api := withPackages(t, h)

	code := h.run("delete-tag", "ci", "latest")

	require.Equal(t, 0, code, "stderr: %s", h.errOut.String())
	assert.Equal(t, []string{"1"}, api.deleted)
	assert.Contains(t, h.out.String(), "Deleted ci:latest")
}

func TestInspect(t *testing.T) {
	h := newHarness(t)
	h.engine.Published["ghcr.io/acme/ci:1"] = true

	assert.Equal(t, 0, h.run("inspect", "ghcr.io/acme/ci:1"))
	assert.Contains(t, h.out.String(), "published")

	h.out.Reset()
	assert.Equal(t, 1, h.run("inspect", "ghcr.io/acme/ci:1", "ghcr.io/acme/ci:2"))
	assert.Contains(t, h.out.String(), "ghcr.io/acme/ci:2 missing")
}

func TestHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.SaveRun(ctx, testutil.NewRunRecord("run-1", 0)))

	code := h.run("history")
	require.Equal(t, 0, code, "stderr: %s", h.errOut.String())
	assert.Contains(t, h.out.String(), "run-1")
	assert.Contains(t, h.out.String(), "1 ok")

	h.out.Reset()
	code = h.run("history", "run-1", "--json")
	require.Equal(t, 0, code)
	var run storage.RunRecord
	success, _ := decodeResponse(t, h.out.Bytes(), &run)
	assert.True(t, success)
	assert.Equal(t, "run-1", run.RunID)
	assert.Len(t, run.Outcomes, 1)

	h.out.Reset()
	assert.Equal(t, 1, h.run("history", "missing"))
	assert.Contains(t, h.errOut.String(), "run not found")
}

func TestVersion(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.run("version"))
	assert.True(t, strings.HasPrefix(h.out.String(), "imagesmith dev"))
}
