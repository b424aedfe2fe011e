package gitlab

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/lininn/gitlab-review-mcp/internal/gitinfo"
	"github.com/lininn/gitlab-review-mcp/internal/httpclient"
	"github.com/lininn/gitlab-review-mcp/internal/logging"
)

// fakeGitLab is an httptest server that answers by "METHOD /escaped/path"
// and records every request it receives.
type fakeGitLab struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	requests []recordedRequest
}

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]any
}

func newFakeGitLab(t *testing.T) *fakeGitLab {
	t.Helper()
	f := &fakeGitLab{t: t, routes: make(map[string]http.HandlerFunc)}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGitLab) serve(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{Method: r.Method, Path: r.URL.EscapedPath(), Query: r.URL.RawQuery}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &rec.Body)
	}

	f.mu.Lock()
	f.requests = append(f.requests, rec)
	handler, ok := f.routes[r.Method+" "+rec.Path]
	f.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"404 Not Found"}`))
		return
	}
	handler(w, r)
}

func (f *fakeGitLab) handle(method, path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" /api/v4/"+path] = h
}

func (f *fakeGitLab) json(method, path string, status int, body any) {
	f.handle(method, path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	})
}

// project registers GET projects/:id for both the encoded path and the
// numeric ID.
func (f *fakeGitLab) project(path string, id int64) {
	body := map[string]any{
		"id":                  id,
		"name":                lastSegment(path),
		"path":                lastSegment(path),
		"path_with_namespace": path,
		"web_url":             "https://gitlab.example.com/" + path,
		"visibility":          "private",
	}
	f.json(http.MethodGet, "projects/"+url.PathEscape(path), http.StatusOK, body)
	f.json(http.MethodGet, "projects/"+strconv.FormatInt(id, 10), http.StatusOK, body)
}

func (f *fakeGitLab) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func (f *fakeGitLab) count(method, path string) int {
	n := 0
	for _, r := range f.recorded() {
		if r.Method == method && r.Path == "/api/v4/"+path {
			n++
		}
	}
	return n
}

func (f *fakeGitLab) client() *httpclient.Client {
	logger, _ := logging.NewTestLogger()
	return httpclient.New(httpclient.Config{
		BaseURL:     f.server.URL + "/api/v4",
		Token:       "glpat-test-token-123456",
		Timeout:     5 * time.Second,
		MaxAttempts: 1,
	}, f.server.Client(), logger)
}

// stubRemote is a RemoteInspector returning a fixed remote and counting calls.
type stubRemote struct {
	info  gitinfo.RemoteInfo
	calls int
}

func (s *stubRemote) inspect(dir, remoteName string) gitinfo.RemoteInfo {
	s.calls++
	return s.info
}

func gitlabRemote(host, path string) *stubRemote {
	return &stubRemote{info: gitinfo.RemoteInfo{
		RemoteName:      "origin",
		RemoteURL:       "git@" + host + ":" + path + ".git",
		ProjectID:       path,
		ProjectPath:     path,
		Host:            host,
		GitLabURL:       "https://" + host,
		IsGitLabProject: true,
		IsGitRepository: true,
	}}
}

func noRemote() *stubRemote {
	return &stubRemote{info: gitinfo.RemoteInfo{RemoteName: "origin"}}
}

const testAPIHost = "gitlab.example.com"

func newTestResolver(f *fakeGitLab, remote *stubRemote) *Resolver {
	logger, _ := logging.NewTestLogger()
	return NewResolver(f.client(), ResolverOptions{
		APIHost:       testAPIHost,
		InspectRemote: remote.inspect,
		Logger:        logger,
	})
}

func newTestService(f *fakeGitLab, remote *stubRemote) *Service {
	logger, _ := logging.NewTestLogger()
	return NewService(f.client(), newTestResolver(f, remote), ServiceOptions{
		APIHost: testAPIHost,
		Logger:  logger,
	})
}
