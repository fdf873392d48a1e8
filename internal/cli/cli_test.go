package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pumped-fn/pumped-query/internal/config"
)

// userServer serves /users/{id}; the name carries a per-id hit count.
type userServer struct {
	*httptest.Server
	mu   sync.Mutex
	hits map[string]int
}

func newUserServer(t *testing.T) *userServer {
	t.Helper()

	s := &userServer{hits: map[string]int{}}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		key := r.Method + " " + r.URL.Path
		s.hits[key]++
		n := s.hits[key]
		s.mu.Unlock()

		id := strings.TrimPrefix(r.URL.Path, "/users/")
		if id == "404" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"message":"no such user"}`)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPut {
			body, _ := io.ReadAll(r.Body)
			_, _ = w.Write(body)
			return
		}
		fmt.Fprintf(w, `{"id":%s,"name":"user-%s-v%d"}`, id, id, n)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *userServer) Hits(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[key]
}

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()

	content := fmt.Sprintf(`base_url: %s
retries: 0
endpoints:
  - name: getUser
    path: /users/{id}
    provides: ["users:{id}"]
  - name: updateUser
    kind: mutation
    method: PUT
    path: /users/{id}
    invalidates: ["users:{id}"]
`, baseURL)

	path := filepath.Join(t.TempDir(), "api.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func decodeView(t *testing.T, out string) View {
	t.Helper()

	var v View
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	return v
}

func TestQueryCommand(t *testing.T) {
	srv := newUserServer(t)
	path := writeConfig(t, srv.URL)

	out, err := execute(t, "--config", path, "query", "getUser", `{"id":1}`)
	require.NoError(t, err)

	v := decodeView(t, out)
	assert.Equal(t, "getUser", v.Endpoint)
	assert.Equal(t, "success", v.Status)
	assert.Equal(t, map[string]any{"id": float64(1), "name": "user-1-v1"}, v.Data)
	assert.Empty(t, v.Error)
}

func TestQueryCommand_HTTPError(t *testing.T) {
	srv := newUserServer(t)
	path := writeConfig(t, srv.URL)

	out, err := execute(t, "--config", path, "query", "getUser", `{"id":404}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, errRequestFailed)

	v := decodeView(t, out)
	assert.Equal(t, "error", v.Status)
	assert.Contains(t, v.Error, "status=404")
	assert.Nil(t, v.Data)
}

func TestQueryCommand_BaseURLOverride(t *testing.T) {
	srv := newUserServer(t)
	path := writeConfig(t, "http://127.0.0.1:1")

	out, err := execute(t, "--config", path, "--base-url", srv.URL, "query", "getUser", `{"id":2}`)
	require.NoError(t, err)
	assert.Equal(t, "success", decodeView(t, out).Status)
	assert.Equal(t, 1, srv.Hits("GET /users/2"))
}

func TestQueryCommand_Errors(t *testing.T) {
	srv := newUserServer(t)
	path := writeConfig(t, srv.URL)

	_, err := execute(t, "--config", path, "query", "getUser", `{bad`)
	assert.ErrorContains(t, err, "invalid argument JSON")

	_, err = execute(t, "--config", path, "query", "nope")
	assert.ErrorContains(t, err, "NopeQuery")

	_, err = execute(t, "--config", path, "query", "updateUser")
	assert.ErrorContains(t, err, "mutation")

	_, err = execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "query", "getUser")
	assert.ErrorContains(t, err, "config file not found")

	_, err = execute(t, "--config", path, "query")
	assert.ErrorContains(t, err, "arg")
}

func TestMutateCommand(t *testing.T) {
	srv := newUserServer(t)
	path := writeConfig(t, srv.URL)

	out, err := execute(t, "--config", path, "mutate", "updateUser", `{"id":1,"name":"Ada"}`)
	require.NoError(t, err)

	v := decodeView(t, out)
	assert.Equal(t, "updateUser", v.Endpoint)
	assert.Equal(t, "success", v.Status)
	assert.Equal(t, map[string]any{"id": float64(1), "name": "Ada"}, v.Data)
	assert.Equal(t, 1, srv.Hits("PUT /users/1"))
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pumpq.yaml")

	out, err := execute(t, "init", path)
	require.NoError(t, err)
	assert.Equal(t, "wrote "+path+"\n", out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.Sample, string(data))

	_, err = execute(t, "init", path)
	require.ErrorIs(t, err, errConfigExists)

	_, err = execute(t, "init", "--force", path)
	require.NoError(t, err)

	_, err = config.Load(path, config.Overrides{})
	require.NoError(t, err, "the sample config loads")
}

func TestRootHelp(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)

	for _, sub := range []string{"init", "query", "mutate", "repl", "--config", "--verbose"} {
		assert.Contains(t, out, sub)
	}
}

func TestVerboseLogging(t *testing.T) {
	srv := newUserServer(t)
	path := writeConfig(t, srv.URL)

	logs := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(logs)
	cmd.SetArgs([]string{"-v", "--config", path, "query", "getUser", `{"id":1}`})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, logs.String(), "query starting")
	assert.Contains(t, logs.String(), "query completed")
	assert.Contains(t, logs.String(), "entry state")
}
