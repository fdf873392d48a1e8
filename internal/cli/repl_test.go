package cli

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	query "github.com/pumped-fn/pumped-query"
)

func newTestREPL(t *testing.T, configPath string) *REPL {
	t.Helper()

	s, err := OpenSession(&RootOptions{ConfigPath: configPath}, io.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return NewREPL(s)
}

func run(t *testing.T, r *REPL, line string) string {
	t.Helper()

	out := &bytes.Buffer{}
	quit, err := r.Exec(context.Background(), line, out)
	require.NoError(t, err, line)
	require.False(t, quit, line)
	return out.String()
}

func TestREPL_CacheAndInvalidation(t *testing.T) {
	srv := newUserServer(t)
	r := newTestREPL(t, writeConfig(t, srv.URL))

	out := run(t, r, `query getUser {"id":1}`)
	assert.Contains(t, out, "user-1-v1")
	run(t, r, `query getUser {"id": 1}`)
	assert.Equal(t, 1, srv.Hits("GET /users/1"), "the second query is a cache hit")

	out = run(t, r, "keys")
	assert.Contains(t, out, `getUser({"id":1})`)
	assert.Contains(t, out, "success")

	out = run(t, r, "tree")
	assert.Contains(t, out, "getUser [query]")
	assert.Contains(t, out, "users:1")

	out = run(t, r, "invalidate users:2")
	assert.Equal(t, "invalidated users:2\n", out)
	assert.Equal(t, 1, srv.Hits("GET /users/1"))

	run(t, r, "invalidate users:1")
	assert.Equal(t, 2, srv.Hits("GET /users/1"))

	run(t, r, "invalidate users:*")
	assert.Equal(t, 3, srv.Hits("GET /users/1"))

	out = run(t, r, `refetch getUser {"id":1}`)
	assert.Contains(t, out, "user-1-v4")

	run(t, r, "reset")
	assert.Equal(t, 5, srv.Hits("GET /users/1"))

	out = run(t, r, `mutate updateUser {"id":1,"name":"Ada"}`)
	assert.Contains(t, out, `"name": "Ada"`)
	assert.Equal(t, 1, srv.Hits("PUT /users/1"))
	assert.Equal(t, 6, srv.Hits("GET /users/1"), "the mutation invalidates users:1")

	out = run(t, r, "endpoints")
	assert.Equal(t, "GetUserQuery\nUpdateUserMutation\n", out)
}

func TestREPL_Errors(t *testing.T) {
	srv := newUserServer(t)
	r := newTestREPL(t, writeConfig(t, srv.URL))

	tests := []struct {
		line string
		want error
	}{
		{"query", errUsage},
		{"invalidate", errUsage},
		{`refetch getUser {"id":9}`, query.ErrEntryNotFound},
		{"query updateUser", query.ErrKindMismatch},
		{"mutate getUser", query.ErrKindMismatch},
		{"query missing", query.ErrUnknownAccessor},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := r.Exec(context.Background(), tt.line, io.Discard)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := r.Exec(context.Background(), "frobnicate", io.Discard)
	assert.ErrorContains(t, err, "unknown command: frobnicate")
}

func TestREPL_ExitAndHelp(t *testing.T) {
	srv := newUserServer(t)
	r := newTestREPL(t, writeConfig(t, srv.URL))

	assert.Contains(t, run(t, r, "help"), "invalidate <tag>")
	assert.Equal(t, "(no entries)\n", run(t, r, "keys"))
	assert.Empty(t, run(t, r, "   "))

	for _, line := range []string{"exit", "quit", "q", "EXIT"} {
		quit, err := r.Exec(context.Background(), line, io.Discard)
		require.NoError(t, err)
		assert.True(t, quit, line)
	}
}

func TestREPL_Completer(t *testing.T) {
	srv := newUserServer(t)
	r := newTestREPL(t, writeConfig(t, srv.URL))

	assert.Equal(t, []string{"query", "quit", "q"}, r.completer("q"))
	assert.Equal(t, []string{"refetch", "reset"}, r.completer("re"))
	assert.Equal(t, []string{"query getUser"}, r.completer("query get"))
	assert.Empty(t, r.completer("keys x"))
}

func TestREPL_SQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "app.db")
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
INSERT INTO users(name) VALUES ('Ada');`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	configPath := filepath.Join(t.TempDir(), "api.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(fmt.Sprintf(`base_url: "sqlite:%s"
endpoints:
  - name: listUsers
    path: "SELECT id, name FROM users ORDER BY id"
    provides: [users]
  - name: addUser
    kind: mutation
    path: "INSERT INTO users(name) VALUES (:name)"
    invalidates: [users]
`, dbPath)), 0o600))

	r := newTestREPL(t, configPath)

	out := run(t, r, "query listUsers")
	assert.Contains(t, out, `"name": "Ada"`)
	assert.NotContains(t, out, "Grace")

	out = run(t, r, `mutate addUser {"name":"Grace"}`)
	assert.Contains(t, out, `"rows_affected": 1`)

	out = run(t, r, "query listUsers")
	assert.Contains(t, out, `"name": "Grace"`, "the insert invalidated the users tag")
}
