// Package sqlquery provides a database/sql transport for query APIs.
//
// Request.URL holds the statement and Request.Method selects how it runs:
// MethodQuery returns rows as []map[string]any, MethodExec returns an
// ExecResult. Request.Body supplies the arguments, either as a slice of
// positional values, a single value, or a map of named values. Params are
// added as named string arguments.
package sqlquery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	query "github.com/pumped-fn/pumped-query"
)

const (
	MethodQuery = "QUERY"
	MethodExec  = "EXEC"
)

// ErrNoStatement is returned for requests without a statement.
var ErrNoStatement = errors.New("sqlquery: empty statement")

// ExecResult is the data of an EXEC request.
type ExecResult struct {
	RowsAffected int64 `json:"rows_affected"`
	LastInsertID int64 `json:"last_insert_id"`
}

// StatementError wraps a database error with the failing statement.
type StatementError struct {
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("sqlquery: %s: %v", e.Statement, e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// Transport runs requests against a database.
type Transport struct {
	db *sql.DB
}

// New returns a Transport over db.
func New(db *sql.DB) *Transport {
	return &Transport{db: db}
}

// BaseQuery returns t.Query as a query.BaseQuery.
func (t *Transport) BaseQuery() query.BaseQuery {
	return t.Query
}

// Query runs req. An empty Method means MethodQuery.
func (t *Transport) Query(ctx context.Context, req query.Request) query.Result {
	if ctx == nil {
		ctx = context.Background()
	}

	stmt := strings.TrimSpace(req.URL)
	if stmt == "" {
		return query.Result{Error: ErrNoStatement}
	}
	args := bindArgs(req.Body, req.Params)

	switch strings.ToUpper(req.Method) {
	case "", MethodQuery:
		rows, err := t.rows(ctx, stmt, args)
		if err != nil {
			return query.Result{Error: &StatementError{Statement: stmt, Err: err}}
		}
		return query.Result{Data: rows}
	case MethodExec:
		res, err := t.db.ExecContext(ctx, stmt, args...)
		if err != nil {
			return query.Result{Error: &StatementError{Statement: stmt, Err: err}}
		}
		out := ExecResult{}
		// Drivers without support report an error here; the counts stay zero.
		out.RowsAffected, _ = res.RowsAffected()
		out.LastInsertID, _ = res.LastInsertId()
		return query.Result{Data: out}
	default:
		return query.Result{Error: fmt.Errorf("sqlquery: unsupported method %q", req.Method)}
	}
}

func (t *Transport) rows(ctx context.Context, stmt string, args []any) ([]map[string]any, error) {
	rows, err := t.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func bindArgs(body any, params map[string]string) []any {
	var args []any
	switch b := body.(type) {
	case nil:
	case []any:
		args = append(args, b...)
	case map[string]any:
		args = append(args, named(b)...)
	default:
		args = append(args, b)
	}

	if len(params) > 0 {
		m := make(map[string]any, len(params))
		for k, v := range params {
			m[k] = v
		}
		args = append(args, named(m)...)
	}
	return args
}

func named(m map[string]any) []any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = sql.Named(k, m[k])
	}
	return args
}
