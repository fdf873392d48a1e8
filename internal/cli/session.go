package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	query "github.com/pumped-fn/pumped-query"
	"github.com/pumped-fn/pumped-query/extensions"
	"github.com/pumped-fn/pumped-query/internal/config"
	"github.com/pumped-fn/pumped-query/transport/httpquery"
	"github.com/pumped-fn/pumped-query/transport/sqlquery"
)

// Session is one API built from a config file, with the backend it talks to.
type Session struct {
	API    *query.API
	Config config.Config

	close func() error
}

// OpenSession loads the config named by opts and builds its API. Logs go to
// logOut; with opts.Verbose they include every request and state change.
func OpenSession(opts *RootOptions, logOut io.Writer) (*Session, error) {
	cfg, err := config.Load(opts.ConfigPath, config.Overrides{
		BaseURL:      opts.BaseURL,
		CacheTimeout: opts.CacheTimeout,
	})
	if err != nil {
		return nil, err
	}

	endpoints, err := cfg.BuildEndpoints()
	if err != nil {
		return nil, err
	}

	base, closeFn, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))

	apiOpts := []query.Option{
		query.WithCacheTimeout(cfg.CacheTimeout.Duration),
		query.WithTagTypes(cfg.TagTypes...),
		query.WithLogger(logger),
	}
	if opts.Verbose {
		apiOpts = append(apiOpts,
			query.WithPlugin(
				extensions.NewLoggingPlugin(logger),
				extensions.NewCacheDebugPlugin(extensions.NewHumanHandler(logOut, slog.LevelError)),
			),
			query.WithStoreMiddleware(extensions.StateLogger(logger)),
		)
	}

	api, err := query.CreateAPI(base, endpoints, apiOpts...)
	if err != nil {
		_ = closeFn()
		return nil, err
	}

	return &Session{API: api, Config: cfg, close: closeFn}, nil
}

func openBackend(cfg config.Config) (query.BaseQuery, func() error, error) {
	if dsn, ok := cfg.SQLiteDSN(); ok {
		db, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite database: %w", err)
		}
		// An in-memory database exists once per connection.
		db.SetMaxOpenConns(1)
		return sqlquery.New(db).BaseQuery(), db.Close, nil
	}

	client, err := httpquery.New(cfg.BaseURL, httpquery.WithHeaders(query.Header(cfg.Headers)))
	if err != nil {
		return nil, nil, err
	}

	policy := extensions.DefaultRetryPolicy
	policy.MaxRetries = cfg.Retries
	return extensions.Retry(client.BaseQuery(), policy), func() error { return nil }, nil
}

// Close releases the backend.
func (s *Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Query runs the query endpoint with arg.
func (s *Session) Query(ctx context.Context, endpoint string, arg any) (query.Snapshot, error) {
	if err := s.checkKind(endpoint, query.KindQuery); err != nil {
		return query.Snapshot{}, err
	}
	q, err := s.API.Query(query.AccessorName(endpoint, query.KindQuery))
	if err != nil {
		return query.Snapshot{}, err
	}
	return q.Use(ctx, arg)
}

// Mutate runs the mutation endpoint with arg.
func (s *Session) Mutate(ctx context.Context, endpoint string, arg any) (query.Result, error) {
	if err := s.checkKind(endpoint, query.KindMutation); err != nil {
		return query.Result{}, err
	}
	m, err := s.API.Mutation(query.AccessorName(endpoint, query.KindMutation))
	if err != nil {
		return query.Result{}, err
	}
	return m.Invoke(ctx, arg)
}

func (s *Session) checkKind(endpoint string, want query.Kind) error {
	def, ok := s.API.Endpoint(endpoint)
	if ok && def.Kind() != want {
		return fmt.Errorf("%w: %s is a %s", query.ErrKindMismatch, endpoint, def.Kind())
	}
	return nil
}
