package extensions

import (
	"log/slog"
	"time"

	query "github.com/pumped-fn/pumped-query"
)

var startedAt = query.NewMeta[time.Time]("logging.started")

// LoggingPlugin logs every pipeline run
type LoggingPlugin struct {
	query.BasePlugin
	logger *slog.Logger
}

// NewLoggingPlugin creates a new logging plugin
func NewLoggingPlugin(logger *slog.Logger) *LoggingPlugin {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPlugin{
		BasePlugin: query.NewBasePlugin("logging"),
		logger:     logger,
	}
}

func (p *LoggingPlugin) BeforeQuery(rc *query.RequestCtx) error {
	startedAt.Set(rc, time.Now())
	p.logger.Info("query starting",
		"endpoint", rc.Endpoint,
		"kind", string(rc.Kind),
		"key", rc.Key,
		"request_id", rc.ID,
	)
	return nil
}

func (p *LoggingPlugin) AfterQuery(res query.Result, rc *query.RequestCtx) error {
	duration := time.Since(startedAt.GetOrDefault(rc, time.Now()))
	if res.Error != nil {
		p.logger.Warn("query failed",
			"endpoint", rc.Endpoint,
			"key", rc.Key,
			"request_id", rc.ID,
			"duration", duration,
			"error", res.Error.Error(),
		)
		return nil
	}

	p.logger.Info("query completed",
		"endpoint", rc.Endpoint,
		"key", rc.Key,
		"request_id", rc.ID,
		"duration", duration,
	)
	return nil
}

// Phase names the lifecycle position of an entry state.
func Phase(s query.EntryState) string {
	switch {
	case s.IsFetching:
		return "fetching"
	case s.IsLoading:
		return "loading"
	case s.IsError:
		return "error"
	case s.IsSuccess:
		return "success"
	default:
		return "idle"
	}
}

// StateLogger returns store middleware that logs every phase change of a
// cache entry at debug level.
func StateLogger(logger *slog.Logger) query.StoreMiddleware[query.EntryState] {
	return func(_ query.SetFunc[query.EntryState], get func() query.EntryState) func(next query.SetFunc[query.EntryState]) query.SetFunc[query.EntryState] {
		return func(next query.SetFunc[query.EntryState]) query.SetFunc[query.EntryState] {
			return func(update func(query.EntryState) query.EntryState) {
				from := Phase(get())
				next(update)
				after := get()
				if to := Phase(after); to != from {
					logger.Debug("entry state",
						"from", from,
						"to", to,
						"request_id", after.RequestID,
					)
				}
			}
		}
	}
}
