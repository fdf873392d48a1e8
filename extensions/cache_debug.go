package extensions

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/m1gwings/treedrawer/tree"

	query "github.com/pumped-fn/pumped-query"
)

// CacheDebugPlugin logs the cache tree of the API when a query fails.
//
// Usage:
//
//	// Human-readable formatted output (with line breaks)
//	handler := extensions.NewHumanHandler(os.Stdout, slog.LevelError)
//	plugin := extensions.NewCacheDebugPlugin(handler)
//
//	// Structured JSON logging (compact, machine-readable)
//	plugin := extensions.NewCacheDebugPlugin(slog.NewJSONHandler(os.Stdout, nil))
//
//	// Silent (for testing)
//	plugin := extensions.NewCacheDebugPlugin(extensions.NewSilentHandler())
//
// Failed results and recovered panics are both logged at ERROR level.
type CacheDebugPlugin struct {
	query.BasePlugin
	logger *slog.Logger
}

// NewCacheDebugPlugin creates a new cache debug plugin.
func NewCacheDebugPlugin(logHandler slog.Handler) *CacheDebugPlugin {
	return &CacheDebugPlugin{
		BasePlugin: query.NewBasePlugin("cache-debug"),
		logger:     slog.New(logHandler),
	}
}

// OnError logs the cache tree when a run settles with an error
func (p *CacheDebugPlugin) OnError(err error, rc *query.RequestCtx) error {
	var pe *query.PanicError
	if errors.As(err, &pe) {
		p.logger.Error("Query Panic",
			"endpoint", rc.Endpoint,
			"panic", fmt.Sprintf("%v", pe.Value),
			"stack_trace", string(pe.StackTrace),
		)
		return nil
	}

	p.logger.Error("Query Error",
		"endpoint", rc.Endpoint,
		"key", rc.Key,
		"error", err.Error(),
		"cache_tree", CacheTree(rc.API()),
	)
	return nil
}

// CacheTree renders the endpoints of api, their cache entries and the tags
// provided by each entry.
func CacheTree(api *query.API) string {
	root := tree.NewTree(tree.NodeString("api"))

	byEndpoint := make(map[string][]query.EntryInfo)
	for _, info := range api.Entries() {
		byEndpoint[info.Endpoint] = append(byEndpoint[info.Endpoint], info)
	}

	endpoints := make([]string, 0, len(byEndpoint))
	for name := range byEndpoint {
		endpoints = append(endpoints, name)
	}
	sort.Strings(endpoints)

	for _, name := range endpoints {
		infos := byEndpoint[name]
		node := root.AddChild(tree.NodeString(fmt.Sprintf("%s [%s]", name, infos[0].Kind)))
		for _, info := range infos {
			entry := node.AddChild(tree.NodeString(fmt.Sprintf("%s %s", info.Key, statusMark(info.State))))
			if len(info.State.ProvidedTags) > 0 {
				tags := make([]string, len(info.State.ProvidedTags))
				for i, t := range info.State.ProvidedTags {
					tags[i] = t.String()
				}
				entry.AddChild(tree.NodeString(strings.Join(tags, ", ")))
			}
		}
	}

	return root.String()
}

func statusMark(s query.EntryState) string {
	switch Phase(s) {
	case "success":
		return "✓"
	case "error":
		return "❌"
	default:
		return "(" + Phase(s) + ")"
	}
}
