package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	query "github.com/pumped-fn/pumped-query"
)

// View is the JSON form of a snapshot or mutation result.
type View struct {
	Endpoint string `json:"endpoint"`
	Status   string `json:"status"`
	Data     any    `json:"data,omitempty"`
	Error    string `json:"error,omitempty"`
}

func snapshotView(endpoint string, s query.Snapshot) View {
	v := View{Endpoint: endpoint, Data: s.Data}
	switch {
	case s.IsError:
		v.Status = "error"
		v.Error = s.Error.Error()
	case s.IsSuccess:
		v.Status = "success"
	case s.IsLoading:
		v.Status = "loading"
	default:
		v.Status = "idle"
	}
	return v
}

func resultView(endpoint string, r query.Result) View {
	if r.Error != nil {
		return View{Endpoint: endpoint, Status: "error", Error: r.Error.Error()}
	}
	return View{Endpoint: endpoint, Status: "success", Data: r.Data}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// parseArg decodes a JSON argument. An empty string is no argument.
func parseArg(s string) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var arg any
	if err := json.Unmarshal([]byte(s), &arg); err != nil {
		return nil, fmt.Errorf("invalid argument JSON: %w", err)
	}
	return arg, nil
}

var errRequestFailed = errors.New("request failed")

// failure wraps a transport error reported in a snapshot or result.
func failure(endpoint string, err error) error {
	return fmt.Errorf("%w: %s: %w", errRequestFailed, endpoint, err)
}
