package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	query "github.com/pumped-fn/pumped-query"
	"github.com/pumped-fn/pumped-query/transport/sqlquery"
)

var errMissingField = errors.New("argument has no field")

// EndpointConfig declares one endpoint.
type EndpointConfig struct {
	Name   string `yaml:"name" json:"name"`
	Kind   string `yaml:"kind,omitempty" json:"kind,omitempty"`
	Method string `yaml:"method,omitempty" json:"method,omitempty"`
	// Path is a URL path template such as /users/{id}, or the SQL statement
	// when the API talks to sqlite. {arg} stands for the whole argument and
	// {name} for one of its fields.
	Path         string      `yaml:"path" json:"path"`
	CacheTimeout Duration    `yaml:"cache_timeout,omitempty" json:"cache_timeout,omitempty"`
	Provides     []TagConfig `yaml:"provides,omitempty" json:"provides,omitempty"`
	Invalidates  []TagConfig `yaml:"invalidates,omitempty" json:"invalidates,omitempty"`
}

func (e EndpointConfig) kind() (query.Kind, error) {
	switch strings.ToLower(e.Kind) {
	case "", string(query.KindQuery):
		return query.KindQuery, nil
	case string(query.KindMutation):
		return query.KindMutation, nil
	default:
		return "", fmt.Errorf("%w: %q", errEndpointKind, e.Kind)
	}
}

// BuildEndpoints converts the declared endpoints into query definitions.
// Arguments and results are untyped: arguments arrive as decoded JSON and
// results are whatever the transport returns.
func (c Config) BuildEndpoints() (query.Endpoints, error) {
	_, useSQL := c.SQLiteDSN()

	out := make(query.Endpoints, len(c.Endpoints))
	for _, ep := range c.Endpoints {
		kind, err := ep.kind()
		if err != nil {
			return nil, fmt.Errorf("endpoint %s: %w", ep.Name, err)
		}

		build := ep.httpRequest
		if useSQL {
			build = ep.sqlRequest
		}
		queryFn := func(ctx context.Context, arg any, base query.BaseQuery) query.Result {
			req, err := build(kind, arg)
			if err != nil {
				return query.Result{Error: fmt.Errorf("%s: %w", ep.Name, err)}
			}
			return base(ctx, req)
		}

		switch kind {
		case query.KindQuery:
			out[ep.Name] = query.Query(query.QueryDef[any, any]{
				QueryFn:      queryFn,
				ProvidesTags: tagsFrom(ep.Provides),
				CacheTimeout: ep.CacheTimeout.Duration,
			})
		case query.KindMutation:
			out[ep.Name] = query.Mutation(query.MutationDef[any, any]{
				QueryFn:         queryFn,
				ProvidesTags:    tagsFrom(ep.Provides),
				InvalidatesTags: tagsFrom(ep.Invalidates),
			})
		}
	}
	return out, nil
}

func (e EndpointConfig) httpRequest(kind query.Kind, arg any) (query.Request, error) {
	method := strings.ToUpper(e.Method)
	if method == "" {
		method = http.MethodGet
		if kind == query.KindMutation {
			method = http.MethodPost
		}
	}

	path, used, err := expand(e.Path, arg, url.PathEscape)
	if err != nil {
		return query.Request{}, err
	}

	req := query.Request{URL: path, Method: method}
	if method == http.MethodGet || method == http.MethodHead {
		req.Params = leftoverParams(arg, used)
		return req, nil
	}
	req.Body = arg
	return req, nil
}

func (e EndpointConfig) sqlRequest(kind query.Kind, arg any) (query.Request, error) {
	method := strings.ToUpper(e.Method)
	if method == "" {
		method = sqlquery.MethodQuery
		if kind == query.KindMutation {
			method = sqlquery.MethodExec
		}
	}
	return query.Request{URL: e.Path, Method: method, Body: arg}, nil
}

// expand fills {name} placeholders in tmpl from arg and reports the fields
// it consumed.
func expand(tmpl string, arg any, escape func(string) string) (string, map[string]bool, error) {
	used := map[string]bool{}
	var b strings.Builder
	rest := tmpl
	for {
		start := strings.IndexByte(rest, '{')
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			b.WriteString(rest)
			break
		}
		end += start

		b.WriteString(rest[:start])
		name := rest[start+1 : end]
		var v any
		if name == "arg" {
			v = arg
		} else {
			field, ok := lookup(arg, name)
			if !ok {
				return "", nil, fmt.Errorf("%w %q", errMissingField, name)
			}
			v = field
			used[name] = true
		}
		b.WriteString(escape(formatValue(v)))
		rest = rest[end+1:]
	}
	return b.String(), used, nil
}

func leftoverParams(arg any, used map[string]bool) map[string]string {
	m, ok := generic(arg).(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var params map[string]string
	for _, k := range keys {
		if used[k] {
			continue
		}
		switch m[k].(type) {
		case map[string]any, []any:
			continue
		}
		if params == nil {
			params = make(map[string]string)
		}
		params[k] = formatValue(m[k])
	}
	return params
}

// generic turns v into the shape encoding/json produces for any: maps,
// slices and scalars. A single-row result is unwrapped.
func generic(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return x
	case []map[string]any:
		if len(x) == 1 {
			return x[0]
		}
		return nil
	case json.RawMessage:
		return generic(decodeRaw(x))
	case []byte:
		return generic(decodeRaw(x))
	case []any:
		if len(x) == 1 {
			return generic(x[0])
		}
		return x
	case string, float64, bool, json.Number:
		return x
	}

	encoded, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return generic(decodeRaw(encoded))
}

func decodeRaw(raw []byte) any {
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func lookup(v any, field string) (any, bool) {
	m, ok := generic(v).(map[string]any)
	if !ok {
		return nil, false
	}
	val, ok := m[field]
	return val, ok
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// TagConfig is a tag in a config file. It is written either as a string,
// "users" for a category, "users:1" for one instance and "users:*" for every
// instance, or as an object {type, id}. An id of the form {field} is read
// from the result.
type TagConfig struct {
	Type   string `yaml:"type" json:"type"`
	ID     string `yaml:"id,omitempty" json:"id,omitempty"`
	Object bool   `yaml:"-" json:"-"`
}

// ParseTag parses the string form of a tag.
func ParseTag(s string) TagConfig {
	typ, id, ok := strings.Cut(s, ":")
	if !ok {
		return TagConfig{Type: s}
	}
	if id == "*" {
		id = ""
	}
	return TagConfig{Type: typ, ID: id, Object: true}
}

type tagObject struct {
	Type string `yaml:"type" json:"type"`
	ID   any    `yaml:"id,omitempty" json:"id,omitempty"`
}

func (t *TagConfig) fromObject(o tagObject) {
	*t = TagConfig{Type: o.Type, Object: true}
	if o.ID != nil {
		t.ID = formatValue(o.ID)
	}
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *TagConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*t = ParseTag(value.Value)
		return nil
	}
	var o tagObject
	if err := value.Decode(&o); err != nil {
		return err
	}
	t.fromObject(o)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *TagConfig) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = ParseTag(s)
		return nil
	}
	var o tagObject
	if err := json.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("tag must be a string or {type, id}: %w", err)
	}
	t.fromObject(o)
	return nil
}

// Tag resolves t against a result. A placeholder id that the result cannot
// fill widens the tag to every instance of its type.
func (t TagConfig) Tag(result any) query.Tag {
	if !t.Object {
		return query.StringTag(t.Type)
	}
	if t.ID == "" {
		return query.TypeTag(t.Type)
	}
	if field, ok := placeholder(t.ID); ok {
		v, found := lookup(result, field)
		if !found || v == nil {
			return query.TypeTag(t.Type)
		}
		return query.IDTag(t.Type, formatValue(v))
	}
	return query.IDTag(t.Type, t.ID)
}

func placeholder(s string) (string, bool) {
	if len(s) > 2 && s[0] == '{' && s[len(s)-1] == '}' {
		return s[1 : len(s)-1], true
	}
	return "", false
}

func tagsFrom(tags []TagConfig) query.Provides[any] {
	if len(tags) == 0 {
		return nil
	}
	return func(result any) []query.Tag {
		out := make([]query.Tag, len(tags))
		for i, t := range tags {
			out[i] = t.Tag(result)
		}
		return out
	}
}
