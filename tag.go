package query

import (
	"encoding/json"
	"fmt"
)

// Tag labels cached query results for invalidation. A tag is either a bare
// string (a category) or a {type, id} pair (an instance). The zero Tag is the
// empty string tag.
type Tag struct {
	Type   string
	ID     string
	object bool
	hasID  bool
}

// StringTag creates a category tag.
func StringTag(name string) Tag {
	return Tag{Type: name}
}

// TypeTag creates an object tag without an id. As an invalidation tag it
// matches every object tag of the same type.
func TypeTag(typ string) Tag {
	return Tag{Type: typ, object: true}
}

// IDTag creates an object tag for one instance. The id is formatted with
// fmt.Sprint so IDTag("users", 1) equals IDTag("users", "1").
func IDTag(typ string, id any) Tag {
	return Tag{Type: typ, ID: fmt.Sprint(id), object: true, hasID: true}
}

// IsObject reports whether t is a {type, id} tag.
func (t Tag) IsObject() bool {
	return t.object
}

// HasID reports whether t carries an id.
func (t Tag) HasID() bool {
	return t.hasID
}

// Matches reports whether t, used as an invalidation tag, matches the
// provided tag. String and object tags never match each other.
func (t Tag) Matches(provided Tag) bool {
	if t.object != provided.object {
		return false
	}
	if t.Type != provided.Type {
		return false
	}
	if !t.object || !t.hasID {
		return true
	}
	return provided.hasID && provided.ID == t.ID
}

// String renders "users", "users:1" or "users:*".
func (t Tag) String() string {
	switch {
	case !t.object:
		return t.Type
	case t.hasID:
		return t.Type + ":" + t.ID
	default:
		return t.Type + ":*"
	}
}

// MarshalJSON encodes string tags as JSON strings and object tags as
// {"type": ..., "id": ...}.
func (t Tag) MarshalJSON() ([]byte, error) {
	if !t.object {
		return json.Marshal(t.Type)
	}
	obj := struct {
		Type string `json:"type"`
		ID   string `json:"id,omitempty"`
	}{Type: t.Type}
	if t.hasID {
		obj.ID = t.ID
	}
	return json.Marshal(obj)
}

// MatchesAny reports whether any invalidation tag matches any provided tag.
func MatchesAny(invalidate, provided []Tag) bool {
	for _, inv := range invalidate {
		for _, p := range provided {
			if inv.Matches(p) {
				return true
			}
		}
	}
	return false
}

// Provides computes tags from a result.
type Provides[R any] func(result R) []Tag

// StaticTags returns a Provides that ignores the result.
func StaticTags[R any](tags ...Tag) Provides[R] {
	return func(R) []Tag {
		out := make([]Tag, len(tags))
		copy(out, tags)
		return out
	}
}
