package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTag_Matches(t *testing.T) {
	tests := []struct {
		name       string
		invalidate Tag
		provided   Tag
		want       bool
	}{
		{"string equal", StringTag("users"), StringTag("users"), true},
		{"string differs", StringTag("users"), StringTag("posts"), false},
		{"id equal", IDTag("users", "1"), IDTag("users", "1"), true},
		{"type wildcard", TypeTag("users"), IDTag("users", "2"), true},
		{"type wildcard without id", TypeTag("users"), TypeTag("users"), true},
		{"id differs", IDTag("users", "1"), IDTag("users", "2"), false},
		{"id against bare type", IDTag("users", "1"), TypeTag("users"), false},
		{"type differs", TypeTag("users"), IDTag("posts", "1"), false},
		{"string against object", StringTag("users"), TypeTag("users"), false},
		{"object against string", TypeTag("users"), StringTag("users"), false},
		{"numeric id", IDTag("users", 1), IDTag("users", "1"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.invalidate.Matches(tt.provided))
		})
	}
}

func TestMatchesAny(t *testing.T) {
	provided := []Tag{IDTag("users", 1), StringTag("feed")}

	assert.True(t, MatchesAny([]Tag{StringTag("feed")}, provided))
	assert.True(t, MatchesAny([]Tag{StringTag("x"), TypeTag("users")}, provided))
	assert.False(t, MatchesAny([]Tag{IDTag("users", 2)}, provided))
	assert.False(t, MatchesAny(nil, provided))
	assert.False(t, MatchesAny([]Tag{StringTag("feed")}, nil))
}

func TestTag_String(t *testing.T) {
	assert.Equal(t, "users", StringTag("users").String())
	assert.Equal(t, "users:1", IDTag("users", 1).String())
	assert.Equal(t, "users:*", TypeTag("users").String())
}

func TestTag_MarshalJSON(t *testing.T) {
	out, err := json.Marshal([]Tag{StringTag("feed"), IDTag("users", 7), TypeTag("posts")})
	require.NoError(t, err)
	assert.JSONEq(t, `["feed",{"type":"users","id":"7"},{"type":"posts"}]`, string(out))
}

func TestStaticTags_ReturnsCopy(t *testing.T) {
	p := StaticTags[int](StringTag("a"))
	first := p(0)
	first[0] = StringTag("mutated")

	assert.Equal(t, []Tag{StringTag("a")}, p(1))
}
