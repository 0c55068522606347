package stategraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type label string

func (l label) String() string { return "label:" + string(l) }

func TestState_Accessors(t *testing.T) {
	s := State{
		"text":  "hello",
		"raw":   []byte("bytes"),
		"lbl":   label("x"),
		"num":   42,
		"list":  []any{"a", 2, "c"},
		"names": []string{"x", "y"},
	}

	assert.Equal(t, "hello", s.String("text"))
	assert.Equal(t, "bytes", s.String("raw"))
	assert.Equal(t, "label:x", s.String("lbl"))
	assert.Equal(t, "", s.String("num"))
	assert.Equal(t, "", s.String("missing"))

	assert.Equal(t, []string{"a", "2", "c"}, s.Strings("list"))
	assert.Equal(t, []string{"x", "y"}, s.Strings("names"))
	assert.Equal(t, []string{"hello"}, s.Strings("text"))
	assert.Nil(t, s.Strings("missing"))

	v, ok := s.Value("num")
	assert.True(t, ok)
	assert.Equal(t, 42, v)
	assert.True(t, s.Has("num"))
	assert.False(t, s.Has("missing"))

	assert.Equal(t, []string{"lbl", "list", "names", "num", "raw", "text"}, s.Keys())
}

func TestState_Clone(t *testing.T) {
	orig := State{"seq": []any{"a"}, "v": 1}
	cp := orig.Clone()

	cp["v"] = 2
	cp["seq"].([]any)[0] = "changed"

	assert.Equal(t, 1, orig["v"])
	assert.Equal(t, []any{"a"}, orig["seq"])
}

func TestState_CloneNil(t *testing.T) {
	var s State
	cp := s.Clone()
	assert.NotNil(t, cp)
	assert.Empty(t, cp)
}

func TestState_StringsCopiesSlice(t *testing.T) {
	names := []string{"x"}
	s := State{"names": names}
	got := s.Strings("names")
	got[0] = "changed"
	assert.Equal(t, "x", names[0])
}
