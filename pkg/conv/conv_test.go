package conv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToFloat64(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{1, 1, true},
		{int64(3), 3, true},
		{float32(0.5), 0.5, true},
		{"2.5", 2.5, true},
		{"x", 0, false},
		{true, 1, true},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := ToFloat64(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}

func TestConfigGetters(t *testing.T) {
	m := map[string]any{
		"name":    "diversity",
		"n":       float64(10),
		"limit":   "7",
		"artists": []any{"a1", 2, "a2"},
		"ids":     []string{"t1"},
	}
	assert.Equal(t, "diversity", ConfigGet(m, "name", ""))
	assert.Equal(t, "fallback", ConfigGet(m, "missing", "fallback"))
	assert.Equal(t, "fallback", ConfigGet(m, "n", "fallback"))

	assert.Equal(t, 10, ConfigGetInt(m, "n", 0))
	assert.Equal(t, 7, ConfigGetInt(m, "limit", 0))
	assert.Equal(t, 3, ConfigGetInt(m, "name", 3))

	assert.Equal(t, []string{"a1", "a2"}, ConfigGetStringSlice(m, "artists"))
	assert.Equal(t, []string{"t1"}, ConfigGetStringSlice(m, "ids"))
	assert.Nil(t, ConfigGetStringSlice(m, "n"))
}
