package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit3(t *testing.T) {
	tests := []struct {
		body string
		want []string
	}{
		{"4 label MyNewLabel", []string{"4", "label", "MyNewLabel"}},
		{"17 urls http://a http://b", []string{"17", "urls", "http://a http://b"}},
		{"17 url 1 http://123.com", []string{"17", "url", "1 http://123.com"}},
		{"4 label", []string{"4", "label"}},
		{"4", []string{"4"}},
		{"", []string{""}},
		{"4 label ", []string{"4", "label", ""}},
		{"4  label", []string{"4", "", "label"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Split3(tt.body), "body %q", tt.body)
	}
}

func TestSplit2(t *testing.T) {
	assert.Equal(t, []string{"1", "http://123.com"}, Split2("1 http://123.com"))
	assert.Equal(t, []string{"http://123.com"}, Split2("http://123.com"))
	assert.Equal(t, []string{"a", "b c"}, Split2("a b c"))
}

func TestSplitAll(t *testing.T) {
	assert.Equal(t, []string{"label1", "label2", "label3"}, SplitAll("label1 label2 label3"))
	assert.Equal(t, []string{"a", "", "b"}, SplitAll("a  b"))
}

func FuzzSplit3(f *testing.F) {
	f.Add("4 label MyNewLabel")
	f.Add("17 urls http://a http://b")
	f.Add("")
	f.Add("   ")
	f.Add("1 url 2 x y z")

	f.Fuzz(func(t *testing.T, body string) {
		parts := Split3(body)
		require.NotEmpty(t, parts)
		require.LessOrEqual(t, len(parts), 3)
		require.Equal(t, body, Join(parts...))
		for _, p := range parts[:len(parts)-1] {
			require.NotContains(t, p, BodySeparator)
		}
		if strings.Count(body, BodySeparator) >= 2 {
			require.Len(t, parts, 3)
		}
	})
}
