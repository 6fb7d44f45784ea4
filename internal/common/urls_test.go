package common

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Run("AcceptsAbsoluteHTTP", func(t *testing.T) {
		canonical, key, ok := NormalizeURL("https://Example.COM/Path?x=1")
		require.True(t, ok)
		assert.Equal(t, "https://example.com/Path?x=1", canonical)
		assert.Equal(t, "https://example.com/path?x=1", key)
	})

	t.Run("StripsFragment", func(t *testing.T) {
		canonical, _, ok := NormalizeURL("https://example.com/page#section")
		require.True(t, ok)
		assert.Equal(t, "https://example.com/page", canonical)
	})

	t.Run("TrimsWhitespace", func(t *testing.T) {
		canonical, _, ok := NormalizeURL("  https://example.com/a  ")
		require.True(t, ok)
		assert.Equal(t, "https://example.com/a", canonical)
	})

	t.Run("KeysMatchCaseInsensitively", func(t *testing.T) {
		_, key1, ok1 := NormalizeURL("https://example.com/Docs")
		_, key2, ok2 := NormalizeURL("HTTPS://EXAMPLE.COM/DOCS")
		require.True(t, ok1)
		require.True(t, ok2)
		assert.Equal(t, key1, key2)
	})

	t.Run("Rejects", func(t *testing.T) {
		for _, raw := range []string{
			"",
			"   ",
			"not a url",
			"/relative/only",
			"example.com/no-scheme",
			"ftp://example.com/file",
			"javascript:void(0)",
			"mailto:someone@example.com",
		} {
			_, _, ok := NormalizeURL(raw)
			assert.False(t, ok, "expected %q rejected", raw)
		}
	})
}

func TestSameOrigin(t *testing.T) {
	parse := func(raw string) *url.URL {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		return u
	}

	assert.True(t, SameOrigin(parse("https://example.com/a"), parse("https://EXAMPLE.com/b")))
	assert.False(t, SameOrigin(parse("https://example.com/a"), parse("http://example.com/a")))
	assert.False(t, SameOrigin(parse("https://example.com/a"), parse("https://other.test/a")))
	assert.False(t, SameOrigin(parse("/relative"), parse("/relative")))
}
