package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_RoundTrip(t *testing.T) {
	r := NewResolver("uploads/", "data")

	public := r.ToPublic(filepath.Join("data", "abc.png"))
	assert.Equal(t, "/uploads/abc.png", public)

	got, err := r.ToStorage(public)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("data", "abc.png"), got)
}

func TestResolver_StripsQueryAndTraversal(t *testing.T) {
	r := NewResolver("/uploads", "data")

	cases := map[string]string{
		"/uploads/abc.png?v=2":           "abc.png",
		"/uploads/abc.png#frag":          "abc.png",
		"/uploads/../../etc/passwd":      "passwd",
		`\uploads\..\secret.jpg`:         "secret.jpg",
		"abc.png":                        "abc.png",
		"/uploads/nested/../../x.gif":    "x.gif",
	}
	for in, want := range cases {
		name, err := r.Name(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, name, in)
	}
}

func TestResolver_RejectsUnnamedReferences(t *testing.T) {
	r := NewResolver("/uploads", "data")

	for _, in := range []string{"", "/", "/uploads/..", "..", "/uploads/.hidden", "?x=1"} {
		_, err := r.ToStorage(in)
		assert.True(t, errors.Is(err, ErrInvalidReference), "expected %q to be rejected", in)
	}
}

func TestCleanExtension(t *testing.T) {
	assert.Equal(t, ".png", cleanExtension(".PNG", "image/png"))
	assert.Equal(t, ".jpg", cleanExtension("jpg", ""))
	assert.Equal(t, ".png", cleanExtension(".p/n", "image/png"))
	assert.Equal(t, "", cleanExtension("", ""))
	assert.Equal(t, ".png", cleanExtension(".html", "image/png"))
	assert.Equal(t, ".jpg", cleanExtension(".jpeg", "image/jpeg"))
	assert.Equal(t, "", cleanExtension(".html", ""))
	assert.Equal(t, "", cleanExtension(".exe", "application/x-msdownload"))
}

func TestServedType(t *testing.T) {
	assert.Equal(t, "image/webp", ServedType("image/webp"))
	assert.Equal(t, "application/octet-stream", ServedType("text/html; charset=utf-8"))
	assert.Equal(t, "application/octet-stream", ServedType(""))
}
