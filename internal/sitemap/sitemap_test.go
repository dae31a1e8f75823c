package sitemap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestURL_ExactKeyBeatsFirstPage(t *testing.T) {
	m := New("https://example.com")
	m.Add("foo", &Entry{URL: "/foo/"})
	m.Add("foo.1", &Entry{URL: "/foo/page-one/"})

	require.Equal(t, "https://example.com/foo/", m.URL("foo"))
}

func TestURL_FallsBackToFirstPage(t *testing.T) {
	m := New("")
	m.Add("tags.rust.1", &Entry{URL: "/tags/rust/"})
	m.Add("tags.rust.2", &Entry{URL: "/tags/rust/2/"})

	require.Equal(t, "/tags/rust/", m.URL("tags", "rust"))
	require.Equal(t, "/tags/rust/2/", m.URL("tags.rust.2"))
}

func TestURL_Literals(t *testing.T) {
	m := New("https://example.com")
	require.Equal(t, "https://other.org/x", m.URL("https://other.org/x"))
	require.Equal(t, "https://example.com/static/app.css", m.URL("/static/app.css"))
	require.Equal(t, "", m.URL())
}

func TestURL_UnresolvedReportsAndReturnsEmpty(t *testing.T) {
	var seen []string
	m := New("")
	m.OnUnresolved = func(name string) { seen = append(seen, name) }

	require.Equal(t, "", m.URL("posts", "missing"))
	require.Equal(t, []string{"posts.missing"}, seen)
}

func TestMerge_LaterWinsAndKeepsPosition(t *testing.T) {
	a := New("")
	a.WarnCollisions = true
	a.Add("x", &Entry{URL: "/x/"})
	a.Add("y", &Entry{URL: "/y/"})

	b := New("")
	b.Add("x", &Entry{URL: "/x2/"})
	b.Add("z", &Entry{URL: "/z/"})

	a.Merge(b)
	require.Equal(t, []string{"x", "y", "z"}, a.Keys())
	e, ok := a.Get("x")
	require.True(t, ok)
	require.Equal(t, "/x2/", e.URL)
	require.Equal(t, "x", e.Key)
}

func TestIndex_ExactThenPatterns(t *testing.T) {
	m := New("")
	m.Add("about", &Entry{URL: "/about/"})
	m.Add("static", &Entry{URL: "/static/**"})
	m.Add("catch", &Entry{URL: "/*"})
	m.Add("home", &Entry{URL: "/"})
	ix := NewIndex(m)

	cases := map[string]string{
		"/":                 "home",
		"/about/":           "about",
		"/about":            "about",
		"/static/css/a.css": "static",
		"/robots.txt":       "catch",
		"":                  "home",
	}
	for p, want := range cases {
		key, ok := ix.Lookup(p)
		require.True(t, ok, p)
		require.Equal(t, want, key, p)
	}

	_, ok := ix.Lookup("/nested/missing/")
	require.False(t, ok)
	require.Equal(t, 4, ix.Len())
}

func TestIndex_PatternsMatchInRegistrationOrder(t *testing.T) {
	m := New("")
	m.Add("first", &Entry{URL: "/files/*"})
	m.Add("second", &Entry{URL: "/files/*.txt"})
	key, ok := NewIndex(m).Lookup("/files/a.txt")
	require.True(t, ok)
	require.Equal(t, "first", key)
}
