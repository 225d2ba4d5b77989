package template

import (
	"errors"
	"testing"

	"github.com/edgecomet/mcprt/pkg/types"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name     string
		tpl      string
		uri      string
		expected bool
	}{
		{"literal exact", "/users", "/users", true},
		{"literal mismatch", "/users", "/orders", false},
		{"string placeholder", "/users/{id}", "/users/abc", true},
		{"int placeholder match", "/users/{id:int}", "/users/42", true},
		{"int placeholder mismatch", "/users/{id:int}", "/users/abc", false},
		{"bool placeholder match", "/flags/{on:bool}", "/flags/true", true},
		{"bool placeholder mismatch", "/flags/{on:bool}", "/flags/yes", false},
		{"number placeholder match", "/price/{p:number}", "/price/19.99", true},
		{"pattern placeholder match", "/files/{name:pattern:img-*}", "/files/img-001.png", true},
		{"pattern placeholder mismatch", "/files/{name:pattern:img-*}", "/files/doc-001.pdf", false},
		{"optional placeholder present", "/search/{q?}", "/search/cats", true},
		{"optional placeholder absent", "/search/{q?}", "/search/", true},
		{"default placeholder absent", "/list/{page=1}", "/list/", true},
		{"malformed template never panics", "/users/{id", "/users/42", false},
		{"trailing garbage rejected", "/users/{id:int}", "/users/42/extra", false},
	}

	e := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Matches(tt.uri, tt.tpl)
			if got != tt.expected {
				t.Errorf("Matches(%q, %q) = %v, want %v", tt.uri, tt.tpl, got, tt.expected)
			}
		})
	}
}

func TestExtract(t *testing.T) {
	e := New(nil)

	binding, err := e.Extract("/users/42", "/users/{id:int}")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if binding["id"] != "42" {
		t.Errorf("binding[id] = %q, want %q", binding["id"], "42")
	}

	if _, err := e.Extract("/users/abc", "/users/{id:int}"); !errors.Is(err, types.ErrTypeMismatch) {
		t.Errorf("Extract type mismatch: got %v, want ErrTypeMismatch", err)
	}

	if _, err := e.Extract("/orders/1", "/users/{id}"); !errors.Is(err, types.ErrTemplateMismatch) {
		t.Errorf("Extract template mismatch: got %v, want ErrTemplateMismatch", err)
	}

	binding, err = e.Extract("/list/", "/list/{page=1}")
	if err != nil {
		t.Fatalf("Extract with default returned error: %v", err)
	}
	if binding["page"] != "1" {
		t.Errorf("binding[page] = %q, want default %q", binding["page"], "1")
	}
}

func TestExpandRoundTrip(t *testing.T) {
	e := New(nil)

	tpl := "/users/{id:int}/posts/{slug}"
	binding := types.Binding{"id": "42", "slug": "hello-world"}

	uri, err := e.Expand(tpl, binding)
	if err != nil {
		t.Fatalf("Expand returned error: %v", err)
	}

	want := "/users/42/posts/hello-world"
	if uri != want {
		t.Errorf("Expand = %q, want %q", uri, want)
	}

	extracted, err := e.Extract(uri, tpl)
	if err != nil {
		t.Fatalf("round-trip Extract returned error: %v", err)
	}
	for k, v := range binding {
		if extracted[k] != v {
			t.Errorf("round trip: extracted[%q] = %q, want %q", k, extracted[k], v)
		}
	}
}

func TestExpandMissingRequired(t *testing.T) {
	e := New(nil)

	_, err := e.Expand("/users/{id}", types.Binding{})
	if !errors.Is(err, types.ErrMissingRequiredParam) {
		t.Errorf("Expand missing required: got %v, want ErrMissingRequiredParam", err)
	}
}

func TestExpandOptionalAndDefault(t *testing.T) {
	e := New(nil)

	uri, err := e.Expand("/search/{q?}", types.Binding{})
	if err != nil {
		t.Fatalf("Expand optional returned error: %v", err)
	}
	if uri != "/search/" {
		t.Errorf("Expand optional = %q, want %q", uri, "/search/")
	}

	uri, err = e.Expand("/list/{page=1}", types.Binding{})
	if err != nil {
		t.Fatalf("Expand default returned error: %v", err)
	}
	if uri != "/list/1" {
		t.Errorf("Expand default = %q, want %q", uri, "/list/1")
	}
}

func TestCacheReusesCompiledForm(t *testing.T) {
	e := New(nil)
	tpl := "/users/{id:int}"

	e.Matches("/users/1", tpl)
	e.Matches("/users/2", tpl)

	if got := e.CacheLen(); got != 1 {
		t.Errorf("CacheLen() = %d, want 1", got)
	}
}

func TestSinglePatternWildcardMatchesEmptySuffix(t *testing.T) {
	e := New(nil)
	if !e.Matches("/files/img-", "/files/{name:pattern:img-*}") {
		t.Errorf("pattern placeholder should match with empty suffix after prefix")
	}
}
