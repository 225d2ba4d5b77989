package router

import (
	"errors"
	"testing"

	"github.com/edgecomet/mcprt/internal/mcprt/template"
	"github.com/edgecomet/mcprt/pkg/types"
)

func TestMatchFirstWins(t *testing.T) {
	eng := template.New(nil)
	r := New(eng, nil, nil)

	r.Register(types.Route{Template: "/users/{id}", Name: "specific"})
	r.Register(types.Route{Template: "/users/{id:int}", Name: "typed"})

	route, binding, err := r.Match("/users/42")
	if err != nil {
		t.Fatalf("Match returned error: %v", err)
	}
	if route.Name != "specific" {
		t.Errorf("Match picked %q, want %q (first registered wins)", route.Name, "specific")
	}
	if binding["id"] != "42" {
		t.Errorf("binding[id] = %q, want %q", binding["id"], "42")
	}
}

func TestMatchNotFound(t *testing.T) {
	eng := template.New(nil)
	r := New(eng, nil, nil)
	r.Register(types.Route{Template: "/users/{id}", Name: "users"})

	_, _, err := r.Match("/orders/1")
	if !errors.Is(err, types.ErrResourceNotFound) {
		t.Errorf("Match = %v, want ErrResourceNotFound", err)
	}
}

func TestRoutesSnapshotIsIndependent(t *testing.T) {
	eng := template.New(nil)
	r := New(eng, nil, nil)
	r.Register(types.Route{Template: "/a", Name: "a"})

	snap := r.Routes()
	r.Register(types.Route{Template: "/b", Name: "b"})

	if len(snap) != 1 {
		t.Errorf("earlier snapshot mutated: len = %d, want 1", len(snap))
	}
	if len(r.Routes()) != 2 {
		t.Errorf("Routes() = %d, want 2", len(r.Routes()))
	}
}
