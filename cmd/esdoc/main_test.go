package main

import (
	"context"
	"strings"
	"testing"

	"github.com/leonunix/esdoc/internal/service"
)

func TestBuildParams(t *testing.T) {
	p, err := buildParams(`{"team":"a","age":{"$gt":3}}`, "name, age", "name,-age", 10, 5)
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}
	if p.Query.Len() != 2 {
		t.Errorf("query keys = %d, want 2", p.Query.Len())
	}
	if strings.Join(p.Select, ",") != "name,age" {
		t.Errorf("select = %v", p.Select)
	}
	want := []service.SortField{{Field: "name"}, {Field: "age", Desc: true}}
	if len(p.Sort) != 2 || p.Sort[0] != want[0] || p.Sort[1] != want[1] {
		t.Errorf("sort = %+v, want %+v", p.Sort, want)
	}
	if p.Limit == nil || *p.Limit != 10 || p.Skip != 5 {
		t.Errorf("limit/skip = %v/%d", p.Limit, p.Skip)
	}
}

func TestBuildParams_Defaults(t *testing.T) {
	p, err := buildParams("", "", "", -1, 0)
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}
	if p.Query != nil || p.Select != nil || p.Sort != nil || p.Limit != nil {
		t.Errorf("expected zero params, got %+v", p)
	}
}

func TestBuildParams_InvalidQuery(t *testing.T) {
	if _, err := buildParams(`[1,2]`, "", "", -1, 0); err == nil {
		t.Fatal("expected error for a non-object query")
	}
}

func TestCommand_InputErrors(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		args []string
		data string
	}{
		{"get without id", []string{"get"}, ""},
		{"update without id", []string{"update"}, `{}`},
		{"create without data", []string{"create"}, ""},
		{"create with scalar", []string{"create"}, `42`},
		{"create with array of scalars", []string{"create"}, `[1]`},
		{"patch with array", []string{"patch", "1"}, `[{}]`},
		{"raw without method", []string{"raw"}, ""},
		{"unknown", []string{"frobnicate"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := command{data: tt.data, stdin: strings.NewReader("")}
			if _, err := c.run(ctx, tt.args); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestCommand_ReadsStdin(t *testing.T) {
	c := command{data: "-", stdin: strings.NewReader(`{"name":"Ann"}`)}
	m, err := c.object()
	if err != nil {
		t.Fatalf("object: %v", err)
	}
	if m["name"] != "Ann" {
		t.Errorf("unexpected payload %v", m)
	}
}
