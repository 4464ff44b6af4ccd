package parser

import (
	"context"
	"testing"
)

func parseSource(t *testing.T, source string) *Result {
	t.Helper()
	p := New()
	return p.Parse(context.Background(), "test.py", []byte(source))
}

func findSymbol(res *Result, qualified string) *Symbol {
	for i := range res.Symbols {
		if res.Symbols[i].QualifiedName == qualified {
			return &res.Symbols[i]
		}
	}
	return nil
}

func TestParseSymbols(t *testing.T) {
	src := `class Outer:
    def method(self):
        return 1

    class Inner:
        def deep(self):
            pass

def top(a, b: int) -> str:
    return "x"

async def fetch(url):
    pass
`
	res := parseSource(t, src)
	if res.ParseError != "" {
		t.Fatalf("unexpected parse error: %s", res.ParseError)
	}

	cases := []struct {
		qualified string
		kind      string
	}{
		{"Outer", KindClass},
		{"Outer.method", KindFunction},
		{"Outer.Inner", KindClass},
		{"Outer.Inner.deep", KindFunction},
		{"top", KindFunction},
		{"fetch", KindAsyncFunction},
	}
	for _, tc := range cases {
		sym := findSymbol(res, tc.qualified)
		if sym == nil {
			t.Errorf("missing symbol %q", tc.qualified)
			continue
		}
		if sym.Kind != tc.kind {
			t.Errorf("%s kind = %q, want %q", tc.qualified, sym.Kind, tc.kind)
		}
	}

	top := findSymbol(res, "top")
	if top == nil {
		t.Fatal("missing top")
	}
	if top.Signature != "def top(a, b: int) -> str" {
		t.Errorf("signature = %q", top.Signature)
	}
	if top.StartLine != 9 {
		t.Errorf("top StartLine = %d, want 9", top.StartLine)
	}

	fetch := findSymbol(res, "fetch")
	if fetch.Signature != "async def fetch(url)" {
		t.Errorf("fetch signature = %q", fetch.Signature)
	}
}

func TestParseClassSignature(t *testing.T) {
	res := parseSource(t, "class Handler(Base, mixin.Loggable):\n    pass\n")
	sym := findSymbol(res, "Handler")
	if sym == nil {
		t.Fatal("missing Handler")
	}
	if sym.Signature != "class Handler(Base, mixin.Loggable)" {
		t.Errorf("signature = %q", sym.Signature)
	}

	res = parseSource(t, "class Plain:\n    pass\n")
	if sym := findSymbol(res, "Plain"); sym == nil || sym.Signature != "class Plain" {
		t.Errorf("plain class signature wrong: %+v", sym)
	}
}

func TestParseImports(t *testing.T) {
	src := `import os
import a.b
import a.b as ab
from x.y import z
from x.y import z as zz
from pkg import *
from . import sibling
from .rel import thing
`
	res := parseSource(t, src)
	if res.ParseError != "" {
		t.Fatalf("unexpected parse error: %s", res.ParseError)
	}

	want := []string{"a.b", "os", "pkg", "rel.thing", "sibling", "x.y.z"}
	if len(res.Imports) != len(want) {
		t.Fatalf("imports = %v, want %v", res.Imports, want)
	}
	for i, module := range want {
		if res.Imports[i] != module {
			t.Errorf("imports[%d] = %q, want %q", i, res.Imports[i], module)
		}
	}
}

func TestParseCalls(t *testing.T) {
	src := `import helpers

setup()

class Service:
    def run(self):
        helpers.process()
        self.finish()

def main():
    svc = Service()
    svc.run()
`
	res := parseSource(t, src)
	if res.ParseError != "" {
		t.Fatalf("unexpected parse error: %s", res.ParseError)
	}

	type key struct{ caller, callee string }
	got := make(map[key]bool)
	for _, call := range res.Calls {
		got[key{call.Caller, call.CalleeName}] = true
	}

	want := []key{
		{ModuleScope, "setup"},
		{"Service.run", "process"},
		{"Service.run", "finish"},
		{"main", "Service"},
		{"main", "run"},
	}
	for _, k := range want {
		if !got[k] {
			t.Errorf("missing call %s -> %s (have %v)", k.caller, k.callee, res.Calls)
		}
	}
}

func TestParseNestedCallExpression(t *testing.T) {
	res := parseSource(t, "result = outer(inner(1))\n")
	names := make(map[string]bool)
	for _, call := range res.Calls {
		names[call.CalleeName] = true
		if call.Caller != ModuleScope {
			t.Errorf("caller = %q, want %q", call.Caller, ModuleScope)
		}
	}
	if !names["outer"] || !names["inner"] {
		t.Errorf("calls = %v, want outer and inner", res.Calls)
	}
}

func TestParseSyntaxError(t *testing.T) {
	res := parseSource(t, "def broken(:\n    pass\n")
	if res.ParseError == "" {
		t.Fatal("expected parse error")
	}
	if len(res.Symbols) != 0 || len(res.Imports) != 0 || len(res.Calls) != 0 {
		t.Errorf("expected empty facts on parse error, got %+v", res)
	}
}

func TestParseEmptyFile(t *testing.T) {
	res := parseSource(t, "")
	if res.ParseError != "" {
		t.Errorf("empty file should parse: %s", res.ParseError)
	}
	if len(res.Symbols) != 0 {
		t.Errorf("symbols = %v, want none", res.Symbols)
	}
}

func TestImportsDeduplicated(t *testing.T) {
	src := `import os
import os
from os import path
`
	res := parseSource(t, src)
	count := 0
	for _, imp := range res.Imports {
		if imp == "os" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("imports = %v, want os exactly once", res.Imports)
	}
}
