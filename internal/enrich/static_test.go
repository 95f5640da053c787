package enrich

import (
	"context"
	"testing"
)

func itemSet(a *Analysis) map[string]string {
	out := make(map[string]string, len(a.Items))
	for _, item := range a.Items {
		out[item.Name] = item.Kind
	}
	return out
}

func TestStaticAnalyzer_Go(t *testing.T) {
	src := `package app

type Engine struct{}

func (e *Engine) Tick() {}

func New() *Engine { return &Engine{} }
`
	a := NewStaticAnalyzer()
	got, err := a.Analyze(context.Background(), "engine.go", src)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}

	items := itemSet(got)
	if items["New"] != "function" || items["Tick"] != "function" {
		t.Errorf("functions not extracted: %v", items)
	}
	if items["Engine"] != "class" {
		t.Errorf("type not extracted as class: %v", items)
	}
}

func TestStaticAnalyzer_Python(t *testing.T) {
	src := `class Parser:
    def parse(self):
        pass

def main():
    pass
`
	a := NewStaticAnalyzer()
	got, err := a.Analyze(context.Background(), "parser.py", src)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}

	items := itemSet(got)
	if items["Parser"] != "class" {
		t.Errorf("class not extracted: %v", items)
	}
	if items["main"] != "function" {
		t.Errorf("function not extracted: %v", items)
	}
}

func TestStaticAnalyzer_JavaScriptComponents(t *testing.T) {
	src := `function helper() {}

const App = () => null;

class Store {}
`
	a := NewStaticAnalyzer()
	got, err := a.Analyze(context.Background(), "app.jsx", src)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}

	items := itemSet(got)
	if items["helper"] != "function" {
		t.Errorf("plain function misclassified: %v", items)
	}
	if items["App"] != "component" {
		t.Errorf("uppercase arrow function not a component: %v", items)
	}
	if items["Store"] != "class" {
		t.Errorf("class not extracted: %v", items)
	}
}

func TestStaticAnalyzer_UnsupportedExtension(t *testing.T) {
	a := NewStaticAnalyzer()
	got, err := a.Analyze(context.Background(), "README.md", "# hello")
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if len(got.Items) != 0 {
		t.Errorf("items for unsupported type: %v", got.Items)
	}
	if got.Summary == "" {
		t.Error("empty summary for unsupported type")
	}
}

func TestLangForFile(t *testing.T) {
	tests := map[string]string{
		"main.go":   "go",
		"app.PY":    "python",
		"index.ts":  "javascript",
		"App.tsx":   "javascript",
		"mod.mjs":   "javascript",
		"style.css": "",
		"Makefile":  "",
	}
	for name, want := range tests {
		if got := langForFile(name); got != want {
			t.Errorf("langForFile(%q) = %q, want %q", name, got, want)
		}
	}
}
