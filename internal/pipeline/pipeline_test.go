package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"

	"github.com/funvibe/matchgen/internal/cache"
	"github.com/funvibe/matchgen/internal/config"
)

// extract writes the files of a txtar archive into a fresh directory and
// returns it with the archive's want.* sections.
func extract(t *testing.T, name string) (string, map[string]string) {
	t.Helper()
	ar, err := txtar.ParseFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("reading %s: %v", name, err)
	}
	dir := t.TempDir()
	want := make(map[string]string)
	for _, f := range ar.Files {
		if strings.HasPrefix(f.Name, "want.") {
			want[f.Name] = string(f.Data)
			continue
		}
		path := filepath.Join(dir, f.Name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, f.Data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir, want
}

func loadProject(t *testing.T, dir string) *config.Project {
	t.Helper()
	p, err := config.LoadProject(filepath.Join(dir, "matchgen.yaml"))
	if err != nil {
		t.Fatalf("LoadProject: %v", err)
	}
	return p
}

func lines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func TestBuild(t *testing.T) {
	for _, name := range []string{"cons.txtar", "literal.txtar"} {
		t.Run(strings.TrimSuffix(name, ".txtar"), func(t *testing.T) {
			dir, want := extract(t, name)
			p := loadProject(t, dir)

			ctx := Build().Run(NewPipelineContext(context.Background(), p))
			for _, e := range ctx.Errors {
				t.Errorf("unexpected error: %v", e)
			}
			if !ctx.Written {
				t.Fatal("output not written")
			}
			if len(ctx.Functions) != len(p.Trees) {
				t.Errorf("functions got=%d, want=%d", len(ctx.Functions), len(p.Trees))
			}

			data, err := os.ReadFile(p.OutputPath())
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != ctx.Output {
				t.Error("written file differs from the emitted module")
			}
			for _, l := range lines(want["want.contains"]) {
				if !strings.Contains(ctx.Output, l) {
					t.Errorf("output lacks %q:\n%s", l, ctx.Output)
				}
			}
		})
	}
}

func TestErrorsFromEveryStage(t *testing.T) {
	dir, want := extract(t, "errors.txtar")
	p := loadProject(t, dir)

	ctx := Build().Run(NewPipelineContext(context.Background(), p))
	msgs := make([]string, len(ctx.Errors))
	for i, e := range ctx.Errors {
		msgs[i] = e.Error()
	}
	all := strings.Join(msgs, "\n")

	for _, l := range lines(want["want.errors"]) {
		if !strings.Contains(all, l) {
			t.Errorf("errors lack %q:\n%s", l, all)
		}
	}
	if len(ctx.Errors) != 5 {
		t.Errorf("errors got=%d, want=5:\n%s", len(ctx.Errors), all)
	}
	if ctx.Module != nil || ctx.Written {
		t.Error("lowering must not run after validation errors")
	}
	if _, err := os.Stat(p.OutputPath()); !os.IsNotExist(err) {
		t.Errorf("output file exists: %v", err)
	}
}

func TestCheckDoesNotLower(t *testing.T) {
	dir, _ := extract(t, "cons.txtar")
	p := loadProject(t, dir)

	ctx := Check().Run(NewPipelineContext(context.Background(), p))
	if ctx.Failed() {
		t.Fatalf("errors: %v", ctx.Errors)
	}
	if len(ctx.Trees) != 1 || ctx.Module != nil || ctx.Output != "" {
		t.Errorf("trees=%d module=%v output=%q", len(ctx.Trees), ctx.Module, ctx.Output)
	}
}

func TestMissingDefinition(t *testing.T) {
	dir, _ := extract(t, "cons.txtar")
	os.Remove(filepath.Join(dir, "def.yaml"))
	p := loadProject(t, dir)

	ctx := Build().Run(NewPipelineContext(context.Background(), p))
	if len(ctx.Errors) != 1 || ctx.Errors[0].Code != "D001" {
		t.Fatalf("errors = %v", ctx.Errors)
	}
	if ctx.Trees != nil {
		t.Error("trees loaded without a definition")
	}
}

func TestBuildUsesCache(t *testing.T) {
	dir, _ := extract(t, "cons.txtar")
	p := loadProject(t, dir)

	bg := context.Background()
	c, err := cache.Open(bg, filepath.Join(dir, ".matchgen", "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	run := func() *PipelineContext {
		ctx := NewPipelineContext(bg, p)
		ctx.Cache = c
		ctx = Build().Run(ctx)
		if ctx.Failed() {
			t.Fatalf("errors: %v", ctx.Errors)
		}
		return ctx
	}

	first := run()
	if first.CacheHit {
		t.Fatal("first build hit an empty cache")
	}
	os.Remove(p.OutputPath())

	second := run()
	if !second.CacheHit {
		t.Fatal("second build missed the cache")
	}
	if second.Key != first.Key || second.Output != first.Output {
		t.Error("cached output differs")
	}
	if second.Module != nil {
		t.Error("cache hit must skip lowering")
	}
	if data, err := os.ReadFile(p.OutputPath()); err != nil || string(data) != first.Output {
		t.Errorf("cached output not written: %v", err)
	}

	// Changing a tree changes the key.
	tree := filepath.Join(dir, "trees", "head2.yaml")
	data, _ := os.ReadFile(tree)
	os.WriteFile(tree, []byte(strings.Replace(string(data), "apply_rule_1", "apply_rule_2", 1)), 0o644)
	third := run()
	if third.CacheHit || third.Key == first.Key {
		t.Error("edited tree reused the cached module")
	}
	if !strings.Contains(third.Output, "@apply_rule_2") {
		t.Error("edited tree not lowered")
	}
}
