package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/balebuild/bale/bundle"
	"github.com/balebuild/bale/manifest"
	"github.com/balebuild/bale/runner"
)

func testSpec(t *testing.T, files map[string]string) *bundle.BuildSpec {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0666); err != nil {
			t.Fatal(err)
		}
	}
	return &bundle.BuildSpec{
		Name:       "midigen",
		Version:    "1.1.2",
		EntryPoint: "main.py",
		BaseDir:    dir,
	}
}

func testOptions() Options {
	return Options{
		Platform: "linux",
		Runner:   runner.NewSingleMachineRunner(2, 1024),
	}
}

func TestPrepLayout(t *testing.T) {
	spec := testSpec(t, map[string]string{"main.py": "entry"})
	spec.Strip = true
	spec.UPX = true
	spec.OneFile = true

	p, layout, err := Prep(spec, testOptions())
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"collect", "strip", "compress", "archive"} {
		if _, ok := p.Steps[name]; !ok {
			t.Errorf("missing step %s, have %v", name, stepNames(p))
		}
	}
	if _, ok := p.Steps["appbundle"]; ok {
		t.Error("appbundle step present on linux build")
	}
	if !filepath.IsAbs(layout.DistDir) {
		t.Errorf("dist dir not absolute: %s", layout.DistDir)
	}
	if filepath.Base(layout.ArchivePath) != "midigen-1.1.2.zip" {
		t.Errorf("archive = %s", layout.ArchivePath)
	}
}

func TestPrepDarwinLayout(t *testing.T) {
	spec := testSpec(t, map[string]string{"main.py": "entry"})
	spec.CodesignIdentity = "Developer ID Application: Example"

	opts := testOptions()
	opts.Platform = "darwin"
	p, layout, err := Prep(spec, opts)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.Steps["appbundle"]; !ok {
		t.Errorf("appbundle step missing, have %v", stepNames(p))
	}
	if _, ok := p.Steps["codesign"]; !ok {
		t.Errorf("codesign step missing, have %v", stepNames(p))
	}
	if filepath.Base(layout.AppDir) != "midigen.app" {
		t.Errorf("app dir = %s", layout.AppDir)
	}
	// codesign waits for the assembled .app
	deps := p.DepMap["codesign"]
	if len(deps) != 1 || deps[0] != "appbundle" {
		t.Errorf("codesign deps = %v", deps)
	}
}

func TestRunCollect(t *testing.T) {
	spec := testSpec(t, map[string]string{
		"main.py":      "entry",
		"app_icon.png": "png",
	})
	spec.Datas = []bundle.Data{
		{Src: "app_icon.png", Optional: true},
		{Src: "missing.json", Optional: true},
	}

	p, layout, err := Prep(spec, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Run(false); err != nil {
		t.Fatal(err)
	}

	for _, f := range []string{
		filepath.Join(layout.DistDir, "midigen"),
		filepath.Join(layout.DistDir, "app_icon.png"),
		layout.ManifestPath,
	} {
		if _, err := os.Stat(f); err != nil {
			t.Errorf("missing output %s: %s", f, err)
		}
	}
	if _, err := os.Stat(filepath.Join(layout.DistDir, "missing.json")); err == nil {
		t.Error("absent optional resource was collected")
	}
}

func TestRunCollectIncremental(t *testing.T) {
	spec := testSpec(t, map[string]string{
		"main.py":      "entry",
		"app_icon.png": "png",
	})
	spec.Datas = []bundle.Data{{Src: "app_icon.png"}}

	build := func() *manifest.Manifest {
		t.Helper()
		p, layout, err := Prep(spec, testOptions())
		if err != nil {
			t.Fatal(err)
		}
		if err := p.Run(false); err != nil {
			t.Fatal(err)
		}
		m, err := manifest.Load(layout.ManifestPath)
		if err != nil {
			t.Fatal(err)
		}
		return m
	}

	first := build()
	if first.Summary.BuildID == "" {
		t.Fatal("first build has no build ID")
	}

	// unchanged tree: collect skips the copies and keeps the manifest
	second := build()
	if second.Summary.BuildID != first.Summary.BuildID {
		t.Error("unchanged tree rewrote the manifest")
	}

	iconPath := filepath.Join(spec.BaseDir, "app_icon.png")
	if err := os.WriteFile(iconPath, []byte("png v2"), 0666); err != nil {
		t.Fatal(err)
	}
	third := build()
	if third.Summary.BuildID == first.Summary.BuildID {
		t.Error("changed source did not produce a fresh build")
	}
	got, err := os.ReadFile(filepath.Join(spec.BaseDir, "dist", "midigen", "app_icon.png"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "png v2" {
		t.Errorf("dist copy = %q, want updated content", got)
	}
}

func TestRunDry(t *testing.T) {
	spec := testSpec(t, map[string]string{"main.py": "entry"})
	spec.OneFile = true

	p, layout, err := Prep(spec, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Run(true); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(layout.DistDir); err == nil {
		t.Error("dry run created the dist dir")
	}
	if _, err := os.Stat(layout.ArchivePath); err == nil {
		t.Error("dry run created the archive")
	}
}

func TestRunFailurePropagation(t *testing.T) {
	spec := testSpec(t, map[string]string{"other.py": "not the entry"})

	p, layout, err := Prep(spec, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Run(false); err == nil {
		t.Fatal("missing entry point did not fail the run")
	}
	if _, err := os.Stat(layout.DistDir); err == nil {
		t.Error("collect ran after upstream failure")
	}
}

func TestHookSkipWhenOutputsExist(t *testing.T) {
	spec := testSpec(t, map[string]string{
		"main.py":       "entry",
		"generated.txt": "already here",
	})
	// the command would fail, so the run only succeeds if the
	// existing output short-circuits it
	spec.Hooks = []bundle.Hook{{
		Name:        "generate",
		CommandLine: "false",
		Outputs:     []string{"generated.txt"},
	}}

	p, _, err := Prep(spec, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Run(false); err != nil {
		t.Fatalf("hook with current outputs ran anyway: %s", err)
	}
}

func TestRunHook(t *testing.T) {
	spec := testSpec(t, map[string]string{"main.py": "entry"})
	spec.Hooks = []bundle.Hook{{
		Name:        "generate",
		CommandLine: "touch {{name}}-generated.txt",
	}}

	p, layout, err := Prep(spec, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Run(false); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(layout.BaseDir, "midigen-generated.txt")); err != nil {
		t.Errorf("hook output missing: %s", err)
	}
}

func TestPipelineCycleRejected(t *testing.T) {
	p := New(runner.NewSingleMachineRunner(1, 64))
	a := &CommandStep{Pipeline: p, StepName: "a", CommandLine: "true"}
	b := &CommandStep{Pipeline: p, StepName: "b", CommandLine: "true"}
	if err := p.AddStep(a); err != nil {
		t.Fatal(err)
	}
	if err := p.AddStep(b); err != nil {
		t.Fatal(err)
	}
	p.AddDepends(a, b)
	p.AddDepends(b, a)
	if _, err := p.BuildFlame(); err == nil {
		t.Error("dependency cycle accepted")
	}
}

func TestDuplicateStepName(t *testing.T) {
	p := New(runner.NewSingleMachineRunner(1, 64))
	a := &CommandStep{Pipeline: p, StepName: "a", CommandLine: "true"}
	if err := p.AddStep(a); err != nil {
		t.Fatal(err)
	}
	if err := p.AddStep(&CommandStep{Pipeline: p, StepName: "a", CommandLine: "true"}); err == nil {
		t.Error("duplicate step name accepted")
	}
}

func stepNames(p *Pipeline) []string {
	out := []string{}
	for n := range p.Steps {
		out = append(out, n)
	}
	return out
}
