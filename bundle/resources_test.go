package bundle

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"sigs.k8s.io/yaml"
)

func yamlRoundTrip(s BuildSpec) (string, error) {
	b, err := yaml.Marshal(s)
	return string(b), err
}

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0666); err != nil {
			t.Fatal(err)
		}
	}
}

func TestOptionalResourceGating(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"main.py":      "entry",
		"app_icon.png": "png",
		"config.json":  "{}",
	})

	spec := &BuildSpec{
		Name:       "midigen",
		EntryPoint: "main.py",
		Datas: []Data{
			{Src: "app_icon.png", Optional: true},
			{Src: "config.json", Optional: true},
			{Src: "update_settings.json", Optional: true},
		},
	}

	got, err := ResolveResources(dir, spec)
	if err != nil {
		t.Fatal(err)
	}
	dests := []string{}
	for _, r := range got {
		dests = append(dests, r.Dest)
	}
	expected := []string{"app_icon.png", "config.json"}
	if !reflect.DeepEqual(dests, expected) {
		t.Errorf("dests = %v, expected %v", dests, expected)
	}

	// missing file becomes present after creation
	writeTree(t, dir, map[string]string{"update_settings.json": "{}"})
	got, err = ResolveResources(dir, spec)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("resource count = %d after creating file, expected 3", len(got))
	}
}

func TestRequiredResourceMissing(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"main.py": "entry"})

	spec := &BuildSpec{
		Name:       "midigen",
		EntryPoint: "main.py",
		Datas:      []Data{{Src: "app_icon.png"}},
	}
	if _, err := ResolveResources(dir, spec); err == nil {
		t.Error("missing required resource did not error")
	}
}

func TestResolveResourcesAbsoluteSources(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"data/notes.json": "{}"})

	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(orig)
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}

	spec := &BuildSpec{
		Name:       "midigen",
		EntryPoint: "main.py",
		Datas:      []Data{{Src: "data/notes.json", Dest: "notes.json"}},
	}
	got, err := ResolveResources(dir, spec)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("resource count = %d", len(got))
	}
	if !filepath.IsAbs(got[0].Src) {
		t.Errorf("src not absolute: %s", got[0].Src)
	}
}

func TestResolveResourcesDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"b.json": "{}",
		"a.json": "{}",
		"c.png":  "png",
	})

	spec := &BuildSpec{
		Name:       "midigen",
		EntryPoint: "main.py",
		Datas: []Data{
			{Src: "c.png"},
			{Src: "b.json"},
			{Src: "a.json"},
		},
	}

	first, err := ResolveResources(dir, spec)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := ResolveResources(dir, spec)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %v vs %v", i, first, again)
		}
	}
	if first[0].Dest != "a.json" || first[2].Dest != "c.png" {
		t.Errorf("resources not sorted by dest: %v", first)
	}
}

func TestDestTemplating(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"settings.json": "{}"})

	spec := &BuildSpec{
		Name:       "midigen",
		Version:    "1.1.2",
		EntryPoint: "main.py",
		Datas:      []Data{{Src: "settings.json", Dest: "conf/{{version}}/settings.json"}},
	}
	got, err := ResolveResources(dir, spec)
	if err != nil {
		t.Fatal(err)
	}
	expected := filepath.Join("conf", "1.1.2", "settings.json")
	if got[0].Dest != expected {
		t.Errorf("dest = %s, expected %s", got[0].Dest, expected)
	}
}
