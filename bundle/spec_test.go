package bundle

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidate(t *testing.T) {
	base := BuildSpec{Name: "midigen", EntryPoint: "main.py"}

	if err := base.Validate(); err != nil {
		t.Errorf("valid spec rejected: %s", err)
	}

	noName := base
	noName.Name = ""
	if err := noName.Validate(); err == nil {
		t.Error("spec without name accepted")
	}

	noEntry := base
	noEntry.EntryPoint = ""
	if err := noEntry.Validate(); err == nil {
		t.Error("spec without entry point accepted")
	}

	badArch := base
	badArch.TargetArch = "mips"
	if err := badArch.Validate(); err == nil {
		t.Error("unknown arch accepted")
	}

	escape := base
	escape.Datas = []Data{{Src: "x.png", Dest: "../outside.png"}}
	if err := escape.Validate(); err == nil {
		t.Error("dest escaping the bundle accepted")
	}

	absDest := base
	absDest.Datas = []Data{{Src: "x.png", Dest: "/etc/x.png"}}
	if err := absDest.Validate(); err == nil {
		t.Error("absolute dest accepted")
	}

	dup := base
	dup.Datas = []Data{
		{Src: "a.png", Dest: "img.png"},
		{Src: "b.png", Dest: "img.png"},
	}
	if err := dup.Validate(); err == nil {
		t.Error("duplicate dest accepted")
	}

	badHook := base
	badHook.Hooks = []Hook{{CommandLine: "true", Stage: "during"}}
	if err := badHook.Validate(); err == nil {
		t.Error("unknown hook stage accepted")
	}
}

func TestValidateAllArchs(t *testing.T) {
	for _, arch := range []TargetArch{ArchNative, ArchX8664, ArchArm64, ArchUniversal2} {
		spec := BuildSpec{Name: "midigen", EntryPoint: "main.py", TargetArch: arch}
		if err := spec.Validate(); err != nil {
			t.Errorf("arch %q rejected: %s", arch, err)
		}
	}
}

// Flipping the target architecture must leave every other spec field as
// it was.
func TestArchIsolated(t *testing.T) {
	mk := func(arch TargetArch) BuildSpec {
		return BuildSpec{
			Name:       "midigen",
			Version:    "1.1.2",
			EntryPoint: "main.py",
			Strip:      true,
			UPX:        true,
			Console:    false,
			TargetArch: arch,
			Datas:      []Data{{Src: "icon.png", Optional: true}},
		}
	}
	a := mk(ArchNative)
	b := mk(ArchUniversal2)

	b.TargetArch = a.TargetArch
	aj, _ := yamlRoundTrip(a)
	bj, _ := yamlRoundTrip(b)
	if aj != bj {
		t.Errorf("specs differ beyond the arch field:\n%s\n%s", aj, bj)
	}
}

func TestArchLabel(t *testing.T) {
	spec := BuildSpec{Name: "x", EntryPoint: "x", TargetArch: ArchNative}
	if got := spec.Arch("arm64"); got != "arm64" {
		t.Errorf("native arch = %s", got)
	}
	spec.TargetArch = ArchX8664
	if got := spec.Arch("arm64"); got != "x86_64" {
		t.Errorf("explicit arch = %s", got)
	}
}

func TestResolveBaseDirAbsolute(t *testing.T) {
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(orig)

	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	for _, in := range []string{"", ".", "sub/dir", dir} {
		got, err := ResolveBaseDir(in)
		if err != nil {
			t.Fatalf("ResolveBaseDir(%q): %s", in, err)
		}
		if !filepath.IsAbs(got) {
			t.Errorf("ResolveBaseDir(%q) = %q, not absolute", in, got)
		}
	}
}
