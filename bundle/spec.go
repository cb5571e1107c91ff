package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TargetArch selects the CPU instruction set the produced bundle is
// marked for. The empty value means the build host's native arch.
type TargetArch string

const (
	ArchNative     TargetArch = ""
	ArchX8664      TargetArch = "x86_64"
	ArchArm64      TargetArch = "arm64"
	ArchUniversal2 TargetArch = "universal2"
)

func (t TargetArch) Valid() bool {
	switch t {
	case ArchNative, ArchX8664, ArchArm64, ArchUniversal2:
		return true
	}
	return false
}

// Data maps a source file into the bundle. Dest is a path relative to
// the bundle root; when empty the source base name is used. Optional
// entries are silently dropped when the source file is missing at
// build time.
type Data struct {
	Src      string `json:"src"`
	Dest     string `json:"dest,omitempty"`
	Optional bool   `json:"optional,omitempty"`
}

// Hook is a user supplied command run before or after collection.
// The command line is a handlebars template, see pipeline.HookParams.
type Hook struct {
	Name        string   `json:"name,omitempty"`
	CommandLine string   `json:"commandLine"`
	Stage       string   `json:"stage,omitempty"`
	Outputs     []string `json:"outputs,omitempty"`
}

const (
	HookStagePre  = "pre"
	HookStagePost = "post"
)

type BuildSpec struct {
	Name       string `json:"name"`
	Version    string `json:"version,omitempty"`
	EntryPoint string `json:"entryPoint"`
	Datas      []Data `json:"datas,omitempty"`
	Hooks      []Hook `json:"hooks,omitempty"`

	Console          bool       `json:"console,omitempty"`
	Debug            bool       `json:"debug,omitempty"`
	Strip            bool       `json:"strip,omitempty"`
	UPX              bool       `json:"upx,omitempty"`
	OneFile          bool       `json:"oneFile,omitempty"`
	DisableTraceback bool       `json:"disableTraceback,omitempty"`
	IgnoreSignals    bool       `json:"ignoreSignals,omitempty"`
	ArgvEmulation    bool       `json:"argvEmulation,omitempty"`
	TargetArch       TargetArch `json:"targetArch,omitempty"`
	CodesignIdentity string     `json:"codesignIdentity,omitempty"`
	EntitlementsFile string     `json:"entitlementsFile,omitempty"`
	BundleIdentifier string     `json:"bundleIdentifier,omitempty"`
	Icon             string     `json:"icon,omitempty"`

	// BaseDir anchors all relative paths in the spec. Set by the
	// loader, never by the spec author directly.
	BaseDir string `json:"-"`
}

// ResolveBaseDir turns dir into an absolute path. An empty dir means
// the invoking working directory. The result is absolute no matter
// where the tool was started from.
func ResolveBaseDir(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		dir = wd
	}
	return filepath.Abs(dir)
}

func (bs *BuildSpec) Validate() error {
	if bs.Name == "" {
		return fmt.Errorf("bundle spec has no name")
	}
	if bs.EntryPoint == "" {
		return fmt.Errorf("bundle spec %s has no entry point", bs.Name)
	}
	if !bs.TargetArch.Valid() {
		return fmt.Errorf("unknown target arch: %s", bs.TargetArch)
	}
	for _, h := range bs.Hooks {
		if h.Stage != "" && h.Stage != HookStagePre && h.Stage != HookStagePost {
			return fmt.Errorf("hook %s: unknown stage %s", h.Name, h.Stage)
		}
	}
	seen := map[string]string{}
	for _, d := range bs.Datas {
		if d.Src == "" {
			return fmt.Errorf("data entry with empty src")
		}
		dest := d.Dest
		if dest == "" {
			dest = filepath.Base(d.Src)
		}
		if filepath.IsAbs(dest) {
			return fmt.Errorf("data dest must be relative: %s", dest)
		}
		if escapesBundle(dest) {
			return fmt.Errorf("data dest escapes the bundle: %s", dest)
		}
		if prev, ok := seen[dest]; ok && prev != d.Src {
			return fmt.Errorf("data dest %s claimed by both %s and %s", dest, prev, d.Src)
		}
		seen[dest] = d.Src
	}
	return nil
}

// Arch reports the effective architecture label, using the build
// host's value for native builds.
func (bs *BuildSpec) Arch(hostArch string) string {
	if bs.TargetArch == ArchNative {
		return hostArch
	}
	return string(bs.TargetArch)
}

func escapesBundle(dest string) bool {
	clean := filepath.Clean(dest)
	return clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator))
}
