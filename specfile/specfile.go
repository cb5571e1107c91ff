package specfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/balebuild/bale/bundle"
	"github.com/balebuild/bale/logger"
)

// SpecFile holds the state built up while a bundle spec script runs.
type SpecFile struct {
	Path    string
	Verbose bool

	spec *bundle.BuildSpec
}

// Spec is exposed to the script as bale.Spec({...}). It constructs the
// build spec from a plain object; unknown keys are ignored the way the
// script VM ignores them.
func (sf *SpecFile) Spec(data map[string]any) *bundle.BuildSpec {
	if sf.Verbose {
		logger.Debug("Spec", "data", data)
	}
	out := &bundle.BuildSpec{BaseDir: filepath.Dir(sf.Path)}

	out.Name = getString(data, "name")
	out.Version = getString(data, "version")
	out.EntryPoint = getString(data, "entryPoint")
	out.Console = getBool(data, "console")
	out.Debug = getBool(data, "debug")
	out.Strip = getBool(data, "strip")
	out.UPX = getBool(data, "upx")
	out.OneFile = getBool(data, "oneFile")
	out.DisableTraceback = getBool(data, "disableTraceback")
	out.IgnoreSignals = getBool(data, "ignoreSignals")
	out.ArgvEmulation = getBool(data, "argvEmulation")
	out.TargetArch = bundle.TargetArch(getString(data, "targetArch"))
	out.CodesignIdentity = getString(data, "codesignIdentity")
	out.EntitlementsFile = getString(data, "entitlementsFile")
	out.BundleIdentifier = getString(data, "bundleIdentifier")
	out.Icon = getString(data, "icon")

	if base, ok := data["baseDir"]; ok {
		if baseStr, ok := base.(string); ok {
			switch baseStr {
			case "spec", "":
				// default, directory holding the spec file
			case "cwd":
				wd, _ := os.Getwd()
				out.BaseDir = wd
			default:
				out.BaseDir = baseStr
			}
		}
	}

	if datas, ok := data["datas"]; ok {
		if list, ok := datas.([]any); ok {
			for _, item := range list {
				if d := asData(item); d != nil {
					out.Datas = append(out.Datas, *d)
				} else {
					logger.Error("Unknown data entry", "entry", item)
				}
			}
		}
	}

	if hooks, ok := data["hooks"]; ok {
		if list, ok := hooks.([]any); ok {
			for _, item := range list {
				if h := asHook(item); h != nil {
					out.Hooks = append(out.Hooks, *h)
				} else {
					logger.Error("Unknown hook entry", "entry", item)
				}
			}
		}
	}

	sf.spec = out
	return out
}

// Data is exposed as bale.Data({src, dest, optional}).
func (sf *SpecFile) Data(data map[string]any) *bundle.Data {
	return &bundle.Data{
		Src:      getString(data, "src"),
		Dest:     getString(data, "dest"),
		Optional: getBool(data, "optional"),
	}
}

// Hook is exposed as bale.Hook({name, commandLine, stage, outputs}).
func (sf *SpecFile) Hook(data map[string]any) *bundle.Hook {
	out := &bundle.Hook{
		Name:        getString(data, "name"),
		CommandLine: getString(data, "commandLine"),
		Stage:       getString(data, "stage"),
	}
	if outputs, ok := data["outputs"]; ok {
		if list, ok := outputs.([]any); ok {
			for _, o := range list {
				if s, ok := o.(string); ok {
					out.Outputs = append(out.Outputs, s)
				}
			}
		}
	}
	return out
}

// Env is exposed as bale.Env(name): the tool-provided-variable way of
// computing paths inside a spec.
func (sf *SpecFile) Env(name string) string {
	return os.Getenv(name)
}

func (sf *SpecFile) Glob(pattern string) []string {
	gp := filepath.Join(filepath.Dir(sf.Path), pattern)
	matches, _ := filepath.Glob(gp)
	return matches
}

func (sf *SpecFile) Print(x any) {
	fmt.Printf("%v", x)
}

func (sf *SpecFile) Println(x any) {
	fmt.Printf("%v\n", x)
}

func asData(item any) *bundle.Data {
	switch v := item.(type) {
	case *bundle.Data:
		return v
	case map[string]any:
		return &bundle.Data{
			Src:      getString(v, "src"),
			Dest:     getString(v, "dest"),
			Optional: getBool(v, "optional"),
		}
	}
	return nil
}

func asHook(item any) *bundle.Hook {
	switch v := item.(type) {
	case *bundle.Hook:
		return v
	case map[string]any:
		sf := SpecFile{}
		return sf.Hook(v)
	}
	return nil
}

func getString(data map[string]any, key string) string {
	if v, ok := data[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getBool(data map[string]any, key string) bool {
	if v, ok := data[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}
