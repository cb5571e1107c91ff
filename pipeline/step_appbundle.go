package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/bmeg/flame"

	"github.com/balebuild/bale/bundle"
	"github.com/balebuild/bale/logger"
	"github.com/balebuild/bale/util"
)

var infoPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple Computer//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>CFBundleName</key>
	<string>{{.Name}}</string>
	<key>CFBundleDisplayName</key>
	<string>{{.Name}}</string>
	<key>CFBundleExecutable</key>
	<string>{{.Name}}</string>
	<key>CFBundlePackageType</key>
	<string>APPL</string>
{{- if .Version}}
	<key>CFBundleShortVersionString</key>
	<string>{{.Version}}</string>
{{- end}}
{{- if .BundleIdentifier}}
	<key>CFBundleIdentifier</key>
	<string>{{.BundleIdentifier}}</string>
{{- end}}
{{- if .Icon}}
	<key>CFBundleIconFile</key>
	<string>{{.IconName}}</string>
{{- end}}
	<key>NSHighResolutionCapable</key>
	<true/>
{{- if not .Console}}
	<key>LSBackgroundOnly</key>
	<false/>
{{- end}}
{{- if .Env}}
	<key>LSEnvironment</key>
	<dict>
{{- range $k, $v := .Env}}
		<key>{{$k}}</key>
		<string>{{$v}}</string>
{{- end}}
	</dict>
{{- end}}
</dict>
</plist>
`

// AppBundleStep wraps the collected dist directory into a macOS
// <name>.app bundle. Contents land under Contents/MacOS, mirroring how
// the bundled app resolves resources next to its executable.
type AppBundleStep struct {
	Pipeline *Pipeline
	Spec     *bundle.BuildSpec
	DistDir  string
	AppDir   string
}

type plistParams struct {
	Name             string
	Version          string
	BundleIdentifier string
	Icon             string
	IconName         string
	Console          bool
	Env              map[string]string
}

func (as *AppBundleStep) Process(key string, status []*Status) flame.KeyValue[string, *Status] {
	logger.Info("Step", "name", as.GetName())
	output, short := upstreamOrNew(key, status)
	if short != nil {
		logger.Info("Received upstream FAIL, skipping", "name", as.GetName())
		return *short
	}

	if output.DryRun {
		logger.Info("Would create app bundle", "app", as.AppDir)
		output.Status = STATUS_OK
		return flame.KeyValue[string, *Status]{Key: key, Value: output}
	}

	if err := as.build(); err != nil {
		logger.Error("App bundle failed", "app", as.AppDir, "error", err)
		logger.AddSummaryError("AppBundleFailed", "app", as.AppDir, "error", err)
		as.Pipeline.recordFail(as.GetName())
		output.Status = STATUS_FAIL
	} else {
		logger.Info("Created app bundle", "app", as.AppDir)
		output.Status = STATUS_OK
	}
	return flame.KeyValue[string, *Status]{Key: key, Value: output}
}

func (as *AppBundleStep) build() error {
	macOS := filepath.Join(as.AppDir, "Contents", "MacOS")
	resources := filepath.Join(as.AppDir, "Contents", "Resources")
	for _, d := range []string{macOS, resources} {
		if err := os.MkdirAll(d, 0777); err != nil {
			return err
		}
	}

	err := filepath.Walk(as.DistDir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(as.DistDir, path)
		if err != nil {
			return err
		}
		return util.CopyFile(path, filepath.Join(macOS, rel))
	})
	if err != nil {
		return err
	}

	params := plistParams{
		Name:             as.Spec.Name,
		Version:          as.Spec.Version,
		BundleIdentifier: as.Spec.BundleIdentifier,
		Icon:             as.Spec.Icon,
		Console:          as.Spec.Console,
		Env:              launcherEnv(as.Spec),
	}
	if as.Spec.Icon != "" {
		iconSrc := as.Spec.Icon
		if !filepath.IsAbs(iconSrc) {
			iconSrc = filepath.Join(as.Spec.BaseDir, iconSrc)
		}
		params.IconName = filepath.Base(iconSrc)
		if err := util.CopyFile(iconSrc, filepath.Join(resources, params.IconName)); err != nil {
			return err
		}
	}

	tmpl, err := template.New("plist").Parse(infoPlist)
	if err != nil {
		return err
	}
	buf := &strings.Builder{}
	if err := tmpl.Execute(buf, params); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(as.AppDir, "Contents", "Info.plist"), []byte(buf.String()), 0666)
}

// launcherEnv carries the bootloader-style flags into the bundle so
// the launcher can honor them at runtime.
func launcherEnv(spec *bundle.BuildSpec) map[string]string {
	env := map[string]string{}
	if spec.DisableTraceback {
		env["BALE_DISABLE_TRACEBACK"] = "1"
	}
	if spec.IgnoreSignals {
		env["BALE_IGNORE_SIGNALS"] = "1"
	}
	if spec.ArgvEmulation {
		env["BALE_ARGV_EMULATION"] = "1"
	}
	if spec.Debug {
		env["BALE_DEBUG"] = "1"
	}
	if spec.TargetArch != bundle.ArchNative {
		env["BALE_TARGET_ARCH"] = string(spec.TargetArch)
	}
	if len(env) == 0 {
		return nil
	}
	return env
}

func (as *AppBundleStep) GetName() string {
	return "appbundle"
}

func (as *AppBundleStep) GetInputs() map[string]Artifact {
	return map[string]Artifact{"dist": {BaseDir: "", RelPath: as.DistDir}}
}

func (as *AppBundleStep) GetOutputs() map[string]Artifact {
	return map[string]Artifact{
		"plist": {BaseDir: as.AppDir, RelPath: filepath.Join("Contents", "Info.plist")},
	}
}

func (as *AppBundleStep) GetDesc() string {
	return fmt.Sprintf("appbundle: %s", as.AppDir)
}
