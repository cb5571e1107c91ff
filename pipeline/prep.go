package pipeline

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/balebuild/bale/bundle"
	"github.com/balebuild/bale/manifest"
	"github.com/balebuild/bale/runner"
	"github.com/balebuild/bale/util"
)

type Options struct {
	DistRoot string
	Platform string
	NCpus    uint
	MemMB    uint
	Image    string
	Runner   runner.CommandRunner
	Hash     manifest.Hasher
}

// Layout is where the build's artifacts land.
type Layout struct {
	BaseDir      string
	DistDir      string
	ExePath      string
	AppDir       string
	ArchivePath  string
	ManifestPath string
}

// Prep resolves the spec against the file tree and assembles the build
// pipeline: filecheck -> pre hooks -> collect -> strip -> compress ->
// appbundle -> codesign -> archive -> post hooks, with steps that the
// spec does not ask for left out.
func Prep(spec *bundle.BuildSpec, opts Options) (*Pipeline, *Layout, error) {
	if err := spec.Validate(); err != nil {
		return nil, nil, err
	}
	baseDir, err := bundle.ResolveBaseDir(spec.BaseDir)
	if err != nil {
		return nil, nil, err
	}

	if opts.Platform == "" {
		opts.Platform = runtime.GOOS
	}
	if opts.DistRoot == "" {
		opts.DistRoot = "dist"
	}
	if opts.NCpus == 0 {
		opts.NCpus = 1
	}
	if opts.MemMB == 0 {
		opts.MemMB = 1024
	}
	if opts.Runner == nil {
		opts.Runner = runner.NewSingleMachineRunner(uint(runtime.NumCPU()), 8192)
	}
	if opts.Hash == nil {
		opts.Hash = util.SHA256File
	}

	distRoot := opts.DistRoot
	if !filepath.IsAbs(distRoot) {
		distRoot = filepath.Join(baseDir, distRoot)
	}

	layout := &Layout{
		BaseDir:      baseDir,
		DistDir:      filepath.Join(distRoot, spec.Name),
		ManifestPath: filepath.Join(distRoot, spec.Name+".manifest.yaml"),
	}
	layout.ExePath = filepath.Join(layout.DistDir, spec.Name)

	entry := spec.EntryPoint
	if !filepath.IsAbs(entry) {
		entry = filepath.Join(baseDir, entry)
	}

	resources, err := bundle.ResolveResources(baseDir, spec)
	if err != nil {
		return nil, nil, err
	}
	files := append([]bundle.Resource{{
		Src:  entry,
		Dest: spec.Name,
		Size: util.FileSize(entry),
	}}, resources...)

	p := New(opts.Runner)

	entryCheck := &FileCheck{Pipeline: p, File: Artifact{RelPath: entry}}
	if err := p.AddStep(entryCheck); err != nil {
		return nil, nil, err
	}

	collect := &CollectStep{
		Pipeline:     p,
		Spec:         spec,
		Resources:    files,
		DistDir:      layout.DistDir,
		ManifestPath: layout.ManifestPath,
		Hash:         opts.Hash,
	}
	if err := p.AddStep(collect); err != nil {
		return nil, nil, err
	}
	p.AddDepends(collect, entryCheck)

	hookParams := spec.TemplateParams()
	hookParams["distDir"] = layout.DistDir
	hookParams["exe"] = layout.ExePath

	for i, h := range spec.Hooks {
		if h.Stage == bundle.HookStagePost {
			continue
		}
		hs, err := hookStep(p, spec, &opts, baseDir, h, i, hookParams)
		if err != nil {
			return nil, nil, err
		}
		p.AddDepends(collect, hs)
	}

	var last Step = collect

	if spec.Strip {
		strip := &CommandStep{
			Pipeline:    p,
			StepName:    "strip",
			BaseDir:     baseDir,
			CommandLine: "strip {{{exe}}}",
			Params:      map[string]any{"exe": layout.ExePath},
			Inputs:      map[string]Artifact{"exe": {RelPath: layout.ExePath}},
			NCpus:       opts.NCpus,
			MemMB:       opts.MemMB,
			Image:       opts.Image,
		}
		if err := p.AddStep(strip); err != nil {
			return nil, nil, err
		}
		p.AddDepends(strip, last)
		last = strip
	}

	if spec.UPX {
		compress := &CommandStep{
			Pipeline:    p,
			StepName:    "compress",
			BaseDir:     baseDir,
			CommandLine: "upx {{{exe}}}",
			Params:      map[string]any{"exe": layout.ExePath},
			Inputs:      map[string]Artifact{"exe": {RelPath: layout.ExePath}},
			NCpus:       opts.NCpus,
			MemMB:       opts.MemMB,
			Image:       opts.Image,
		}
		if err := p.AddStep(compress); err != nil {
			return nil, nil, err
		}
		p.AddDepends(compress, last)
		last = compress
	}

	signTarget := layout.ExePath
	if opts.Platform == "darwin" {
		layout.AppDir = filepath.Join(distRoot, spec.Name+".app")
		app := &AppBundleStep{
			Pipeline: p,
			Spec:     spec,
			DistDir:  layout.DistDir,
			AppDir:   layout.AppDir,
		}
		if err := p.AddStep(app); err != nil {
			return nil, nil, err
		}
		p.AddDepends(app, last)
		last = app
		signTarget = layout.AppDir
	}

	if spec.CodesignIdentity != "" {
		cmdLine := "codesign --force --sign {{{identity}}}"
		params := map[string]any{
			"identity": spec.CodesignIdentity,
			"target":   signTarget,
		}
		if spec.EntitlementsFile != "" {
			ent := spec.EntitlementsFile
			if !filepath.IsAbs(ent) {
				ent = filepath.Join(baseDir, ent)
			}
			params["entitlements"] = ent
			cmdLine += " --entitlements {{{entitlements}}}"
		}
		cmdLine += " {{{target}}}"
		sign := &CommandStep{
			Pipeline:    p,
			StepName:    "codesign",
			BaseDir:     baseDir,
			CommandLine: cmdLine,
			Params:      params,
			Inputs:      map[string]Artifact{"target": {RelPath: signTarget}},
			NCpus:       opts.NCpus,
			MemMB:       opts.MemMB,
		}
		if err := p.AddStep(sign); err != nil {
			return nil, nil, err
		}
		p.AddDepends(sign, last)
		last = sign
	}

	if spec.OneFile {
		archiveName := spec.Name + ".zip"
		if spec.Version != "" {
			archiveName = fmt.Sprintf("%s-%s.zip", spec.Name, spec.Version)
		}
		layout.ArchivePath = filepath.Join(distRoot, archiveName)
		srcDir := layout.DistDir
		if layout.AppDir != "" {
			srcDir = layout.AppDir
		}
		archive := &ArchiveStep{
			Pipeline: p,
			SrcDir:   srcDir,
			OutPath:  layout.ArchivePath,
		}
		if err := p.AddStep(archive); err != nil {
			return nil, nil, err
		}
		p.AddDepends(archive, last)
		last = archive
	}

	for i, h := range spec.Hooks {
		if h.Stage != bundle.HookStagePost {
			continue
		}
		hs, err := hookStep(p, spec, &opts, baseDir, h, i, hookParams)
		if err != nil {
			return nil, nil, err
		}
		p.AddDepends(hs, last)
	}

	return p, layout, nil
}

func hookStep(p *Pipeline, spec *bundle.BuildSpec, opts *Options, baseDir string, h bundle.Hook, idx int, params map[string]any) (Step, error) {
	name := h.Name
	if name == "" {
		name = fmt.Sprintf("hook:%d", idx)
	}
	outputs := map[string]Artifact{}
	for _, o := range h.Outputs {
		outputs[o] = Artifact{BaseDir: baseDir, RelPath: o}
	}
	hs := &CommandStep{
		Pipeline:    p,
		StepName:    name,
		BaseDir:     baseDir,
		CommandLine: h.CommandLine,
		Params:      params,
		Outputs:     outputs,
		NCpus:       opts.NCpus,
		MemMB:       opts.MemMB,
		Image:       opts.Image,
	}
	if err := p.AddStep(hs); err != nil {
		return nil, err
	}
	return hs, nil
}
