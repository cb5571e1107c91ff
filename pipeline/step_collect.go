package pipeline

import (
	"fmt"
	"path/filepath"

	"github.com/bmeg/flame"

	"github.com/balebuild/bale/bundle"
	"github.com/balebuild/bale/logger"
	"github.com/balebuild/bale/manifest"
	"github.com/balebuild/bale/util"
)

// CollectStep copies the entry point and every resolved resource into
// the dist directory and records the bundle manifest next to it.
type CollectStep struct {
	Pipeline     *Pipeline
	Spec         *bundle.BuildSpec
	Resources    []bundle.Resource
	DistDir      string
	ManifestPath string
	Hash         manifest.Hasher
}

func (cs *CollectStep) Process(key string, status []*Status) flame.KeyValue[string, *Status] {
	logger.Info("Step", "name", cs.GetName())
	output, short := upstreamOrNew(key, status)
	if short != nil {
		logger.Info("Received upstream FAIL, skipping", "name", cs.GetName())
		return *short
	}

	if output.DryRun {
		for _, r := range cs.Resources {
			logger.Info("Would collect", "src", r.Src, "dest", filepath.Join(cs.DistDir, r.Dest))
		}
		logger.Info("Would write manifest", "path", cs.ManifestPath)
		output.Status = STATUS_OK
		return flame.KeyValue[string, *Status]{Key: key, Value: output}
	}

	output.Status = STATUS_OK
	copied := 0
	for _, r := range cs.Resources {
		dst := filepath.Join(cs.DistDir, r.Dest)
		if current, err := cs.outputCurrent(r.Src, dst); err == nil && current {
			logger.Debug("Output current", "dest", dst)
			continue
		}
		if err := util.CopyFile(r.Src, dst); err != nil {
			logger.Error("Collect failed", "src", r.Src, "dest", dst, "error", err)
			logger.AddSummaryError("CollectFailed", "src", r.Src, "error", err)
			cs.Pipeline.recordFail(cs.GetName())
			output.Status = STATUS_FAIL
			return flame.KeyValue[string, *Status]{Key: key, Value: output}
		}
		logger.Debug("Collected", "src", r.Src, "dest", dst)
		copied++
	}
	if copied == 0 && util.Exists(cs.ManifestPath) {
		logger.Info("Skipping collect, outputs current", "dist", cs.DistDir, "files", len(cs.Resources))
		return flame.KeyValue[string, *Status]{Key: key, Value: output}
	}

	m, err := manifest.New(cs.Spec, cs.Resources, cs.Hash)
	if err == nil {
		m.Stamp()
		err = m.Write(cs.ManifestPath)
	}
	if err != nil {
		logger.Error("Manifest write failed", "path", cs.ManifestPath, "error", err)
		cs.Pipeline.recordFail(cs.GetName())
		output.Status = STATUS_FAIL
	} else {
		logger.Info("Collected bundle", "dist", cs.DistDir, "files", len(cs.Resources))
	}
	return flame.KeyValue[string, *Status]{Key: key, Value: output}
}

// outputCurrent reports whether the collected copy already matches the
// source. The source hash goes through cs.Hash, so unchanged files hit
// the cache instead of being reread. A failed check only costs a copy.
func (cs *CollectStep) outputCurrent(src string, dst string) (bool, error) {
	if !util.Exists(dst) {
		return false, nil
	}
	hash := cs.Hash
	if hash == nil {
		hash = util.SHA256File
	}
	srcSum, err := hash(src)
	if err != nil {
		return false, err
	}
	dstSum, err := util.SHA256File(dst)
	if err != nil {
		return false, err
	}
	return srcSum == dstSum, nil
}

func (cs *CollectStep) GetName() string {
	return "collect"
}

func (cs *CollectStep) GetInputs() map[string]Artifact {
	out := map[string]Artifact{}
	for _, r := range cs.Resources {
		out[r.Dest] = Artifact{BaseDir: "", RelPath: r.Src}
	}
	return out
}

func (cs *CollectStep) GetOutputs() map[string]Artifact {
	out := map[string]Artifact{}
	for _, r := range cs.Resources {
		out[r.Dest] = Artifact{BaseDir: cs.DistDir, RelPath: r.Dest}
	}
	out["manifest"] = Artifact{BaseDir: "", RelPath: cs.ManifestPath}
	return out
}

func (cs *CollectStep) GetDesc() string {
	return fmt.Sprintf("collect: %d files into %s", len(cs.Resources), cs.DistDir)
}
