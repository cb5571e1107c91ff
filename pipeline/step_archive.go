package pipeline

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmeg/flame"

	"github.com/balebuild/bale/logger"
)

// zipEpoch pins every archive entry timestamp so rebuilding an
// unchanged tree produces a byte-identical archive.
var zipEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// ArchiveStep zips the bundle directory into the single-file artifact.
type ArchiveStep struct {
	Pipeline *Pipeline
	SrcDir   string
	OutPath  string
}

func (as *ArchiveStep) Process(key string, status []*Status) flame.KeyValue[string, *Status] {
	logger.Info("Step", "name", as.GetName())
	output, short := upstreamOrNew(key, status)
	if short != nil {
		logger.Info("Received upstream FAIL, skipping", "name", as.GetName())
		return *short
	}

	if output.DryRun {
		logger.Info("Would archive", "src", as.SrcDir, "out", as.OutPath)
		output.Status = STATUS_OK
		return flame.KeyValue[string, *Status]{Key: key, Value: output}
	}

	if err := ZipDir(as.SrcDir, as.OutPath); err != nil {
		logger.Error("Archive failed", "out", as.OutPath, "error", err)
		logger.AddSummaryError("ArchiveFailed", "out", as.OutPath, "error", err)
		as.Pipeline.recordFail(as.GetName())
		output.Status = STATUS_FAIL
	} else {
		logger.Info("Created archive", "out", as.OutPath)
		output.Status = STATUS_OK
	}
	return flame.KeyValue[string, *Status]{Key: key, Value: output}
}

// ZipDir archives srcDir into outPath with sorted entries and fixed
// timestamps.
func ZipDir(srcDir string, outPath string) error {
	paths := []string{}
	err := filepath.Walk(srcDir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(paths)

	if err := os.MkdirAll(filepath.Dir(outPath), 0777); err != nil {
		return err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if err := writeZipEntries(f, srcDir, paths); err != nil {
		f.Close()
		os.Remove(outPath)
		return err
	}
	return f.Close()
}

func writeZipEntries(f *os.File, srcDir string, paths []string) error {
	zw := zip.NewWriter(f)
	for _, path := range paths {
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		hdr := &zip.FileHeader{
			Name:     filepath.ToSlash(rel),
			Method:   zip.Deflate,
			Modified: zipEpoch,
		}
		hdr.SetMode(info.Mode())
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, in)
		in.Close()
		if err != nil {
			return err
		}
	}
	return zw.Close()
}

func (as *ArchiveStep) GetName() string {
	return "archive"
}

func (as *ArchiveStep) GetInputs() map[string]Artifact {
	return map[string]Artifact{"src": {BaseDir: "", RelPath: as.SrcDir}}
}

func (as *ArchiveStep) GetOutputs() map[string]Artifact {
	return map[string]Artifact{"archive": {BaseDir: "", RelPath: as.OutPath}}
}

func (as *ArchiveStep) GetDesc() string {
	return fmt.Sprintf("archive: %s", as.OutPath)
}
