package pipeline

import (
	"fmt"

	"github.com/bmeg/flame"

	"github.com/balebuild/bale/logger"
	"github.com/balebuild/bale/util"
)

/*****/

type FileCheck struct {
	Pipeline *Pipeline
	File     Artifact
}

func (fc *FileCheck) Process(key string, status []*Status) flame.KeyValue[string, *Status] {
	output, short := upstreamOrNew(key, status)
	if short != nil {
		return *short
	}
	logger.Debug("Checking for file", "path", fc.File.Abs())
	if !util.Exists(fc.File.Abs()) {
		output.Status = STATUS_FAIL
		logger.Error("Missing file", "path", fc.File.Abs())
		logger.AddSummaryError("MissingFile", "path", fc.File.Abs())
		fc.Pipeline.recordFail(fc.GetName())
	} else {
		output.Status = STATUS_OK
	}
	return flame.KeyValue[string, *Status]{Key: key, Value: output}
}

func (fc *FileCheck) GetInputs() map[string]Artifact {
	return map[string]Artifact{}
}

func (fc *FileCheck) GetOutputs() map[string]Artifact {
	return map[string]Artifact{"file": fc.File}
}

func (fc *FileCheck) GetName() string {
	return "check:" + fc.File.Abs()
}

func (fc *FileCheck) GetDesc() string {
	return fmt.Sprintf("check-file: %s", fc.File.Abs())
}
