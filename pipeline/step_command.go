package pipeline

import (
	"context"
	"fmt"

	"github.com/aymerick/raymond"
	"github.com/bmeg/flame"
	"github.com/google/shlex"

	"github.com/balebuild/bale/logger"
	"github.com/balebuild/bale/runner"
	"github.com/balebuild/bale/util"
)

// CommandStep wraps one external tool invocation: strip, upx,
// codesign, or a user hook. The command line is a handlebars template
// rendered against Params before shell-style splitting.
type CommandStep struct {
	Pipeline    *Pipeline
	StepName    string
	BaseDir     string
	CommandLine string
	Params      map[string]any
	Inputs      map[string]Artifact
	Outputs     map[string]Artifact
	NCpus       uint
	MemMB       uint
	Image       string
}

func (cs *CommandStep) Process(key string, status []*Status) flame.KeyValue[string, *Status] {
	logger.Info("Step", "name", cs.StepName)
	output, short := upstreamOrNew(key, status)
	if short != nil {
		logger.Info("Received upstream FAIL, skipping", "name", cs.StepName)
		return *short
	}

	commandLineText, err := raymond.Render(cs.CommandLine, cs.Params)
	if err != nil {
		logger.Error("Template error", "name", cs.StepName, "error", err)
		output.Status = STATUS_FAIL
		cs.Pipeline.recordFail(cs.StepName)
		return flame.KeyValue[string, *Status]{Key: key, Value: output}
	}
	cmdLine, err := shlex.Split(commandLineText)
	if err != nil || len(cmdLine) == 0 {
		logger.Error("Command line error", "name", cs.StepName, "error", err)
		output.Status = STATUS_FAIL
		cs.Pipeline.recordFail(cs.StepName)
		return flame.KeyValue[string, *Status]{Key: key, Value: output}
	}

	outputsFound := 0
	for _, o := range cs.Outputs {
		if util.Exists(o.Abs()) {
			outputsFound++
		}
	}
	if len(cs.Outputs) > 0 && outputsFound == len(cs.Outputs) {
		logger.Info("Skipping command, outputs current",
			"name", cs.StepName, "outputsFound", outputsFound, "commandLine", cmdLine)
		output.Status = STATUS_OK
		return flame.KeyValue[string, *Status]{Key: key, Value: output}
	}

	if output.DryRun {
		logger.Info("Would run command", "name", cs.StepName, "commandLine", cmdLine)
		output.Status = STATUS_OK
		return flame.KeyValue[string, *Status]{Key: key, Value: output}
	}

	tool := runner.CommandLineTool{
		CommandLine: cmdLine,
		BaseDir:     cs.BaseDir,
		Inputs:      artifactPaths(cs.Inputs),
		Outputs:     artifactPaths(cs.Outputs),
		NCpus:       cs.NCpus,
		MemMB:       cs.MemMB,
		Image:       cs.Image,
	}
	if _, err := cs.Pipeline.Runner.RunCommand(context.Background(), &tool); err != nil {
		output.Status = STATUS_FAIL
		logger.AddSummaryError("CommandFailed", "name", cs.StepName, "commandLine", cmdLine)
		cs.Pipeline.recordFail(cs.StepName)
	} else {
		output.Status = STATUS_OK
		logger.Info("Command succeeded", "name", cs.StepName, "commandLine", cmdLine)
	}
	return flame.KeyValue[string, *Status]{Key: key, Value: output}
}

func (cs *CommandStep) GetName() string {
	return cs.StepName
}

func (cs *CommandStep) GetInputs() map[string]Artifact {
	return cs.Inputs
}

func (cs *CommandStep) GetOutputs() map[string]Artifact {
	return cs.Outputs
}

func (cs *CommandStep) GetDesc() string {
	return fmt.Sprintf("run: %s", cs.CommandLine)
}

func artifactPaths(m map[string]Artifact) []string {
	out := []string{}
	for _, a := range m {
		out = append(out, a.RelPath)
	}
	return out
}
