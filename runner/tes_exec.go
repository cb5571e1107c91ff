package runner

import (
	"context"
	"path/filepath"

	"github.com/ohsu-comp-bio/funnel/tes"

	"github.com/balebuild/bale/logger"
)

// TesRunner submits build tool invocations to a GA4GH task execution
// service, for farm builds where codesigning or compression happens on
// dedicated hosts.
type TesRunner struct {
	Client       *tes.Client
	DefaultImage string
}

func NewTesRunner(host string, defaultImage string) (CommandRunner, error) {
	client, err := tes.NewClient(host)
	if err != nil {
		return nil, err
	}
	return &TesRunner{
		Client:       client,
		DefaultImage: defaultImage,
	}, nil
}

func (tr *TesRunner) RunCommand(ctx context.Context, tool *CommandLineTool) (*CommandLog, error) {
	workdir, _ := filepath.Abs(tool.BaseDir)

	image := tool.Image
	if image == "" {
		image = tr.DefaultImage
	}

	inputs := []*tes.Input{}
	for _, i := range tool.Inputs {
		inputs = append(inputs, &tes.Input{Path: i})
	}
	outputs := []*tes.Output{}
	for _, o := range tool.Outputs {
		outputs = append(outputs, &tes.Output{Path: o})
	}

	task := tes.Task{
		Executors: []*tes.Executor{
			{
				Image:   image,
				Command: tool.CommandLine,
				Workdir: workdir,
			},
		},
		Resources: &tes.Resources{
			CpuCores: uint32(tool.NCpus),
			RamGb:    float64(tool.MemMB) / 1024,
		},
		Inputs:  inputs,
		Outputs: outputs,
	}

	resp, err := tr.Client.CreateTask(ctx, &task)
	if err != nil {
		return nil, err
	}

	err = tr.Client.WaitForTask(ctx, resp.Id)
	if err != nil {
		logger.Error("Task error", "taskID", resp.Id, "error", err)
	}

	return &CommandLog{CommandLine: tool.CommandLine, Workdir: workdir}, err
}
