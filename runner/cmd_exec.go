package runner

import (
	"context"
	"os/exec"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/balebuild/bale/logger"
)

type Error string

func (e Error) Error() string {
	return string(e)
}

var PoolErrorNotAvailable = Error("not available")

// CommandLineTool is one external build tool invocation: strip, upx,
// codesign, a user hook.
type CommandLineTool struct {
	CommandLine []string
	BaseDir     string
	Inputs      []string
	Outputs     []string
	NCpus       uint
	MemMB       uint
	Image       string
}

type CommandLog struct {
	CommandLine []string
	Workdir     string
}

type CommandRunner interface {
	RunCommand(ctx context.Context, tool *CommandLineTool) (*CommandLog, error)
}

// SingleMachineRunner executes tools locally, holding each under the
// machine's CPU and memory budget.
type SingleMachineRunner struct {
	MaxCPUs  uint
	MaxMemMB uint
	memPool  *ConstraintPool
	cpuPool  *ConstraintPool
}

func NewSingleMachineRunner(ncpus uint, maxmb uint) CommandRunner {
	return &SingleMachineRunner{
		MaxCPUs:  ncpus,
		MaxMemMB: maxmb,
		memPool:  NewConstraintPool(maxmb),
		cpuPool:  NewConstraintPool(ncpus),
	}
}

func (sc *SingleMachineRunner) RunCommand(ctx context.Context, tool *CommandLineTool) (*CommandLog, error) {
	workdir, _ := filepath.Abs(tool.BaseDir)

	logger.Debug("ResourceRequest", "cpus", tool.NCpus, "memMB", tool.MemMB)
	cpuAlloc := sc.cpuPool.Acquire(tool.NCpus)
	memAlloc := sc.memPool.Acquire(tool.MemMB)
	defer cpuAlloc.Return()
	defer memAlloc.Return()

	cmdLine := tool.CommandLine
	if tool.Image != "" {
		cmdLine = dockerWrap(tool, workdir)
	}

	logger.Info("Executing", "commandLine", strings.Join(cmdLine, " "))
	cmd := exec.CommandContext(ctx, cmdLine[0], cmdLine[1:]...)
	cmd.Dir = workdir
	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		logger.Debug("Tool output", "commandLine", cmdLine[0], "output", string(out))
	}
	if err != nil {
		logger.Error("Command exited with error", "commandLine", cmdLine, "error", err)
	}
	return &CommandLog{CommandLine: cmdLine, Workdir: workdir}, err
}

// dockerWrap reruns the tool inside a container, mounting the work
// tree and every declared input and output location.
func dockerWrap(tool *CommandLineTool, workdir string) []string {
	dockerCmd := []string{"docker", "run", "--rm"}
	u, _ := user.Current()
	dockerCmd = append(dockerCmd, "--user", u.Uid)
	dockerCmd = append(dockerCmd, "-v", workdir+":"+workdir)
	dockerCmd = append(dockerCmd, "-w", workdir)

	for _, i := range tool.Inputs {
		p, _ := filepath.Abs(filepath.Join(workdir, i))
		dockerCmd = append(dockerCmd, "-v", p+":"+p)
	}
	oSet := map[string]bool{}
	for _, i := range tool.Outputs {
		p, _ := filepath.Abs(filepath.Join(workdir, i))
		oSet[filepath.Dir(p)] = true
	}
	for b := range oSet {
		dockerCmd = append(dockerCmd, "-v", b+":"+b)
	}
	dockerCmd = append(dockerCmd, tool.Image)
	return append(dockerCmd, tool.CommandLine...)
}
