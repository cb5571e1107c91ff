package pipeline

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/bmeg/flame"

	"github.com/balebuild/bale/runner"
)

const (
	STATUS_OK   = 0
	STATUS_FAIL = 1
)

type Status struct {
	Name   string
	Status int
	DryRun bool
}

// Artifact is a file a step consumes or produces, addressed relative
// to the build base directory.
type Artifact struct {
	BaseDir string
	RelPath string
}

func (a *Artifact) Abs() string {
	s, _ := filepath.Abs(filepath.Join(a.BaseDir, a.RelPath))
	return s
}

type Step interface {
	GetName() string
	Process(key string, status []*Status) flame.KeyValue[string, *Status]
	GetInputs() map[string]Artifact
	GetOutputs() map[string]Artifact
	GetDesc() string
}

/*****/

type Pipeline struct {
	Steps  map[string]Step
	DepMap map[string][]string

	Runner runner.CommandRunner

	mu     sync.Mutex
	failed []string
}

func New(r runner.CommandRunner) *Pipeline {
	return &Pipeline{
		Steps:  map[string]Step{},
		DepMap: map[string][]string{},
		Runner: r,
	}
}

func (p *Pipeline) AddStep(s Step) error {
	n := s.GetName()
	if _, ok := p.Steps[n]; ok {
		return fmt.Errorf("non-unique pipeline step name: %s", n)
	}
	p.Steps[n] = s
	return nil
}

func (p *Pipeline) AddDepends(step Step, dep Step) {
	stepName := step.GetName()
	depName := dep.GetName()
	if x, ok := p.DepMap[stepName]; ok {
		p.DepMap[stepName] = append(x, depName)
	} else {
		p.DepMap[stepName] = []string{depName}
	}
}

func (p *Pipeline) recordFail(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed = append(p.failed, name)
}

func (p *Pipeline) Failed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.failed))
	copy(out, p.failed)
	return out
}

// upstreamOrNew folds upstream statuses: a failed input short-circuits,
// a dry-run input marks the fresh status as dry-run too.
func upstreamOrNew(key string, status []*Status) (*Status, *flame.KeyValue[string, *Status]) {
	dryRun := false
	for _, i := range status {
		if i.Status != STATUS_OK {
			kv := flame.KeyValue[string, *Status]{Key: key, Value: i}
			return nil, &kv
		}
		if i.DryRun {
			dryRun = true
		}
	}
	return &Status{DryRun: dryRun}, nil
}

type FlamePipeline struct {
	Workflow *flame.Workflow
	In       chan *Status
}

// BuildFlame assembles the step graph into a flame dataflow. Steps
// with no dependencies are fed from the source channel; the rest join
// on their dependencies' outputs.
func (p *Pipeline) BuildFlame() (*FlamePipeline, error) {
	out := flame.NewWorkflow()

	nodeMap := map[Step]flame.Emitter[flame.KeyValue[string, *Status]]{}

	workChan := make(chan *Status, 10)
	startNode := flame.AddSourceChan(out, workChan)
	for _, v := range p.Steps {
		if len(p.DepMap[v.GetName()]) == 0 {
			curV := v
			m := flame.AddMapper(out, func(x *Status) flame.KeyValue[string, *Status] {
				return curV.Process(x.Name, []*Status{x})
			})
			m.Connect(startNode)
			nodeMap[v] = m
		}
	}

	for found := true; found; {
		found = false
		for _, v := range p.Steps {
			if _, ok := nodeMap[v]; !ok {
				inNodes := []flame.Emitter[flame.KeyValue[string, *Status]]{}
				for _, dep := range p.DepMap[v.GetName()] {
					depStep, ok := p.Steps[dep]
					if !ok {
						return nil, fmt.Errorf("step %s depends on unknown step %s", v.GetName(), dep)
					}
					if n, ok := nodeMap[depStep]; ok {
						inNodes = append(inNodes, n)
					}
				}
				if len(inNodes) == len(p.DepMap[v.GetName()]) {
					curV := v
					j := flame.AddKeyJoinGroupAsync(out, func(key string, status []*Status) *Status {
						return curV.Process(key, status).Value
					})
					for _, i := range inNodes {
						j.Connect(i)
					}
					nodeMap[v] = j
					found = true
				}
			}
		}
	}

	for _, v := range p.Steps {
		if _, ok := nodeMap[v]; !ok {
			return nil, fmt.Errorf("step %s not reachable, dependency cycle", v.GetName())
		}
	}

	return &FlamePipeline{Workflow: out, In: workChan}, nil
}

// Run executes the pipeline. With dryRun set, steps log what they
// would do and touch nothing.
func (p *Pipeline) Run(dryRun bool) error {
	fp, err := p.BuildFlame()
	if err != nil {
		return err
	}

	go func() {
		fp.In <- &Status{Name: "build", DryRun: dryRun}
		close(fp.In)
	}()

	fp.Workflow.Start()
	fp.Workflow.Wait()

	if failed := p.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d pipeline steps failed: %v", len(failed), failed)
	}
	return nil
}
