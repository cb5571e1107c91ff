package build

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/balebuild/bale/bundle"
	"github.com/balebuild/bale/cache"
	"github.com/balebuild/bale/logger"
	"github.com/balebuild/bale/pipeline"
	"github.com/balebuild/bale/runner"
	"github.com/balebuild/bale/specfile"
)

var dryRun = false
var noCache = false
var distRoot = ""
var arch = ""
var platform = ""
var image = ""
var remoteHost = ""
var ncpus uint = 1
var memMB uint = 1024
var maxCPUs uint = uint(runtime.NumCPU())
var maxMemMB uint = 16000

// Cmd is the declaration of the command line
var Cmd = &cobra.Command{
	Use:   "build <specfile>",
	Short: "Build an application bundle from a spec file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		specPath, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		spec, err := specfile.Load(specPath)
		if err != nil {
			return err
		}
		if arch != "" {
			spec.TargetArch = bundle.TargetArch(arch)
		}

		var run runner.CommandRunner
		if remoteHost != "" {
			run, err = runner.NewTesRunner(remoteHost, image)
			if err != nil {
				return err
			}
		} else {
			run = runner.NewSingleMachineRunner(maxCPUs, maxMemMB)
		}

		opts := pipeline.Options{
			DistRoot: distRoot,
			Platform: platform,
			NCpus:    ncpus,
			MemMB:    memMB,
			Image:    image,
			Runner:   run,
		}

		if !noCache {
			baseDir, err := bundle.ResolveBaseDir(spec.BaseDir)
			if err != nil {
				return err
			}
			c, err := cache.Open(filepath.Join(baseDir, ".bale", "cache"))
			if err != nil {
				logger.Warn("Hash cache unavailable, rehashing everything", "error", err)
			} else {
				defer c.Close()
				opts.Hash = c.FileSHA256
			}
		}

		p, layout, err := pipeline.Prep(spec, opts)
		if err != nil {
			return err
		}
		if err := p.Run(dryRun); err != nil {
			return err
		}
		if dryRun {
			logger.Info("Dry run complete", "name", spec.Name)
			return nil
		}

		logger.Info("Build complete", "name", spec.Name, "dist", layout.DistDir)
		fmt.Println(layout.DistDir)
		if layout.AppDir != "" {
			fmt.Println(layout.AppDir)
		}
		if layout.ArchivePath != "" {
			fmt.Println(layout.ArchivePath)
		}
		return nil
	},
}

func init() {
	flags := Cmd.Flags()
	flags.BoolVarP(&dryRun, "dry-run", "n", dryRun, "Report steps without running them")
	flags.BoolVar(&noCache, "no-cache", noCache, "Skip the file hash cache")
	flags.StringVar(&distRoot, "dist", distRoot, "Output directory for built bundles")
	flags.StringVar(&arch, "arch", arch, "Override the spec target architecture")
	flags.StringVar(&platform, "platform", platform, "Target platform (default: build host)")
	flags.StringVar(&image, "docker", image, "Run build tools inside a container image")
	flags.StringVar(&remoteHost, "remote", remoteHost, "Submit build tools to a task execution service")
	flags.UintVar(&ncpus, "ncpus", ncpus, "CPUs requested per build tool")
	flags.UintVar(&memMB, "mem-mb", memMB, "Memory requested per build tool (MB)")
	flags.UintVar(&maxCPUs, "max-cpus", maxCPUs, "Local CPU budget")
	flags.UintVar(&maxMemMB, "max-mem-mb", maxMemMB, "Local memory budget (MB)")
}
