package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"fracnd/internal/logging"
	"fracnd/pkg/config"
)

const longHelp = `
Estimate the fractal dimension (FD) and lacunarity (LD) of N-dimensional
volumes with sliding-window box counting.

Volumes are read from FVOL files (.fvol, .fvol.gz, .fvol.zst, .fvol.sz,
.fvol.lz4). A patient folder holds a *_seg volume and one volume per
modality; a dataset folder holds one patient folder per patient.

Settings come from the config file, then FRACND_* environment variables,
then explicitly set flags.`

var exampleUsage = strings.TrimSpace(`
  fracnd analyze brain_seg.fvol.gz --plots-dir plots/
  fracnd patient data/P001 -o results/
  fracnd dataset data/ -o results/ --start-from 10
  fracnd dataset data/ -o results/ --watch
  fracnd config init ~/.fracnd/config.yaml
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// app carries the state shared by all subcommands.
type app struct {
	cfgPath string

	// flags receives flag values; only flags the user set are copied into
	// the loaded configuration
	flags *config.Config

	cfg *config.Config
	log zerolog.Logger
}

func newApp() *app {
	return &app{flags: config.DefaultConfig(), log: logging.New(false, false)}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "fracnd",
		Short:         "Fractal dimension and lacunarity of N-dimensional volumes",
		Long:          strings.TrimSpace(longHelp),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig(cmd)
		},
	}

	a.registerFlags(root.PersistentFlags())

	root.AddCommand(
		a.analyzeCommand(),
		a.patientCommand(),
		a.datasetCommand(),
		configCommand(),
	)
	return root
}

func main() {
	a := newApp()
	root := a.rootCommand()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			a.log.Info().Msg("received signal, stopping...")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := root.ExecuteContext(ctx); err != nil {
		a.log.Error().Err(err).Msg("fracnd")
		os.Exit(1)
	}
}

func (a *app) registerFlags(fs *pflag.FlagSet) {
	f, b := &a.flags.Fractal, &a.flags.Batch

	fs.StringVar(&a.cfgPath, "config", "", "path to config file, YAML or TOML (default: $HOME/.fracnd/config.yaml)")

	fs.IntVar(&f.MaxBoxSize, config.FlagMaxBoxSize, f.MaxBoxSize, "log2 of the largest window (0 = largest that fits)")
	fs.IntVar(&f.MinBoxSize, config.FlagMinBoxSize, f.MinBoxSize, "log2 of the smallest window")
	fs.IntVar(&f.Stride, config.FlagStride, f.Stride, "stride of the sliding window")
	fs.BoolVar(&f.Disjoint, config.FlagDisjoint, f.Disjoint, "classic disjoint box counting instead of sliding windows")
	fs.IntVar(&f.NSamples, config.FlagSamples, f.NSamples, "number of scale samples")
	fs.Float64Var(&f.Subsample, config.FlagSubsample, f.Subsample, "window keep probability (0 = evaluate every window)")
	fs.BoolVar(&f.Histogram, config.FlagHistogram, f.Histogram, "estimate the mass distribution with a histogram")
	fs.StringVar(&f.Bins, config.FlagBins, f.Bins, "histogram bin rule or count")
	fs.IntVar(&f.Workers, config.FlagWorkers, f.Workers, "number of worker goroutines")
	fs.Uint64Var(&f.Seed, config.FlagSeed, f.Seed, "seed of the subsampling random source")

	fs.StringSliceVarP(&b.Modalities, config.FlagModalities, "m", b.Modalities, "modalities analyzed for lacunarity")
	fs.Float64Var(&b.SubsampleIntensity, config.FlagSubsampleIntensity, b.SubsampleIntensity, "subsampling rate for intensity analysis")
	fs.IntVar(&b.IntensityLevels, config.FlagIntensityLevels, b.IntensityLevels, "number of intensity levels for binary conversion")
	fs.BoolVar(&b.SavePlots, config.FlagPlots, b.SavePlots, "save FD and lacunarity plots")
	fs.StringVar(&b.PlotFormat, config.FlagPlotFormat, b.PlotFormat, "plot file format: png or jpeg")
	fs.Float64Var(&b.Confidence, config.FlagConfidence, b.Confidence, "confidence level of plotted bands, in percent")
	fs.BoolVar(&b.SaveIntermediate, config.FlagSaveIntermediate, b.SaveIntermediate, "save results after each patient")
	fs.BoolVar(&b.SkipUnchanged, config.FlagSkipUnchanged, b.SkipUnchanged, "skip patients whose segmentation is unchanged since the last run")
	fs.BoolVar(&b.SavePreviews, config.FlagPreviews, b.SavePreviews, "save mid-plane previews of each cropped segmentation")

	fs.BoolVarP(&a.flags.Output.Verbose, config.FlagVerbose, "v", false, "verbose output")
	fs.BoolVarP(&a.flags.Output.Quiet, config.FlagQuiet, "q", false, "quiet mode (warnings and errors only)")
}

// loadConfig builds the configuration: file, then environment, then the
// flags the user set.
func (a *app) loadConfig(cmd *cobra.Command) error {
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	cfgFile := a.cfgPath
	if cfgFile == "" {
		cfgFile = config.DefaultConfigPath()
	}

	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.ApplyEnvConfig(cfg, changed); err != nil {
		return err
	}
	a.applyFlags(cfg, changed)

	a.cfg = cfg
	a.log = logging.New(cfg.Output.Verbose, cfg.Output.Quiet)
	return nil
}

func (a *app) applyFlags(cfg *config.Config, changed map[string]bool) {
	from, to := a.flags, cfg
	copyIf := func(flag string, apply func()) {
		if changed[flag] {
			apply()
		}
	}

	copyIf(config.FlagMaxBoxSize, func() { to.Fractal.MaxBoxSize = from.Fractal.MaxBoxSize })
	copyIf(config.FlagMinBoxSize, func() { to.Fractal.MinBoxSize = from.Fractal.MinBoxSize })
	copyIf(config.FlagStride, func() { to.Fractal.Stride = from.Fractal.Stride })
	copyIf(config.FlagDisjoint, func() { to.Fractal.Disjoint = from.Fractal.Disjoint })
	copyIf(config.FlagSamples, func() { to.Fractal.NSamples = from.Fractal.NSamples })
	copyIf(config.FlagSubsample, func() { to.Fractal.Subsample = from.Fractal.Subsample })
	copyIf(config.FlagHistogram, func() { to.Fractal.Histogram = from.Fractal.Histogram })
	copyIf(config.FlagBins, func() { to.Fractal.Bins = from.Fractal.Bins })
	copyIf(config.FlagWorkers, func() { to.Fractal.Workers = from.Fractal.Workers })
	copyIf(config.FlagSeed, func() { to.Fractal.Seed = from.Fractal.Seed })

	copyIf(config.FlagModalities, func() { to.Batch.Modalities = from.Batch.Modalities })
	copyIf(config.FlagSubsampleIntensity, func() { to.Batch.SubsampleIntensity = from.Batch.SubsampleIntensity })
	copyIf(config.FlagIntensityLevels, func() { to.Batch.IntensityLevels = from.Batch.IntensityLevels })
	copyIf(config.FlagPlots, func() { to.Batch.SavePlots = from.Batch.SavePlots })
	copyIf(config.FlagPlotFormat, func() { to.Batch.PlotFormat = from.Batch.PlotFormat })
	copyIf(config.FlagConfidence, func() { to.Batch.Confidence = from.Batch.Confidence })
	copyIf(config.FlagSaveIntermediate, func() { to.Batch.SaveIntermediate = from.Batch.SaveIntermediate })
	copyIf(config.FlagSkipUnchanged, func() { to.Batch.SkipUnchanged = from.Batch.SkipUnchanged })
	copyIf(config.FlagPreviews, func() { to.Batch.SavePreviews = from.Batch.SavePreviews })

	copyIf(config.FlagVerbose, func() { to.Output.Verbose = from.Output.Verbose })
	copyIf(config.FlagQuiet, func() { to.Output.Quiet = from.Output.Quiet })
}
