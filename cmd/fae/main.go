package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/zhangjingcode/FAE/internal/logger"
	"github.com/zhangjingcode/FAE/internal/models"
	"github.com/zhangjingcode/FAE/pkg/binning"
	"github.com/zhangjingcode/FAE/pkg/config"
	"github.com/zhangjingcode/FAE/pkg/dataio"
	"github.com/zhangjingcode/FAE/pkg/metrics"
	"github.com/zhangjingcode/FAE/pkg/normalizer"
	"github.com/zhangjingcode/FAE/pkg/reuse"
	"github.com/zhangjingcode/FAE/pkg/selector"
	"github.com/zhangjingcode/FAE/pkg/visualization"
)

const usage = `usage: fae <command> [flags]

commands:
  normalize  fit a normalizer on training features and apply it
  bins       estimate histogram bin edges inside an ROI
  train      train a model folder
  test       apply a model folder to new cases
  config     write the default configuration file

run "fae <command> -h" for the flags of a command
`

var errUsage = errors.New("invalid usage")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		log.Fatalf("fae: %v", err)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "normalize":
		return runNormalize(args[1:], out)
	case "bins":
		return runBins(args[1:], out)
	case "train":
		return runTrain(args[1:], out)
	case "test":
		return runTest(args[1:], out)
	case "config":
		return runConfig(args[1:], out)
	case "-h", "-help", "--help", "help":
		return flag.ErrHelp
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
}

// commonFlags are accepted by every command
type commonFlags struct {
	configPath *string
	logLevel   *string
	logJSON    *bool
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		configPath: fs.String("config", "fae.yaml", "Configuration file (defaults are used when it does not exist)"),
		logLevel:   fs.String("log-level", "", "Log level: debug, info, warn, error"),
		logJSON:    fs.Bool("log-json", false, "Write logs as JSON lines"),
	}
}

// setup loads the configuration, lets override apply the flags that were
// set explicitly and builds the logger
func (c *commonFlags) setup(fs *flag.FlagSet, override func(cfg *config.Config, name string)) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadConfig(*c.configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log-level":
			cfg.Log.Level = *c.logLevel
		case "log-json":
			cfg.Log.JSON = *c.logJSON
		default:
			if override != nil {
				override(cfg, f.Name)
			}
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, logger.New(logger.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON}), nil
}

func runNormalize(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("normalize", flag.ContinueOnError)
	common := addCommonFlags(fs)
	trainPath := fs.String("train", "", "Training feature matrix (CSV)")
	testPath := fs.String("test", "", "Testing feature matrix (CSV), normalized with the training parameters")
	method := fs.String("method", "", "Normalization method: none, unit, zero_center, zero_center_unit")
	outDir := fs.String("out", "", "Directory for the parameters and the normalized features")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, lg, err := common.setup(fs, func(cfg *config.Config, name string) {
		switch name {
		case "method":
			cfg.Normalization.Method = *method
		case "out":
			cfg.Output.Dir = *outDir
		}
	})
	if err != nil {
		return err
	}
	if *trainPath == "" {
		return fmt.Errorf("%w: -train is required", errUsage)
	}

	norm, err := normalizer.New(cfg.Normalization.Method)
	if err != nil {
		return err
	}
	norm.SetLogger(logger.Component(lg, "normalizer"))

	train, err := dataio.LoadCSV(*trainPath)
	if err != nil {
		return fmt.Errorf("error loading %s: %w", *trainPath, err)
	}
	normalized, err := norm.Run(train, cfg.Output.Dir, false)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Normalization: %s\n", norm.Name())
	fmt.Fprintf(out, "%s\n", strings.TrimSpace(norm.Description()))
	_, before := train.Dims()
	_, after := normalized.Dims()
	fmt.Fprintf(out, "Training cases: %d, features: %d (removed %d)\n", len(train.CaseNames), after, before-after)

	if *testPath != "" {
		test, err := dataio.LoadCSV(*testPath)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", *testPath, err)
		}
		var normalizedTest *models.DataContainer
		if cfg.Output.Dir != "" {
			normalizedTest, err = norm.Run(test, cfg.Output.Dir, true)
		} else {
			normalizedTest, err = norm.Transform(test)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Testing cases: %d\n", len(normalizedTest.CaseNames))
	}

	if cfg.Output.Dir != "" {
		fmt.Fprintf(out, "Results saved to: %s\n", cfg.Output.Dir)
	}
	return nil
}

func runBins(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("bins", flag.ContinueOnError)
	common := addCommonFlags(fs)
	imagePath := fs.String("image", "", "Image volume: a directory of slices or a single image")
	maskPath := fs.String("mask", "", "ROI mask volume with the same layout as the image")
	binCount := fs.Int("bins", 0, "Number of bins")
	minValue := fs.Float64("min", 0, "Override of the image minimum")
	maxValue := fs.Float64("max", 0, "Override of the image maximum")
	minROI := fs.Float64("min-roi", 0, "Override of the ROI minimum")
	maxROI := fs.Float64("max-roi", 0, "Override of the ROI maximum")
	plotPath := fs.String("plot", "", "Write the ROI histogram to this file")
	slicesDir := fs.String("slices", "", "Export the ROI slices to this directory")
	axis := fs.String("axis", "", "Axis the ROI slices are exported along: x, y or z")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, lg, err := common.setup(fs, func(cfg *config.Config, name string) {
		switch name {
		case "bins":
			cfg.Binning.BinCount = *binCount
		case "min":
			cfg.Binning.Min = minValue
		case "max":
			cfg.Binning.Max = maxValue
		case "min-roi":
			cfg.Binning.MinROI = minROI
		case "max-roi":
			cfg.Binning.MaxROI = maxROI
		case "axis":
			cfg.Binning.SliceAxis = *axis
		}
	})
	if err != nil {
		return err
	}
	if *imagePath == "" || *maskPath == "" {
		return fmt.Errorf("%w: -image and -mask are required", errUsage)
	}

	gen := binning.New(cfg.Binning.BinCount)
	gen.Min, gen.Max = cfg.Binning.Min, cfg.Binning.Max
	gen.MinROI, gen.MaxROI = cfg.Binning.MinROI, cfg.Binning.MaxROI
	gen.SetLogger(logger.Component(lg, "binning"))

	if err := gen.Load(*imagePath, *maskPath); err != nil {
		return err
	}
	rng, err := gen.Generate()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Image range: [%g, %g]\n", rng.ImageMin, rng.ImageMax)
	fmt.Fprintf(out, "ROI range: [%g, %g] over %d voxels\n", rng.Start, rng.End, len(gen.ROIValues()))
	fmt.Fprintf(out, "Bin width: %g\n", rng.Step)
	edges := make([]string, len(rng.Edges))
	for i, e := range rng.Edges {
		edges[i] = dataio.FormatFloat(e)
	}
	fmt.Fprintf(out, "Bin edges: %s\n", strings.Join(edges, ", "))

	if *plotPath != "" {
		if filepath.Ext(*plotPath) == "" {
			*plotPath += "." + cfg.Output.PlotFormat
		}
		if err := gen.SavePlot(*plotPath, rng); err != nil {
			return err
		}
		fmt.Fprintf(out, "Histogram saved to: %s\n", *plotPath)
	}

	if *slicesDir != "" {
		n, err := saveROISlices(gen, cfg.Binning.SliceAxis, *slicesDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved %d ROI slices to: %s\n", n, *slicesDir)
	}
	return nil
}

// saveROISlices exports the bounding box of the ROI, with voxels outside
// the ROI blacked out
func saveROISlices(gen *binning.BinGenerator, axis, dir string) (int, error) {
	viewer := visualization.NewViewer(gen.Image())
	if err := viewer.SetMask(gen.Mask()); err != nil {
		return 0, err
	}

	bounds, ok := visualization.ROIBounds(gen.Mask())
	if !ok {
		return 0, binning.ErrEmptyROI
	}
	roi, err := viewer.ExtractRegion(bounds)
	if err != nil {
		return 0, err
	}
	return roi.SaveSliceSequence(axis, dir)
}

func runTrain(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	common := addCommonFlags(fs)
	dataPath := fs.String("data", "", "Training feature matrix (CSV) with a label column")
	modelDir := fs.String("model", "", "Model folder to write")
	features := fs.String("features", "", "Comma separated features to train on (default: all)")
	method := fs.String("method", "", "Normalization method: none, unit, zero_center, zero_center_unit")
	clf := fs.String("classifier", "", "Classifier: LR or KNN")
	k := fs.Int("k", 0, "Neighbour count of KNN")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, lg, err := common.setup(fs, func(cfg *config.Config, name string) {
		switch name {
		case "method":
			cfg.Normalization.Method = *method
		case "classifier":
			cfg.Classifier.Name = *clf
		case "k":
			cfg.Classifier.Params.K = *k
		}
	})
	if err != nil {
		return err
	}
	if *dataPath == "" || *modelDir == "" {
		return fmt.Errorf("%w: -data and -model are required", errUsage)
	}

	opts := reuse.TrainOptions{
		Normalizer: cfg.Normalization.Method,
		Features:   selector.ParseList(*features),
		Classifier: cfg.Classifier.Name,
		Params:     cfg.Classifier.Params,
	}

	start := time.Now()
	m, err := reuse.NewRunner(logger.Component(lg, "train")).TrainModel(*dataPath, *modelDir, opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Model trained in %.2f seconds and saved to: %s\n\n", time.Since(start).Seconds(), *modelDir)
	printMetrics(out, "Training", m)
	return nil
}

func runTest(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	common := addCommonFlags(fs)
	dataPath := fs.String("data", "", "Feature matrix (CSV) of the new cases")
	modelDir := fs.String("model", "", "Trained model folder")
	outDir := fs.String("out", "", "Directory for test_info.csv and test_result.csv")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, lg, err := common.setup(fs, func(cfg *config.Config, name string) {
		if name == "out" {
			cfg.Output.Dir = *outDir
		}
	})
	if err != nil {
		return err
	}
	if *dataPath == "" || *modelDir == "" {
		return fmt.Errorf("%w: -data and -model are required", errUsage)
	}

	m, err := reuse.NewRunner(logger.Component(lg, "test")).TestNewData(*dataPath, *modelDir, cfg.Output.Dir)
	if err != nil {
		return err
	}

	printMetrics(out, "Testing", m)
	if cfg.Output.Dir != "" {
		fmt.Fprintf(out, "\nResults saved to: %s\n", cfg.Output.Dir)
	}
	return nil
}

func runConfig(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	path := fs.String("out", "fae.yaml", "Path of the configuration file to write")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := config.CreateDefaultConfigFile(*path); err != nil {
		return err
	}
	fmt.Fprintf(out, "Default configuration written to: %s\n", *path)
	return nil
}

func printMetrics(out io.Writer, title string, m metrics.Metrics) {
	fmt.Fprintf(out, "%s Metrics:\n", title)
	fmt.Fprintln(out, strings.Repeat("=", len(title)+9))
	if m.Positives+m.Negatives == 0 {
		fmt.Fprintf(out, "No labels, scored %d cases\n", m.Samples)
		return
	}
	if m.SingleClass {
		fmt.Fprintln(out, "Only one class is present, the AUC is not informative")
	}
	for _, row := range m.Rows() {
		fmt.Fprintf(out, "%-27s %.4f\n", row.Name+":", row.Value)
	}
}
