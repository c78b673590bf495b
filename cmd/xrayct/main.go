package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/cheggaaa/pb"

	"xrayct/internal/models"
	"xrayct/pkg/config"
	"xrayct/pkg/filter"
	"xrayct/pkg/reconstruction"
	"xrayct/pkg/visualization"
)

// progressBar reports pipeline stages on a terminal progress bar
type progressBar struct {
	bar *pb.ProgressBar
}

func (p *progressBar) Start(stage string, total int) {
	p.bar = pb.New(total).Prefix(stage + " ")
	p.bar.Start()
}

func (p *progressBar) Increment() {
	p.bar.Increment()
}

func (p *progressBar) Finish() {
	p.bar.Finish()
}

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "xrayct.yaml", "YAML configuration file (defaults are used if it does not exist)")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration to -config and exit")
	input := flag.String("input", "", "PNG or JPEG density map (overrides -phantom)")
	phantomName := flag.String("phantom", "", "Synthetic phantom: head, disk or square")
	size := flag.Int("size", 0, "Density map side in pixels")
	filterName := flag.String("filter", "", "Spectral filter: none, ramp or hamming")
	backend := flag.String("backend", "", "FFT backend: gonum or godsp")
	anglesStart := flag.Float64("angles-start", 0, "First projection angle in degrees")
	anglesStop := flag.Float64("angles-stop", 180, "Projection angles stop before this value")
	anglesStep := flag.Float64("angles-step", 1, "Projection angle increment in degrees")
	numCores := flag.Int("cores", 0, "Number of CPU cores to use (default: all available)")
	outputDir := flag.String("output", "", "Directory for result images")
	palette := flag.String("palette", "", "Output palette: gray or heat")
	format := flag.String("format", "", "Output format: png or jpeg")
	saveIntermediary := flag.Bool("save-intermediary", false, "Save intermediary results during processing")
	saveFrames := flag.Bool("save-frames", false, "Save the running reconstruction as a frame sequence")
	frameStride := flag.Int("frame-stride", 0, "Angles backprojected between saved frames")
	quiet := flag.Bool("quiet", false, "Only report errors")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags given on the command line override the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.Input.Image = *input
		case "phantom":
			cfg.Input.Phantom = *phantomName
		case "size":
			cfg.Input.Size = *size
		case "filter":
			cfg.Processing.Filter = *filterName
		case "backend":
			cfg.Processing.Backend = *backend
		case "angles-start":
			cfg.Angles.Start = *anglesStart
		case "angles-stop":
			cfg.Angles.Stop = *anglesStop
		case "angles-step":
			cfg.Angles.Step = *anglesStep
		case "cores":
			cfg.Processing.NumCores = *numCores
		case "output":
			cfg.Output.Dir = *outputDir
		case "palette":
			cfg.Output.Palette = *palette
		case "format":
			cfg.Output.Format = *format
		case "save-intermediary":
			cfg.Output.SaveIntermediaryResults = *saveIntermediary
		case "save-frames":
			cfg.Output.SaveFrames = *saveFrames
		case "frame-stride":
			cfg.Output.FrameStride = *frameStride
		case "quiet":
			cfg.Output.Verbose = !*quiet
		}
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	params, err := paramsFromConfig(cfg)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("X-RAY CT FILTERED BACKPROJECTION")
	fmt.Println("================================")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	reconstructor := reconstruction.NewReconstructor(params)

	startTime := time.Now()
	if err := reconstructor.Process(ctx); err != nil {
		log.Fatalf("Reconstruction failed: %v", err)
	}
	processingTime := time.Since(startTime)

	metrics := reconstructor.GetMetrics()
	fmt.Printf("\nReconstruction completed successfully in %.2f seconds!\n", processingTime.Seconds())
	fmt.Printf("Results saved to: %s\n\n", params.OutputDir)

	fmt.Printf("Validation Metrics:\n")
	fmt.Printf("===================\n")
	fmt.Printf("Root Mean Square Error (RMSE): %.6f\n", metrics.RMSE)
	fmt.Printf("Correlation: %.3f\n", metrics.Correlation)
	fmt.Printf("Peak at (%d, %d), inside object: %v\n", metrics.PeakRow, metrics.PeakCol, metrics.PeakInside)
}

func paramsFromConfig(cfg *config.Config) (*reconstruction.Params, error) {
	kind, err := filter.ParseKind(cfg.Processing.Filter)
	if err != nil {
		return nil, err
	}
	backend, err := filter.ParseBackend(cfg.Processing.Backend)
	if err != nil {
		return nil, err
	}
	angles, err := models.AngleRange(cfg.Angles.Start, cfg.Angles.Stop, cfg.Angles.Step)
	if err != nil {
		return nil, err
	}
	palette, err := visualization.ParsePalette(cfg.Output.Palette)
	if err != nil {
		return nil, err
	}
	format, err := visualization.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}

	params := &reconstruction.Params{
		InputPath:               cfg.Input.Image,
		Phantom:                 cfg.Input.Phantom,
		Size:                    cfg.Input.Size,
		Angles:                  angles,
		Filter:                  kind,
		Backend:                 backend,
		NumCores:                cfg.Processing.NumCores,
		OutputDir:               cfg.Output.Dir,
		Palette:                 palette,
		Format:                  format,
		SaveIntermediaryResults: cfg.Output.SaveIntermediaryResults,
		SaveFrames:              cfg.Output.SaveFrames,
		FrameStride:             cfg.Output.FrameStride,
	}
	if cfg.Output.Verbose {
		params.Logger = log.New(os.Stdout, "", 0)
		params.Progress = &progressBar{}
	}
	return params, nil
}
