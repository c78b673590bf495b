// Package reconstruction runs the complete simulated CT pipeline: it loads or
// generates a density map, projects it into a sinogram, filters the sinogram
// and backprojects it into a reconstruction.
package reconstruction

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"path/filepath"
	"runtime"

	"gonum.org/v1/gonum/stat"

	"xrayct/internal/models"
	"xrayct/pkg/backprojection"
	"xrayct/pkg/filter"
	"xrayct/pkg/matrix"
	"xrayct/pkg/phantom"
	"xrayct/pkg/radon"
	"xrayct/pkg/visualization"
)

// defaultBatch is the number of angles backprojected between cancellation
// checks when frames are not being saved.
const defaultBatch = 32

// Output file names written to Params.OutputDir.
const (
	SinogramFile       = "sinogram"
	FilteredFile       = "filtered"
	ReconstructionFile = "reconstruction"
	IntermediaryDir    = "intermediary_results"
	FramesDir          = "frames"
)

// ValidationMetrics compares the reconstruction with the input density map.
// Both images are min-max normalised to [0, 1] before comparison, since
// backprojection without angular normalisation is only correct up to scale.
type ValidationMetrics struct {
	// RMSE is the root mean square error of the normalised images.
	// Zero when the shapes differ.
	RMSE float64

	// Correlation is the Pearson correlation of the normalised images.
	// Zero when either image is constant or the shapes differ.
	Correlation float64

	// PeakRow and PeakCol locate the brightest reconstruction pixel
	PeakRow int
	PeakCol int

	// PeakInside reports whether the density map is non-zero at the peak
	PeakInside bool
}

// Progress receives progress updates for the long-running stages.
// Increment may be called from several goroutines at once.
type Progress interface {
	Start(stage string, total int)
	Increment()
	Finish()
}

// Params holds the reconstruction parameters.
type Params struct {
	// InputPath is an optional PNG or JPEG density map. When empty the
	// phantom named by Phantom is generated instead.
	InputPath string

	// Phantom names the synthetic density map: head, disk or square
	Phantom string

	// Size is the side of the generated phantom, and the size loaded images
	// are resized to when positive
	Size int

	// Angles are the projection angles in degrees
	Angles []float64

	// Filter and Backend select the spectral filter and FFT implementation
	Filter  filter.Kind
	Backend filter.Backend

	// NumCores specifies how many goroutines each stage may use.
	// Values <= 0 use all CPUs.
	NumCores int

	// OutputDir receives the result images. Nothing is written when empty.
	OutputDir string

	// Palette and Format control how result images are rendered
	Palette visualization.Palette
	Format  visualization.Format

	// SaveIntermediaryResults also writes the density map and each stage
	// to OutputDir/intermediary_results
	SaveIntermediaryResults bool

	// SaveFrames writes the running reconstruction after every FrameStride
	// angles to OutputDir/frames
	SaveFrames  bool
	FrameStride int

	// Logger receives one line per pipeline step. Nil discards them.
	Logger *log.Logger

	// Progress is optional
	Progress Progress
}

// Reconstructor handles the reconstruction process.
//
// The process consists of these steps:
// 1. Loading or generating the density map
// 2. Forward projection into a sinogram
// 3. Spectral filtering of every projection
// 4. Backprojection in batches of angles
// 5. Saving results and calculating metrics
type Reconstructor struct {
	params  *Params
	logger  *log.Logger
	viewer  *visualization.Viewer
	scan    models.Scan
	metrics ValidationMetrics
}

// NewReconstructor creates a new reconstructor instance with the provided
// parameters.
func NewReconstructor(params *Params) *Reconstructor {
	logger := params.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Reconstructor{
		params: params,
		logger: logger,
		viewer: visualization.NewViewer(params.Palette, params.Format),
	}
}

func (r *Reconstructor) workers() int {
	if r.params.NumCores <= 0 {
		return runtime.NumCPU()
	}
	return r.params.NumCores
}

// Process runs the complete reconstruction pipeline. It returns ctx.Err()
// if the context is cancelled between stages or between backprojection
// batches.
func (r *Reconstructor) Process(ctx context.Context) error {
	if len(r.params.Angles) == 0 {
		return fmt.Errorf("no projection angles: %w", matrix.ErrInvalidDimensions)
	}
	r.scan = models.Scan{Angles: r.params.Angles, Filter: r.params.Filter.String()}

	// Step 1: Load or generate the density map
	r.logger.Println("Step 1: Preparing density map...")
	if err := r.loadDensity(); err != nil {
		return fmt.Errorf("failed to prepare density map: %w", err)
	}
	rows, cols := r.scan.Density.Dims()
	r.logger.Printf("Density map is %dx%d, %d projection angles, %d cores\n",
		rows, cols, len(r.params.Angles), r.workers())
	if err := ctx.Err(); err != nil {
		return err
	}

	// Step 2: Forward projection
	r.logger.Println("Step 2: Computing sinogram...")
	if err := r.project(); err != nil {
		return fmt.Errorf("failed to compute sinogram: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Step 3: Filtering
	r.logger.Printf("Step 3: Applying %s filter...\n", r.params.Filter)
	f := &filter.Filter{Kind: r.params.Filter, Backend: r.params.Backend, Workers: r.workers()}
	filtered, err := f.Apply(r.scan.Sinogram)
	if err != nil {
		return fmt.Errorf("failed to filter sinogram: %w", err)
	}
	r.scan.Filtered = filtered
	if err := ctx.Err(); err != nil {
		return err
	}

	// Step 4: Backprojection
	r.logger.Println("Step 4: Backprojecting...")
	if err := r.backProject(ctx); err != nil {
		return err
	}

	// Step 5: Results
	if r.params.OutputDir != "" {
		r.logger.Printf("Step 5: Saving results to %s...\n", r.params.OutputDir)
		if err := r.saveResults(); err != nil {
			return fmt.Errorf("failed to save results: %w", err)
		}
	}

	r.logger.Println("Calculating validation metrics...")
	r.metrics = calculateValidationMetrics(r.scan.Density, r.scan.Reconstruction)
	return nil
}

func (r *Reconstructor) loadDensity() error {
	if r.params.InputPath != "" {
		density, err := visualization.Load(r.params.InputPath, r.params.Size)
		if err != nil {
			return err
		}
		r.scan.Density = density
		r.logger.Printf("Loaded %s\n", r.params.InputPath)
		return nil
	}

	density, err := phantom.ByName(r.params.Phantom, r.params.Size)
	if err != nil {
		return err
	}
	r.scan.Density = density
	r.logger.Printf("Generated %s phantom\n", r.params.Phantom)
	return nil
}

func (r *Reconstructor) startStage(stage string, total int) func(int) {
	p := r.params.Progress
	if p == nil {
		return nil
	}
	p.Start(stage, total)
	return func(int) { p.Increment() }
}

func (r *Reconstructor) finishStage() {
	if r.params.Progress != nil {
		r.params.Progress.Finish()
	}
}

func (r *Reconstructor) project() error {
	projector := radon.NewProjector(r.workers())
	projector.OnAngle = r.startStage("projection", len(r.params.Angles))
	defer r.finishStage()

	sinogram, err := projector.Project(r.scan.Density, r.params.Angles)
	if err != nil {
		return err
	}
	r.scan.Sinogram = sinogram
	return nil
}

// batches splits 0..n-1 into consecutive index blocks of at most size
// elements.
func batches(n, size int) [][]int {
	if size <= 0 {
		size = n
	}
	var out [][]int
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		block := make([]int, end-start)
		for i := range block {
			block[i] = start + i
		}
		out = append(out, block)
	}
	return out
}

func (r *Reconstructor) backProject(ctx context.Context) error {
	bp := backprojection.NewBackProjector(r.workers())
	bp.OnAngle = r.startStage("backprojection", len(r.params.Angles))
	defer r.finishStage()

	size := defaultBatch
	if r.params.SaveFrames && r.params.FrameStride > 0 {
		size = r.params.FrameStride
	}
	framesDir := filepath.Join(r.params.OutputDir, FramesDir)
	saveFrames := r.params.SaveFrames && r.params.OutputDir != ""

	var result *matrix.Matrix
	for i, block := range batches(len(r.params.Angles), size) {
		if err := ctx.Err(); err != nil {
			return err
		}
		partial, err := bp.Sum(r.scan.Filtered, r.params.Angles, block)
		if err != nil {
			return fmt.Errorf("failed to backproject: %w", err)
		}
		if result == nil {
			result = partial
		} else if err := result.Add(partial); err != nil {
			return fmt.Errorf("failed to backproject: %w", err)
		}

		if saveFrames {
			if err := r.viewer.SaveFrame(result, framesDir, i); err != nil {
				r.logger.Printf("Warning: Failed to save frame %d: %v\n", i, err)
			}
		}
	}
	r.scan.Reconstruction = result
	return nil
}

func (r *Reconstructor) outputPath(dir, name string) string {
	return filepath.Join(dir, name+r.params.Format.Ext())
}

func (r *Reconstructor) saveResults() error {
	outputs := []struct {
		name string
		m    *matrix.Matrix
	}{
		{SinogramFile, r.scan.Sinogram},
		{FilteredFile, r.scan.Filtered},
		{ReconstructionFile, r.scan.Reconstruction},
	}
	for _, out := range outputs {
		if err := r.viewer.SaveMatrix(out.m, r.outputPath(r.params.OutputDir, out.name)); err != nil {
			return fmt.Errorf("failed to save %s: %w", out.name, err)
		}
	}

	if !r.params.SaveIntermediaryResults {
		return nil
	}
	r.logger.Println("Saving intermediary results...")
	dir := filepath.Join(r.params.OutputDir, IntermediaryDir)
	stages := []struct {
		name string
		m    *matrix.Matrix
	}{
		{"01_density", r.scan.Density},
		{"02_sinogram", r.scan.Sinogram},
		{"03_filtered", r.scan.Filtered},
		{"04_reconstruction", r.scan.Reconstruction},
	}
	for _, stage := range stages {
		if err := r.viewer.SaveMatrix(stage.m, r.outputPath(dir, stage.name)); err != nil {
			r.logger.Printf("Warning: Failed to save %s: %v\n", stage.name, err)
		}
	}
	return nil
}

// GetScan returns every stage computed by the last call to Process
func (r *Reconstructor) GetScan() models.Scan {
	return r.scan
}

// GetMetrics returns the validation metrics computed by the last call to
// Process
func (r *Reconstructor) GetMetrics() ValidationMetrics {
	return r.metrics
}

func calculateValidationMetrics(density, reconstruction *matrix.Matrix) ValidationMetrics {
	var metrics ValidationMetrics
	if density == nil || reconstruction == nil {
		return metrics
	}

	metrics.PeakRow, metrics.PeakCol = reconstruction.ArgMax()
	if v, err := density.At(metrics.PeakRow, metrics.PeakCol); err == nil {
		metrics.PeakInside = v > 0
	}

	rows, cols := density.Dims()
	if !reconstruction.SameShape(rows, cols) {
		return metrics
	}
	original := normalize(density.Values())
	reconstructed := normalize(reconstruction.Values())
	metrics.RMSE = calculateRMSE(original, reconstructed)
	if c := stat.Correlation(original, reconstructed, nil); !math.IsNaN(c) {
		metrics.Correlation = c
	}
	return metrics
}

// normalize returns a copy of data scaled to [0, 1]. Constant data maps to
// zeros.
func normalize(data []float64) []float64 {
	lo, hi := findMinMax(data)
	out := make([]float64, len(data))
	if hi <= lo {
		return out
	}
	for i, v := range data {
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}

// calculateRMSE computes the root mean square error
func calculateRMSE(original, reconstructed []float64) float64 {
	n := len(original)
	if n != len(reconstructed) || n == 0 {
		return 0
	}

	mse := 0.0
	for i := 0; i < n; i++ {
		diff := original[i] - reconstructed[i]
		mse += diff * diff
	}
	mse /= float64(n)

	return math.Sqrt(mse)
}

// findMinMax returns the minimum and maximum values in a slice
func findMinMax(data []float64) (min, max float64) {
	if len(data) == 0 {
		return 0, 0
	}

	min = data[0]
	max = data[0]
	for _, v := range data {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}
