package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/evalforge/modelrun/internal/observability"
	"github.com/evalforge/modelrun/internal/server"
	"github.com/evalforge/modelrun/pkg/inference"
	"github.com/evalforge/modelrun/pkg/job"
	"github.com/evalforge/modelrun/pkg/manifest"
	"github.com/evalforge/modelrun/pkg/output"
	"github.com/evalforge/modelrun/pkg/runner"
	"github.com/evalforge/modelrun/pkg/store"
	filestore "github.com/evalforge/modelrun/pkg/store/file"
	s3store "github.com/evalforge/modelrun/pkg/store/s3"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run predictions from a manifest",
	Long: `Run a prediction batch as defined in a YAML or JSON manifest file.

The manifest specifies the inference endpoint, the dataset, run
behavior, the result store, and the run log. Questions whose results
already exist in the store are skipped, so rerunning the same manifest
resumes an interrupted batch.

Example:
  modelrun run --job predictions.yaml
  modelrun run --job predictions.yaml --output run.jsonl
  modelrun run --job predictions.yaml --workers 4 --quiet
  modelrun run --job predictions.yaml --dry-run
  modelrun run --job predictions.yaml --test`,
	RunE: runRun,
}

var (
	runJobPath  string
	runOutput   string
	runQuiet    bool
	runDryRun   bool
	runPlan     bool
	runWorkers  int
	runTestMode bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runJobPath, "job", "j", "", "Path to job manifest (required)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Override run log destination")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Suppress progress records")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Validate manifest and show plan without executing")
	runCmd.Flags().BoolVar(&runPlan, "plan", false, "Alias for --dry-run")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "Override worker count")
	runCmd.Flags().BoolVar(&runTestMode, "test", false, "Run the built-in test question instead of the dataset")

	_ = runCmd.MarkFlagRequired("job")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	m, err := manifest.Parse(runJobPath)
	if err != nil {
		observability.CLILogger.Error("Failed to load manifest",
			zap.String("path", runJobPath),
			zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
	}

	// Environment-level fallbacks fill fields the manifest omits; they
	// must land before ApplyDefaults or the built-ins win.
	applyConfigFallbacks(m)

	// Apply flag overrides
	if runOutput != "" {
		m.Output.Destination = runOutput
	}
	if runWorkers > 0 {
		m.Run.Workers = runWorkers
	}
	if runTestMode {
		m.Dataset.TestMode = true
	}
	if runQuiet {
		enabled := false
		m.Output.Progress = &enabled
	}

	m.ApplyDefaults()
	if err := m.Validate(); err != nil {
		observability.CLILogger.Error("Invalid manifest",
			zap.String("path", runJobPath),
			zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
	}

	observability.CLILogger.Debug("Loaded manifest",
		zap.String("path", runJobPath),
		zap.String("url", m.Inference.URL),
		zap.String("model", m.Inference.Model),
		zap.String("backend", m.Store.Backend))

	if runPlan || runDryRun {
		return showRunPlan(m)
	}

	return executeRun(ctx, m)
}

// showRunPlan displays what would run without issuing requests.
func showRunPlan(m *manifest.Manifest) error {
	fmt.Println("=== Run Plan (dry-run) ===")
	fmt.Println()
	fmt.Printf("Endpoint:    %s\n", m.Inference.URL)
	fmt.Printf("Model:       %s\n", m.Inference.Model)
	fmt.Printf("Temperature: %.2f\n", m.Inference.Temperature)
	fmt.Printf("Timeout:     %s\n", m.Inference.Timeout())
	fmt.Println()

	if m.Dataset.TestMode {
		fmt.Println("Dataset:     built-in test question")
	} else {
		fmt.Printf("Dataset:     %s\n", m.Dataset.Path)
	}
	if len(m.Dataset.Include) > 0 {
		fmt.Println("  Include:")
		for _, p := range m.Dataset.Include {
			fmt.Printf("    - %s\n", p)
		}
	}
	if len(m.Dataset.Exclude) > 0 {
		fmt.Println("  Exclude:")
		for _, p := range m.Dataset.Exclude {
			fmt.Printf("    - %s\n", p)
		}
	}
	if !m.Dataset.IncludeImages {
		fmt.Println("  Image questions: skipped")
	}
	fmt.Println()

	switch m.Store.Backend {
	case manifest.BackendS3:
		fmt.Printf("Store:       s3://%s/%s\n", m.Store.S3.Bucket, m.Store.S3.Prefix)
		if m.Store.S3.Endpoint != "" {
			fmt.Printf("Endpoint:    %s\n", m.Store.S3.Endpoint)
		}
	default:
		fmt.Printf("Store:       %s (dir)\n", m.Store.Dir)
	}

	fmt.Printf("Workers:     %d\n", m.Run.Workers)
	if m.Run.RateLimit > 0 {
		fmt.Printf("Rate Limit:  %.1f req/s\n", m.Run.RateLimit)
	}
	if m.Run.StatusAddr != "" {
		fmt.Printf("Status:      http://%s\n", m.Run.StatusAddr)
	}
	fmt.Printf("Output:      %s\n", m.Output.Destination)
	fmt.Printf("Progress:    %v\n", m.Output.ProgressEnabled())
	fmt.Println()
	fmt.Println("Manifest validated successfully. Remove --dry-run to execute.")
	return nil
}

// executeRun runs the actual prediction batch.
func executeRun(ctx context.Context, m *manifest.Manifest) error {
	// Generate run ID early so we can use it in writer and status server
	runID := uuid.New().String()

	jobs, err := loadJobs(m)
	if err != nil {
		observability.CLILogger.Error("Failed to load dataset", zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid dataset", err)
	}
	if len(jobs) == 0 {
		fmt.Println("No questions matched the dataset filters.")
		return nil
	}

	st, err := createStore(ctx, m)
	if err != nil {
		observability.CLILogger.Error("Failed to open result store", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to open result store", err)
	}
	defer func() { _ = st.Close() }()

	client := inference.NewClient(inference.Config{
		BaseURL:     m.Inference.URL,
		Model:       m.Inference.Model,
		Temperature: m.Inference.Temperature,
		Timeout:     m.Inference.Timeout(),
		APIKey:      m.Inference.APIKey,
	})

	writer, cleanup, err := createWriter(m, runID)
	if err != nil {
		observability.CLILogger.Error("Failed to create run log", zap.Error(err))
		return exitError(foundry.ExitFileWriteError, "Failed to create run log", err)
	}
	defer cleanup()

	r := runner.New(client, st, writer, observability.CLILogger, runID, runner.Config{
		Concurrency: m.Run.Workers,
		RateLimit:   m.Run.RateLimit,
	})

	stopStatus := startStatusServer(m, runID, r)
	defer stopStatus()

	observability.CLILogger.Info("Starting run",
		zap.String("run_id", runID),
		zap.String("model", m.Inference.Model),
		zap.Int("questions", len(jobs)),
		zap.Int("workers", m.Run.Workers))

	_, summary, err := r.Run(ctx, jobs)
	if err != nil {
		if ctx.Err() != nil {
			observability.CLILogger.Warn("Run cancelled",
				zap.String("run_id", runID),
				zap.Int64("completed", summary.Completed))
			return exitError(foundry.ExitSignalInt, "Run cancelled", err)
		}
		observability.CLILogger.Error("Run failed",
			zap.String("run_id", runID),
			zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Run failed", err)
	}

	observability.CLILogger.Info("Run completed",
		zap.String("run_id", runID),
		zap.Int64("completed", summary.Completed),
		zap.Int64("failed", summary.Failed),
		zap.Int64("skipped", summary.Skipped),
		zap.Duration("duration", summary.Duration))

	if summary.Total == 0 {
		fmt.Println("All questions have already been processed.")
		return nil
	}

	fmt.Printf("Processed %d question(s): %d completed, %d failed, %d skipped in %s\n",
		summary.Total, summary.Completed, summary.Failed, summary.Skipped,
		summary.Duration.Round(time.Millisecond))

	if summary.Failed > 0 {
		return exitError(foundry.ExitExternalServiceUnavailable, "Run completed with errors",
			fmt.Errorf("failed=%d", summary.Failed))
	}
	return nil
}

// applyConfigFallbacks fills manifest fields left unset from the
// process config (MODELRUN_DEFAULTS_* or config file). Manifest values
// always win over fallbacks.
func applyConfigFallbacks(m *manifest.Manifest) {
	if processConfig == nil {
		return
	}
	d := processConfig.Defaults

	if m.Inference.APIKey == "" {
		m.Inference.APIKey = d.APIKey
	}
	if m.Inference.TimeoutSeconds <= 0 && d.Timeout > 0 {
		m.Inference.TimeoutSeconds = int(d.Timeout.Seconds())
	}
	if m.Run.Workers <= 0 && d.Workers > 0 {
		m.Run.Workers = d.Workers
	}
	// Dir only matters for the file backend (the default).
	if m.Store.Dir == "" && d.ResultsDir != "" &&
		(m.Store.Backend == "" || m.Store.Backend == manifest.BackendFile) {
		m.Store.Dir = d.ResultsDir
	}
}

// loadJobs builds the filtered job list from manifest configuration.
func loadJobs(m *manifest.Manifest) ([]job.Job, error) {
	var source job.Source
	if m.Dataset.TestMode {
		source = job.TestSource{}
	} else {
		source = job.NewFileSource(m.Dataset.Path)
	}

	jobs, err := source.Jobs()
	if err != nil {
		return nil, err
	}

	filter := job.Filter{
		Include:    m.Dataset.Include,
		Exclude:    m.Dataset.Exclude,
		SkipImages: !m.Dataset.IncludeImages,
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	return filter.Apply(jobs), nil
}

// createStore opens the result store from manifest configuration.
func createStore(ctx context.Context, m *manifest.Manifest) (store.Store, error) {
	switch m.Store.Backend {
	case manifest.BackendS3:
		return s3store.Open(ctx, s3store.Config{
			Bucket:   m.Store.S3.Bucket,
			Prefix:   m.Store.S3.Prefix,
			Region:   m.Store.S3.Region,
			Endpoint: m.Store.S3.Endpoint,
			Profile:  m.Store.S3.Profile,
			// Force path-style URLs when custom endpoint is set.
			// S3-compatible services (moto, MinIO, etc.) require this.
			ForcePathStyle: m.Store.S3.ForcePathStyle || m.Store.S3.Endpoint != "",
		})
	default:
		return filestore.Open(m.Store.Dir)
	}
}

// createWriter creates a run-log writer from manifest configuration.
// Returns the writer, a cleanup function, and any error.
func createWriter(m *manifest.Manifest, runID string) (output.Writer, func(), error) {
	dest := m.Output.Destination
	model := m.Inference.Model

	if dest == "" || dest == "stdout" {
		w := output.NewJSONLWriter(os.Stdout, runID, model)
		return w, func() { _ = w.Close() }, nil
	}

	// Handle file: prefix
	path := strings.TrimPrefix(dest, "file:")

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create run log file %s: %w", path, err)
	}

	w := output.NewJSONLWriter(f, runID, model)
	cleanup := func() {
		_ = w.Close()
		_ = f.Close()
	}
	return w, cleanup, nil
}

// startStatusServer starts the status HTTP server when configured.
// Returns a stop function; a no-op when the server is disabled.
func startStatusServer(m *manifest.Manifest, runID string, r *runner.Runner) func() {
	if m.Run.StatusAddr == "" {
		return func() {}
	}

	srv := server.New(m.Run.StatusAddr, server.Info{
		RunID:   runID,
		Model:   m.Inference.Model,
		Version: versionInfo.Version,
	}, r.Progress)

	go func() {
		if err := srv.Start(); err != nil {
			observability.CLILogger.Warn("Status server stopped",
				zap.String("addr", m.Run.StatusAddr),
				zap.Error(err))
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
