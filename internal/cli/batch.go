package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/sugawarayuuta/sonnet"
	"gopkg.in/yaml.v3"

	"github.com/roach88/pdatrace/internal/batch"
	"github.com/roach88/pdatrace/internal/engine"
)

// BatchOptions holds flags for the batch command.
type BatchOptions struct {
	*RootOptions
	Concurrency int    // 0 uses batch.concurrency from config
	Database    string // record every analysis here when set
	PatternsDir string
}

// BatchResult is one entry of the batch output. Exactly one of Match and
// Error is set.
type BatchResult struct {
	Index   int                 `json:"index"`
	Input   engine.RequestInput `json:"input"`
	Match   *engine.PdaMatch    `json:"match,omitempty"`
	Error   *CLIError           `json:"error,omitempty"`
	Elapsed int64               `json:"elapsed_ns"`
}

// BatchOutput is the data of the batch command.
type BatchOutput struct {
	Results []BatchResult `json:"results"`
	Stats   batch.Stats   `json:"stats"`
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Analyze a list of addresses",
		Long: `Analyze every request in a YAML or JSON file concurrently.

The file holds either a list of requests or an object with a "requests"
list. Each request has address, program_id and an optional context map.

Exit codes:
  0 - Every request was analyzed (matched or not)
  1 - One or more requests were invalid
  2 - Command error (unreadable file, batch too large, etc.)

Examples:
  pdatrace batch ./requests.yaml
  pdatrace batch ./requests.json --concurrency 16 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "analyses run at once (default from config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record results in this SQLite database")
	cmd.Flags().StringVar(&opts.PatternsDir, "patterns", "", "directory of extra CUE pattern definitions")

	return cmd
}

func runBatch(ctx context.Context, opts *BatchOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	cfg, err := opts.Config()
	if err != nil {
		return fail(f, ExitCommandError, CodeConfig, "failed to load config", err)
	}

	inputs, err := loadBatchFile(path)
	if err != nil {
		return fail(f, ExitCommandError, CodeInvalidInput, "failed to read batch file", err)
	}

	analyzer, err := newAnalyzer(cfg, opts.PatternsDir)
	if err != nil {
		return fail(f, ExitCommandError, CodePatterns, "failed to build pattern library", err)
	}

	var target batch.Analyzer = analyzer
	if opts.Database != "" {
		rec, st, err := openRecorder(ctx, opts.Database)
		if err != nil {
			return fail(f, ExitCommandError, CodeStore, "failed to open database", err)
		}
		defer st.Close()
		target = &recordingAnalyzer{analyzer: analyzer, recorder: rec}
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = cfg.Batch.Concurrency
	}
	orch := batch.New(target,
		batch.WithConcurrency(concurrency),
		batch.WithMaxItems(cfg.Batch.MaxItems))
	f.VerboseLog("analyzing %d requests with concurrency %d", len(inputs), orch.Concurrency())

	res, err := orch.Run(ctx, inputs)
	switch {
	case errors.Is(err, batch.ErrTooManyItems):
		return fail(f, ExitCommandError, CodeBatchTooLarge, "batch too large", err)
	case err != nil:
		return fail(f, ExitCommandError, CodeInternal, "batch interrupted", err)
	}

	out := batchOutput(res)
	if res.Stats.Failed > 0 {
		msg := fmt.Sprintf("%d of %d request(s) failed", res.Stats.Failed, res.Stats.Total)
		if f.JSON() {
			if err := f.Failure(CodeBatchFailed, msg, nil, out); err != nil {
				return err
			}
		} else {
			printBatch(f, out)
		}
		return ReportedError(ExitFailure, msg, nil)
	}

	if f.JSON() {
		return f.Success(out)
	}
	printBatch(f, out)
	return nil
}

// recordingAnalyzer records every successful analysis of a batch.
type recordingAnalyzer struct {
	analyzer *engine.Analyzer
	recorder *engine.Recorder
}

func (r *recordingAnalyzer) Analyze(ctx context.Context, in engine.RequestInput) (*engine.PdaMatch, error) {
	req, err := in.Parse()
	if err != nil {
		return nil, err
	}
	m, err := r.analyzer.AnalyzeRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	if _, err := r.recorder.Record(ctx, req, m); err != nil {
		return nil, err
	}
	return m, nil
}

// batchFile is the object form of a batch file.
type batchFile struct {
	Requests []engine.RequestInput `json:"requests" yaml:"requests"`
}

// loadBatchFile reads a list of requests from a .yaml, .yml or .json file.
func loadBatchFile(path string) ([]engine.RequestInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var inputs []engine.RequestInput
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
			err = sonnet.Unmarshal(data, &inputs)
		} else {
			var file batchFile
			err = sonnet.Unmarshal(data, &file)
			inputs = file.Requests
		}
	case ".yaml", ".yml":
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if len(doc.Content) == 0 {
			return nil, fmt.Errorf("%s: empty file", path)
		}
		root := doc.Content[0]
		if root.Kind == yaml.SequenceNode {
			err = root.Decode(&inputs)
		} else {
			var file batchFile
			err = root.Decode(&file)
			inputs = file.Requests
		}
	default:
		return nil, fmt.Errorf("%s: unsupported extension %q (want .yaml, .yml or .json)", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%s: no requests", path)
	}
	return inputs, nil
}

func batchOutput(res *batch.Result) BatchOutput {
	out := BatchOutput{Results: make([]BatchResult, len(res.Items)), Stats: res.Stats}
	for i, it := range res.Items {
		out.Results[i] = BatchResult{
			Index:   it.Index,
			Input:   it.Input,
			Match:   it.Match,
			Elapsed: int64(it.Elapsed),
		}
		if it.Err != nil {
			code := CodeInternal
			if engine.IsInvalidInput(it.Err) {
				code = CodeInvalidInput
			}
			out.Results[i].Error = &CLIError{Code: code, Message: it.Err.Error(), Details: errorDetails(it.Err)}
		}
	}
	return out
}

func printBatch(f *OutputFormatter, out BatchOutput) {
	for _, r := range out.Results {
		switch {
		case r.Error != nil:
			f.Printf("✗ [%d] %s: %s\n", r.Index, r.Input.Address, r.Error.Message)
		case r.Match.Derived:
			f.Printf("✓ [%d] %s: %s (%.2f) bump %d\n",
				r.Index, r.Input.Address, r.Match.Pattern, r.Match.Confidence, r.Match.Bump)
		default:
			f.Printf("- [%d] %s: %s\n", r.Index, r.Input.Address, noMatchMessage(r.Match))
		}
	}

	s := out.Stats
	f.Printf("\nBatch Summary: %d derived, %d not matched, %d failed, %d total (%.1f%% derived)\n",
		s.Succeeded, s.NotMatched, s.Failed, s.Total, s.SuccessRate*100)
	f.Printf("Latency: min %s, p50 %s, p95 %s, max %s\n",
		s.Latency.Min, s.Latency.P50, s.Latency.P95, s.Latency.Max)
}
