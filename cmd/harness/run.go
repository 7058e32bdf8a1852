package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"harness/internal/app/executor"
	"harness/internal/app/producer"
	"harness/internal/domain/execution"
	"harness/internal/infra/suitefile"
)

type runOptions struct {
	language  string
	codePath  string
	jsonOut   bool
	parallel  int
	timeLimit time.Duration
}

// suiteReport is the outcome of one suite file.
type suiteReport struct {
	Suite    string             `json:"suite"`
	Language execution.Language `json:"language"`
	execution.Summary
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run --code FILE SUITE.yaml...",
		Short: "Run a submission against one or more suite files",
		Long: `Run evaluates the submission in --code against every case of each suite
file and prints one line per case. The command exits with status 1 unless
every case of every suite passed.

Examples:
  harness run --code add.js suites/add.yaml
  harness run --lang python --code add.py suites/*.yaml --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuites(cmd, root, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.language, "lang", "", "Submission language (defaults to the suite's language)")
	cmd.Flags().StringVar(&opts.codePath, "code", "", "Path to the submission source")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print results as JSON")
	cmd.Flags().IntVar(&opts.parallel, "parallel", root.cfg.MaxParallel, "Suites to run concurrently; JavaScript memory limits are shared across concurrent runs")
	cmd.Flags().DurationVar(&opts.timeLimit, "time-limit", 0, "Per-invocation time limit (overrides HARNESS_TIME_LIMIT)")
	_ = cmd.MarkFlagRequired("code")

	return cmd
}

func runSuites(cmd *cobra.Command, root *rootOptions, opts *runOptions, paths []string) error {
	code, err := os.ReadFile(opts.codePath)
	if err != nil {
		return fmt.Errorf("read submission: %w", err)
	}

	queue := producer.NewService()
	ids := make([]string, 0, len(paths))
	for _, path := range paths {
		suite, err := suitefile.Load(path)
		if err != nil {
			return err
		}

		lang := opts.language
		if lang == "" {
			lang = suite.Language
		}
		if lang == "" {
			return fmt.Errorf("%s: no language given; pass --lang or set language in the suite", path)
		}

		ids = append(ids, queue.AddRequest(execution.ExecutionRequest{
			ID:        path,
			Language:  resolveLanguage(lang),
			Code:      string(code),
			TestCases: suite.Cases,
		}))
	}
	if dup := firstDuplicate(ids); dup != "" {
		return fmt.Errorf("suite %s given more than once", dup)
	}

	runtimes, err := buildRuntimes(root.cfg, root.logger)
	if err != nil {
		return err
	}

	budget := root.cfg.Limits
	if opts.timeLimit > 0 {
		budget.TimeLimit = opts.timeLimit
	}
	service := executor.NewService(runtimes, executor.WithLogger(root.logger), executor.WithBudget(budget))
	defer func() {
		if cerr := service.Close(); cerr != nil {
			root.logger.Warn().Err(cerr).Msg("failed to close runtimes")
		}
	}()

	var mu sync.Mutex
	byID := make(map[string]execution.RunReport, len(ids))
	err = service.ExecuteFromProducer(cmd.Context(), queue, 0, opts.parallel, func(report execution.RunReport) {
		mu.Lock()
		byID[report.Request.ID] = report
		mu.Unlock()
	})
	if err != nil {
		return err
	}

	reports := make([]suiteReport, 0, len(ids))
	for _, id := range ids {
		report, ok := byID[id]
		if !ok {
			return fmt.Errorf("suite %s did not run: %w", id, cmd.Context().Err())
		}
		reports = append(reports, suiteReport{
			Suite:    id,
			Language: report.Request.Language,
			Summary:  report.Summary,
		})
	}

	out := cmd.OutOrStdout()
	if opts.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return fmt.Errorf("encode results: %w", err)
		}
	} else {
		printReports(out, reports)
	}

	for _, r := range reports {
		if !r.AllPassed {
			return exitCodeError{code: 1}
		}
	}
	return nil
}

func printReports(w io.Writer, reports []suiteReport) {
	pass := color.New(color.FgGreen, color.Bold)
	fail := color.New(color.FgRed, color.Bold)
	header := color.New(color.FgCyan)

	passed, failed := 0, 0
	for _, r := range reports {
		header.Fprintf(w, "%s (%s)\n", r.Suite, r.Language)
		for _, res := range r.Results {
			if res.Passed {
				passed++
				fmt.Fprintf(w, "  %s %s\n", pass.Sprint("PASS"), res.Description)
				continue
			}
			failed++
			fmt.Fprintf(w, "  %s %s: %s\n", fail.Sprint("FAIL"), res.Description, res.Error)
		}
		if len(r.Results) == 0 {
			fmt.Fprintf(w, "  %s no test cases\n", fail.Sprint("FAIL"))
		}
	}

	summary := fmt.Sprintf("%d passed, %d failed", passed, failed)
	if failed == 0 && passed > 0 {
		pass.Fprintln(w, summary)
	} else {
		fail.Fprintln(w, summary)
	}
}

func resolveLanguage(raw string) execution.Language {
	if lang, err := execution.ParseLanguage(raw); err == nil {
		return lang
	}
	return execution.Language(strings.TrimSpace(raw))
}

func firstDuplicate(values []string) string {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			return v
		}
		seen[v] = struct{}{}
	}
	return ""
}
