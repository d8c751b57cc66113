package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"sync2notion/internal/batch"
	"sync2notion/internal/credentials"
	"sync2notion/internal/report"
)

// ErrBatchFailed makes the process exit non-zero after the report was printed.
var ErrBatchFailed = errors.New("batch did not complete successfully")

type uploadOptions struct {
	url    string
	token  string
	dbID   string
	tags   string
	asJSON bool
}

type uploadReport struct {
	ID       string         `json:"id"`
	Status   batch.Verdict  `json:"status"`
	Progress float64        `json:"progress"`
	Summary  report.Summary `json:"summary"`
	Items    []report.Item  `json:"items"`
}

func newUploadCmd() *cobra.Command {
	opts := &uploadOptions{}
	cmd := &cobra.Command{
		Use:   "upload [files...]",
		Short: "Upload files or a URL to Notion",
		Long: "Upload each file (or a single URL) in order, pausing between uploads. " +
			"Missing --token, --db-id and --tags fall back to the last values used.",
		Example: "  sync2notion upload notes.md report.pdf --db-id 0f3c8e8a6f0e4b8e9a3c2f1d2b7c9e11\n" +
			"  sync2notion upload --url https://example.org/article",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, args, opts)
		},
	}
	cmd.Flags().StringVar(&opts.url, "url", "", "Web page URL to convert instead of files")
	cmd.Flags().StringVar(&opts.token, "token", "", "Notion integration token")
	cmd.Flags().StringVar(&opts.dbID, "db-id", "", "Target Notion database ID")
	cmd.Flags().StringVar(&opts.tags, "tags", "", "Comma separated tags")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the final report as JSON")
	return cmd
}

func runUpload(cmd *cobra.Command, args []string, opts *uploadOptions) error {
	cache, err := openCache(cfg)
	if err != nil {
		return err
	}
	creds := resolveCredentials(cmd, opts, cache)

	sources, err := collectSources(args, opts.url)
	if err != nil {
		return err
	}

	orch, err := buildOrchestrator(cfg, cache, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	var subscriber batch.Subscriber
	if !opts.asJSON {
		printed := 0
		subscriber = func(s batch.State) {
			for ; printed < len(s.Results); printed++ {
				fmt.Fprintln(out, progressLine(s.Results[printed], len(s.Jobs)))
			}
		}
	}

	state, err := orch.Run(ctx, batch.Submission{
		Jobs:        batch.BuildJobs(sources),
		Credentials: creds,
		Subscriber:  subscriber,
	})
	if err != nil {
		var verr *batch.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("%w (%s)", err, verr.Detail())
		}
		return err //nolint:wrapcheck
	}

	summary := report.Summarize(state)
	items := report.Items(state)
	if opts.asJSON {
		if err := printJSON(out, uploadReport{
			ID:       state.ID,
			Status:   state.Verdict(),
			Progress: report.Progress(state),
			Summary:  summary,
			Items:    items,
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out)
		renderItems(out, items)
		renderBanner(out, summary)
	}

	switch state.Verdict() {
	case batch.VerdictAborted, batch.VerdictFailed, batch.VerdictCanceled:
		return ErrBatchFailed
	default:
		return nil
	}
}

// resolveCredentials fills flags the user did not set from the cache.
func resolveCredentials(cmd *cobra.Command, opts *uploadOptions, cache credentials.Store) credentials.StoredConfig {
	cached, _ := cache.Load()
	creds := credentials.StoredConfig{
		Token:        strings.TrimSpace(opts.token),
		CollectionID: strings.TrimSpace(opts.dbID),
		Tags:         strings.TrimSpace(opts.tags),
	}
	if creds.Token == "" {
		creds.Token = cached.Token
	}
	if creds.CollectionID == "" {
		creds.CollectionID = cached.CollectionID
	}
	if !cmd.Flags().Changed("tags") {
		creds.Tags = cached.Tags
	}
	return creds
}

func collectSources(paths []string, rawURL string) ([]batch.Source, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL != "" {
		if len(paths) > 0 {
			return nil, errors.New("provide either files or --url, not both")
		}
		src, err := batch.NewURLSource(rawURL)
		if err != nil {
			return nil, err //nolint:wrapcheck
		}
		return []batch.Source{src}, nil
	}
	sources := make([]batch.Source, 0, len(paths))
	for _, path := range paths {
		src, err := batch.NewFileSource(path, cfg.AllowedExtensions)
		if err != nil {
			return nil, err //nolint:wrapcheck
		}
		sources = append(sources, src)
	}
	return sources, nil
}
