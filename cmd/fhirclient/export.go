package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jrsteele09/epic-fhir-client/bulk"
	"github.com/jrsteele09/epic-fhir-client/fhir"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	var token, outDir string
	var interval time.Duration
	var types []string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Run a bulk $export and wait for the result files",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client, err := fhir.NewClientFromConfig(cfg)
			if err != nil {
				return err
			}
			if len(types) == 0 {
				types = cfg.GetExportTypes()
			}
			if interval <= 0 {
				interval = cfg.GetPollInterval()
			}

			job, err := bulk.NewJob(client, types, bulk.WithPollInterval(interval))
			if err != nil {
				return err
			}
			defer job.Close()

			snap, err := runExport(ctx, cmd.OutOrStdout(), job, token)
			if err != nil {
				return err
			}
			if outDir == "" || len(snap.ResultURLs) == 0 {
				return nil
			}
			return downloadAll(ctx, cmd.OutOrStdout(), client, token, snap, outDir)
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Bearer access token from the bulk flow")
	cmd.Flags().StringSliceVar(&types, "type", nil, "Resource types to export (default EXPORT_TYPES)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Status poll interval (default POLL_INTERVAL)")
	cmd.Flags().StringVar(&outDir, "out", "", "Directory to download the result files into")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

// runExport submits the job and reports progress until it finishes or ctx is cancelled
func runExport(ctx context.Context, out io.Writer, job *bulk.Job, token string) (bulk.Snapshot, error) {
	if err := job.Submit(ctx, token); err != nil {
		fmt.Fprintln(out, errorStyle.Render("Bulk export initiation failed"))
		return bulk.Snapshot{}, err
	}

	snap := job.Snapshot()
	fmt.Fprintln(out, titleStyle.Render("Epic FHIR Bulk Export"))
	printField(out, "status url", snap.StatusURL)
	printField(out, "status", stateText(snap.State))

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	lastProgress := ""
	for {
		select {
		case <-ctx.Done():
			return job.Snapshot(), ctx.Err()
		case <-ticker.C:
			if p := job.Snapshot().Progress; p != "" && p != lastProgress {
				lastProgress = p
				printField(out, "progress", p)
			}
		case <-job.Done():
			snap = job.Snapshot()
			printField(out, "status", stateText(snap.State))
			if snap.State == bulk.Failed {
				return snap, job.Err()
			}
			if links := snap.Links(); len(links) > 0 {
				fmt.Fprintln(out, titleStyle.Render("Data URLs:"))
				for _, link := range links {
					fmt.Fprintf(out, "  %s  %s\n", linkStyle.Render(link.Label), link.URL)
				}
			}
			return snap, nil
		}
	}
}

func downloadAll(ctx context.Context, out io.Writer, client *fhir.Client, token string, snap bulk.Snapshot, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	for i, link := range snap.Links() {
		path := filepath.Join(dir, filepath.Base(fmt.Sprintf("%03d-%s", i+1, link.Label)))
		n, err := downloadFile(ctx, client, token, link.URL, path)
		if err != nil {
			log.Err(err).Str("url", link.URL).Msg("Download failed")
			return err
		}
		printField(out, "saved", fmt.Sprintf("%s (%d bytes)", path, n))
	}
	return nil
}

func downloadFile(ctx context.Context, client *fhir.Client, token, url, path string) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := client.Download(ctx, token, url, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return n, err
}

func stateText(state bulk.State) string {
	switch state {
	case bulk.Completed:
		return successStyle.Render("Completed")
	case bulk.Failed:
		return errorStyle.Render("Failed")
	case bulk.InProgress:
		return "In Progress"
	default:
		return "Not Started"
	}
}
