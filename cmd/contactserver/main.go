package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"contact-form/config"
	"contact-form/internal/app"
	"contact-form/internal/submissions"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts app.Options

	root := &cobra.Command{
		Use:     "contactserver",
		Short:   "Serve the contact form page and its submission endpoint",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx, opts)
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.ConfigPath, "config", "config.json", "path to config.json")
	root.Flags().StringVar(&opts.LogDir, "log-dir", "data", "directory for the server log")
	root.Flags().DurationVar(&opts.ReadTimeout, "read-timeout", 10*time.Second, "request header read timeout")
	root.Flags().BoolVar(&opts.Debug, "debug", false, "enable the diagnostic timeline in served pages")

	root.AddCommand(newSubmissionsCmd(&opts.ConfigPath))
	return root
}

func newSubmissionsCmd(configPath *string) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "submissions",
		Short: "List stored contact form submissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				cfg, err := config.Load(*configPath)
				if err != nil {
					cfg = config.Default()
				}
				path = cfg.Submissions.Path
			}
			list, err := submissions.NewStore(path).List()
			if err != nil {
				return fmt.Errorf("load submissions: %w", err)
			}
			return printSubmissions(cmd.OutOrStdout(), list)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "submission log to read (defaults to the configured path)")
	return cmd
}

func printSubmissions(w io.Writer, list []submissions.Submission) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No submissions.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSUBMITTED\tNAME\tEMAIL\tFILES")
	for _, sub := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			sub.ID,
			sub.SubmittedAt.Format(time.RFC3339),
			sub.Name,
			sub.Email,
			strings.Join(sub.Files, ","),
		)
	}
	return tw.Flush()
}

