package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sundayezeilo/shortlink/internal/app"
	"github.com/sundayezeilo/shortlink/internal/shortener"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate up|down",
		Short:     "Apply or roll back the database schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadWorkerConfig()
			if err != nil {
				return err
			}
			if err := app.Migrate(cfg, logger, args[0] == "up"); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: done\n", args[0])
			return nil
		},
	}
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one maintenance cycle and print its report",
		Long: `Deactivates expired links, deletes click events past retention and
removes dead links, then prints the cycle report as JSON. Exits non-zero when
any step failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCore(cmd.Context(), func(core *app.Core) error {
				report := core.Sweeper.RunOnce(cmd.Context())
				if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
				if !report.OK() {
					return fmt.Errorf("sweep finished with %d error(s)", len(report.Errors))
				}
				return nil
			})
		},
	}
}

type createOptions struct {
	code      string
	owner     string
	expiresIn time.Duration
}

func newCreateCmd() *cobra.Command {
	var opts createOptions

	cmd := &cobra.Command{
		Use:   "create <url>",
		Short: "Create a short link",
		Example: `  linkctl create https://example.com/launch
  linkctl create https://example.com/sale --code spring-sale --expires-in 720h`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.expiresIn < 0 {
				return fmt.Errorf("--expires-in must not be negative")
			}

			req := shortener.CreateLinkRequest{
				TargetURL:  args[0],
				CustomCode: opts.code,
				OwnerID:    opts.owner,
			}
			if opts.expiresIn > 0 {
				at := time.Now().Add(opts.expiresIn).UTC()
				req.ExpiresAt = &at
			}

			return withCore(cmd.Context(), func(core *app.Core) error {
				link, created, err := core.Service.Create(cmd.Context(), req)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), linkView{Link: link, Created: &created})
			})
		},
	}

	cmd.Flags().StringVar(&opts.code, "code", "", "custom short code (3-32 characters)")
	cmd.Flags().StringVar(&opts.owner, "owner", "", "owner id recorded on the link")
	cmd.Flags().DurationVar(&opts.expiresIn, "expires-in", 0, "lifetime of the link, e.g. 72h (0 means never)")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "stats <code>",
		Short: "Show a link and its most recent clicks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(cmd.Context(), func(core *app.Core) error {
				stats, err := core.Service.Stats(cmd.Context(), args[0], recent)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), statsView{
					Link:         linkView{Link: stats.Link},
					RecentClicks: stats.RecentClicks,
				})
			})
		},
	}

	cmd.Flags().IntVar(&recent, "recent", shortener.DefaultRecentClicks, "number of recent clicks to show")
	return cmd
}

type linkView struct {
	shortener.Link
	Created *bool `json:"Created,omitempty"`
}

type statsView struct {
	Link         linkView
	RecentClicks []shortener.ClickEvent
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
