package cmd

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ruleguard/alerting"
	"ruleguard/bootstrap"
	"ruleguard/config"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// alertFlags are the connection flags shared by the alerts subcommands
type alertFlags struct {
	url        string
	basePath   string
	timeout    time.Duration
	xsrfHeader string
	verbose    bool
}

func newAlertsCmd() *cobra.Command {
	flags := &alertFlags{}

	alertsCmd := &cobra.Command{
		Use:     "alerts",
		Aliases: []string{"alert"},
		Short:   "Manage alerts through the alerting API",
		Long: `Manage alerts through the alerting API.

Connection settings default to the alerting section of config.yaml and the
RULEGUARD_ALERTING_* environment variables; flags override both.`,
	}

	pf := alertsCmd.PersistentFlags()
	pf.StringVar(&flags.url, "url", "", "Alerting service URL, e.g. http://localhost:5601")
	pf.StringVar(&flags.basePath, "base-path", alerting.BaseAlertAPIPath, "Base path of the alert API")
	pf.DurationVar(&flags.timeout, "timeout", 30*time.Second, "Timeout for the whole operation")
	pf.StringVar(&flags.xsrfHeader, "xsrf-header", "ruleguard", "Value sent in the kbn-xsrf header")
	pf.BoolVar(&flags.verbose, "verbose", false, "Log every request")

	alertsCmd.AddCommand(newAlertTypesCmd(flags))
	alertsCmd.AddCommand(newAlertListCmd(flags))
	alertsCmd.AddCommand(newAlertDeleteCmd(flags))
	alertsCmd.AddCommand(newAlertBulkCmd(flags, "enable", "Enable alerts", func(ctx context.Context, c *alerting.Client, ids []string) error {
		return c.SetEnabled(ctx, ids, true)
	}))
	alertsCmd.AddCommand(newAlertBulkCmd(flags, "disable", "Disable alerts", func(ctx context.Context, c *alerting.Client, ids []string) error {
		return c.SetEnabled(ctx, ids, false)
	}))
	alertsCmd.AddCommand(newAlertBulkCmd(flags, "mute", "Mute all instances of alerts", func(ctx context.Context, c *alerting.Client, ids []string) error {
		return c.SetMuted(ctx, ids, true)
	}))
	alertsCmd.AddCommand(newAlertBulkCmd(flags, "unmute", "Unmute all instances of alerts", func(ctx context.Context, c *alerting.Client, ids []string) error {
		return c.SetMuted(ctx, ids, false)
	}))

	return alertsCmd
}

// initAlertClient builds a client from config.yaml, environment and flags
func initAlertClient(cmd *cobra.Command, flags *alertFlags) (*alerting.Client, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	baseURL := cfg.Alerting.URL
	basePath := cfg.Alerting.BasePath
	timeout := cfg.Alerting.Timeout
	xsrf := cfg.Alerting.XSRFHeader

	changed := cmd.Flags().Changed
	if changed("url") {
		baseURL = flags.url
	}
	if changed("base-path") {
		basePath = flags.basePath
	}
	if changed("timeout") {
		timeout = flags.timeout
	}
	if changed("xsrf-header") {
		xsrf = flags.xsrfHeader
	}
	if baseURL == "" {
		return nil, fmt.Errorf("alerting URL not configured: pass --url or set %s_ALERTING_URL", config.EnvPrefix)
	}

	logger := zap.NewNop().Sugar()
	if flags.verbose && !outputJSON {
		_, sugar, err := bootstrap.InitLogger("debug")
		if err != nil {
			return nil, err
		}
		logger = sugar
	}

	opts := []alerting.Option{
		alerting.WithBasePath(basePath),
		alerting.WithHTTPClient(&http.Client{Timeout: timeout}),
		alerting.WithLogger(logger),
		alerting.WithCircuitBreaker(cfg.Alerting.BreakerFailures, cfg.Alerting.BreakerCooldown),
	}
	if xsrf != "" {
		opts = append(opts, alerting.WithHeader("kbn-xsrf", xsrf))
	}
	return alerting.NewClient(baseURL, opts...)
}

func newAlertTypesCmd(flags *alertFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List registered alert types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
			defer cancel()

			client, err := initAlertClient(cmd, flags)
			if err != nil {
				return err
			}

			types, err := client.ListTypes(ctx)
			if err != nil {
				return fmt.Errorf("failed to list alert types: %w", err)
			}

			if outputJSON {
				return outputAsJSON(cmd.OutOrStdout(), types)
			}
			renderAlertTypes(cmd.OutOrStdout(), types)
			return nil
		},
	}
}

func newAlertListCmd(flags *alertFlags) *cobra.Command {
	var (
		page    int
		perPage int
		search  string
		tags    []string
		types   []string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls", "find"},
		Short:   "Find alerts",
		Long:    "Find alerts by name, requiring all given tags and any of the given alert types.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
			defer cancel()

			client, err := initAlertClient(cmd, flags)
			if err != nil {
				return err
			}

			result, err := client.List(ctx, alerting.ListOptions{
				Page:        alerting.Page{Index: page - 1, Size: perPage},
				SearchText:  search,
				TagsFilter:  tags,
				TypesFilter: types,
			})
			if err != nil {
				return fmt.Errorf("failed to list alerts: %w", err)
			}

			if outputJSON {
				return outputAsJSON(cmd.OutOrStdout(), result)
			}
			renderAlertPage(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number, starting at 1")
	cmd.Flags().IntVar(&perPage, "per-page", 20, "Alerts per page")
	cmd.Flags().StringVar(&search, "search", "", "Search alert names")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Require tag (repeatable)")
	cmd.Flags().StringSliceVar(&types, "type", nil, "Accept alert type (repeatable)")

	return cmd
}

func newAlertDeleteCmd(flags *alertFlags) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "delete <alert-id>...",
		Aliases: []string{"rm", "remove"},
		Short:   "Delete alerts",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force && !confirm(cmd, fmt.Sprintf("Are you sure you want to delete %d alert(s)?", len(args))) {
				fmt.Fprintln(cmd.OutOrStdout(), "Deletion cancelled")
				return nil
			}
			return runBulk(cmd, flags, "delete", args, func(ctx context.Context, c *alerting.Client, ids []string) error {
				return c.Delete(ctx, ids)
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")

	return cmd
}

type bulkFunc func(ctx context.Context, c *alerting.Client, ids []string) error

func newAlertBulkCmd(flags *alertFlags, name, short string, fn bulkFunc) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <alert-id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBulk(cmd, flags, name, args, fn)
		},
	}
}

// bulkResult is the JSON output of a bulk command
type bulkResult struct {
	Operation string   `json:"operation"`
	IDs       []string `json:"ids"`
	Success   bool     `json:"success"`
	Error     string   `json:"error,omitempty"`
}

func runBulk(cmd *cobra.Command, flags *alertFlags, op string, ids []string, fn bulkFunc) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
	defer cancel()

	client, err := initAlertClient(cmd, flags)
	if err != nil {
		return err
	}

	var s *spinner.Spinner
	if !outputJSON && !quiet {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
		s.Suffix = fmt.Sprintf(" Running %s on %d alert(s)...", op, len(ids))
		s.Start()
	}

	err = fn(ctx, client, ids)

	if s != nil {
		s.Stop()
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		res := bulkResult{Operation: op, IDs: ids, Success: err == nil}
		if err != nil {
			res.Error = err.Error()
		}
		if encErr := outputAsJSON(out, res); encErr != nil {
			return encErr
		}
	}
	if err != nil {
		return fmt.Errorf("%s failed: %w", op, err)
	}

	if !outputJSON && !quiet {
		successColor.Fprintf(out, "✓ %s succeeded for %d alert(s)\n", op, len(ids))
	}
	return nil
}

// confirm asks a yes/no question on the command's input; anything but y/yes
// (including EOF) is a no.
func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", prompt)
	input, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && input == "" {
		fmt.Fprintln(cmd.OutOrStdout())
		return false
	}
	input = strings.TrimSpace(strings.ToLower(input))
	return input == "y" || input == "yes"
}
