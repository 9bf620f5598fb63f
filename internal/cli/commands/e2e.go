package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/openhis/slotkit/internal/cli/ui"
	"github.com/openhis/slotkit/internal/e2e"
	"github.com/openhis/slotkit/internal/navigation"
)

func newE2ECommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "e2e",
		Short: "Drive a running shell in a browser",
	}
	cmd.AddCommand(newSelectLocationCommand(opts))
	return cmd
}

func newSelectLocationCommand(opts *globalOptions) *cobra.Command {
	var (
		baseURL    string
		controlURL string
		headed     bool
	)

	cmd := &cobra.Command{
		Use:   "select-location [path]",
		Short: "Pass the login location picker",
		Long: `Open a page of a running shell with a fresh browser session, pick the
first location offered by the picker and report where the shell lands.

The path defaults to the shell's home page.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger, _, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if baseURL == "" {
				baseURL = cfg.E2E.BaseURL
			}
			path := navigation.Join(cfg.Server.SPABase, "home")
			if len(args) == 1 {
				path = args[0]
			}

			d, err := e2e.Launch(cmd.Context(), e2e.Options{
				BaseURL:    baseURL,
				ControlURL: controlURL,
				BrowserBin: cfg.E2E.BrowserBin,
				Headless:   cfg.E2E.Headless && !headed,
				Timeout:    cfg.E2E.Timeout,
				Logger:     logger.Named("e2e"),
			})
			if err != nil {
				return err
			}
			defer d.Close()

			res, err := d.SelectLocation(cmd.Context(), path)
			if err != nil {
				return err
			}

			kv := ui.NewKeyValueTable(cmd.OutOrStdout(), color.NoColor)
			kv.AddRow("location", res.Location)
			kv.AddRow("url", res.URL)
			kv.AddRow("token", res.Token)
			kv.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "shell origin (default e2e.base_url)")
	cmd.Flags().StringVar(&controlURL, "control-url", "", "DevTools URL of a running browser")
	cmd.Flags().BoolVar(&headed, "headed", false, "show the browser window")
	return cmd
}
