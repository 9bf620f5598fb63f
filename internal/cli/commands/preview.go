package commands

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/openhis/slotkit/internal/cli/ui"
	uiprops "github.com/openhis/slotkit/internal/ui"
	"github.com/openhis/slotkit/internal/ui/term"
)

func newPreviewCommand(opts *globalOptions) *cobra.Command {
	var (
		query    string
		location string
	)

	cmd := &cobra.Command{
		Use:   "preview <slot>",
		Short: "Render the extensions of a slot in the terminal",
		Long: `Resolve every extension of a slot against the backend and draw it in
the terminal. Data-bound units wait up to server.render_timeout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				slot := args[0]
				descs := a.registry.Slot(slot)
				if len(descs) == 0 {
					return &messageError{ui.SlotNotFound(slot, a.registry.Slots(), color.NoColor)}
				}

				props := uiprops.Props{uiprops.KeyBase: a.cfg.Server.SPABase}
				if query != "" {
					props[uiprops.KeyQuery] = query
				}
				if location != "" {
					props[uiprops.KeyLocation] = location
				}

				out := cmd.OutOrStdout()
				for _, d := range descs {
					ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Server.RenderTimeout)
					p := d.Resolve(ctx, props)
					cancel()
					fmt.Fprintln(out, term.Render(d.Kind(), p))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "search query passed to the units")
	cmd.Flags().StringVar(&location, "location", "", "session location passed to the units")
	return cmd
}
