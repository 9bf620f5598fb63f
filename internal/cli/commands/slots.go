package commands

import (
	"encoding/json"
	"slices"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/openhis/slotkit/internal/cli/ui"
	"github.com/openhis/slotkit/internal/extension"
)

func newSlotsCommand(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "slots [slot]",
		Short: "List registered extensions",
		Long:  "List every installed extension grouped by slot, or the extensions of one slot.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				entries := a.registry.Snapshot()
				if len(args) == 1 {
					var err error
					if entries, err = filterSlot(a.registry, entries, args[0]); err != nil {
						return err
					}
				}

				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(entries)
				}

				tbl := ui.NewTable(out, color.NoColor, "SLOT", "NAME", "ORDER", "KIND", "MODULE", "PATH")
				for _, e := range entries {
					tbl.AddRow(e.Slot, e.Name, strconv.Itoa(e.Order), e.Kind, e.Module, e.Path)
				}
				tbl.Render()
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")
	return cmd
}

// filterSlot keeps the entries of slot. An unknown slot is reported with
// the closest known slot names.
func filterSlot(reg *extension.Registry, entries []extension.Entry, slot string) ([]extension.Entry, error) {
	known := reg.Slots()
	if !slices.Contains(known, slot) {
		return nil, &messageError{ui.SlotNotFound(slot, known, color.NoColor)}
	}
	out := entries[:0:0]
	for _, e := range entries {
		if e.Slot == slot {
			out = append(out, e)
		}
	}
	return out, nil
}
