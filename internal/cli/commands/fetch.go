package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/openhis/slotkit/internal/cli/ui"
	"github.com/openhis/slotkit/internal/resource"
)

func newFetchCommand(opts *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "fetch <endpoint> [name=value...]",
		Short: "Read a backend collection",
		Long: `Read a collection from the backend, following next links, and print
the results as JSON.

  slotkit fetch /ws/rest/v1/location tag="Login Location"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := parseRequest(args[0], args[1:])
			if err != nil {
				return err
			}
			return withApp(opts, func(a *app) error {
				var items []json.RawMessage
				err := ui.WithSpinner(cmd.ErrOrStderr(), "fetching "+req.Key(), color.NoColor, func() error {
					var err error
					items, err = resource.FetchAll[json.RawMessage](cmd.Context(), a.client, req, limit)
					return err
				})
				if err != nil {
					return err
				}

				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(items)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many results (0 for all)")
	return cmd
}

// parseRequest builds a request from an endpoint and name=value pairs.
func parseRequest(endpoint string, pairs []string) (resource.Request, error) {
	if !strings.HasPrefix(endpoint, "/") {
		return resource.Request{}, fmt.Errorf("endpoint must start with '/', got: %s", endpoint)
	}
	kv := make([]string, 0, 2*len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return resource.Request{}, fmt.Errorf("query parameter must be name=value, got: %s", p)
		}
		kv = append(kv, name, value)
	}
	return resource.NewRequest(endpoint, kv...), nil
}
