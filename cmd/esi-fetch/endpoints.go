package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/evetools-dev/eve-tools/pkg/catalog"
)

var endpointsCmd = &cobra.Command{
	Use:   "endpoints",
	Short: "List the catalogued ESI endpoints",
	RunE: func(cmd *cobra.Command, _ []string) error {
		keys := catalog.Keys()
		sort.Strings(keys)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ENDPOINT\tMETHOD\tREQUIRED\tSCOPES")
		for _, key := range keys {
			ep, err := catalog.Describe(key)
			if err != nil {
				return err
			}

			var required []string
			for _, p := range ep.Params {
				if p.Required && p.Default == nil {
					required = append(required, p.Name)
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				ep.Key,
				strings.ToUpper(ep.Method),
				strings.Join(required, ","),
				strings.Join(ep.Scopes, " "))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(endpointsCmd)
}
