package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evetools-dev/eve-tools/pkg/client"
	"github.com/evetools-dev/eve-tools/pkg/pagination"
)

var (
	fetchArgs     []string
	fetchLoops    []string
	fetchAllPages bool
	fetchOutput   string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <endpoint>",
	Short: "Fetch one endpoint, optionally fanned out or across all pages",
	Long: `Fetch dispatches a GET against a catalogued endpoint.

Arguments are passed as repeated --arg name=value flags. A --loop flag names
an argument whose comma-separated values fan the request out over every
combination:

  esi-fetch fetch /markets/{region_id}/orders/ --arg region_id=10000002
  esi-fetch fetch /markets/{region_id}/history/ \
      --arg region_id=10000002 --arg type_id=34,35,36 --loop type_id
  esi-fetch fetch /markets/{region_id}/orders/ --arg region_id=10000002 --all-pages`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringArrayVar(&fetchArgs, "arg", nil, "endpoint argument as name=value")
	fetchCmd.Flags().StringArrayVar(&fetchLoops, "loop", nil, "argument to fan out over (repeatable)")
	fetchCmd.Flags().BoolVar(&fetchAllPages, "all-pages", false, "fetch and merge every page")
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "write payload to file instead of stdout")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, cliArgs []string) error {
	logger := setupLogger()
	c, cleanup, err := buildClient(logger)
	if err != nil {
		return err
	}
	defer cleanup()

	endpoint := cliArgs[0]
	args, err := parseArgs(fetchArgs, fetchLoops)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var payload json.RawMessage
	switch {
	case len(fetchLoops) > 0:
		responses, err := c.GetLoop(ctx, endpoint, fetchLoops, args)
		if err != nil {
			return err
		}
		merged, skipped, err := pagination.Merge(responses)
		if err != nil {
			return err
		}
		if skipped > 0 {
			logger.Warn().Int("skipped", skipped).Msg("fan-out responses failed and were skipped")
		}
		payload = merged
	case fetchAllPages:
		responses, err := pagination.FetchAll(ctx, c, endpoint, args)
		if err != nil {
			return err
		}
		merged, skipped, err := pagination.Merge(responses)
		if err != nil {
			return err
		}
		if skipped > 0 {
			logger.Warn().Int("skipped", skipped).Msg("pages failed and were skipped")
		}
		payload = merged
	default:
		resp, err := c.Get(ctx, endpoint, args)
		if err != nil {
			return err
		}
		payload = resp.Data
	}

	stats := c.Session().Snapshot()
	logger.Info().
		Int("attempted", stats.Attempted).
		Int("succeeded", stats.Succeeded).
		Int("failed", stats.Failed).
		Int("blocked", stats.Blocked).
		Msg("fetch finished")

	if fetchOutput != "" {
		return os.WriteFile(fetchOutput, payload, 0o644)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(payload))
	return nil
}

// parseArgs turns name=value flags into client arguments. Values of looped
// names split on commas into slices; other values become int, bool or string
// by inspection.
func parseArgs(pairs, loops []string) (client.Args, error) {
	looped := make(map[string]bool, len(loops))
	for _, name := range loops {
		looped[name] = true
	}

	args := make(client.Args, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("argument %q is not name=value", pair)
		}
		if looped[name] {
			parts := strings.Split(raw, ",")
			values := make([]any, len(parts))
			for i, p := range parts {
				values[i] = parseValue(p)
			}
			args[name] = values
			continue
		}
		args[name] = parseValue(raw)
	}

	for _, name := range loops {
		if _, ok := args[name]; !ok {
			return nil, fmt.Errorf("looped argument %q has no --arg values", name)
		}
	}
	return args, nil
}

func parseValue(raw string) any {
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}
