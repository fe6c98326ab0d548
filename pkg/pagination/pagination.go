// Package pagination fetches every page of a paginated ESI endpoint. ESI
// reports the page count in the X-Pages response header; a cheap HEAD reads
// it, then the pages are fetched as one concurrent fan-out.
package pagination

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/evetools-dev/eve-tools/pkg/client"
)

// FetchAll retrieves every page of an endpoint. The endpoint must declare a
// page parameter. Responses arrive in completion order; use Merge to
// assemble them.
//
// Individual page failures follow the fan-out's adaptive policy: failed
// envelopes are returned alongside successful ones while the error budget
// holds.
func FetchAll(ctx context.Context, c *client.Client, endpointKey string, args client.Args) ([]*client.Response, error) {
	head, err := c.Head(ctx, endpointKey, args)
	if err != nil {
		return nil, fmt.Errorf("probe page count: %w", err)
	}

	pages := head.Pages()
	if pages == 1 {
		resp, err := c.Get(ctx, endpointKey, args)
		if err != nil {
			return nil, err
		}
		return []*client.Response{resp}, nil
	}

	pageNums := make([]int, pages)
	for i := range pageNums {
		pageNums[i] = i + 1
	}

	loopArgs := make(client.Args, len(args)+1)
	for k, v := range args {
		loopArgs[k] = v
	}
	loopArgs["page"] = pageNums

	return c.GetLoop(ctx, endpointKey, []string{"page"}, loopArgs)
}

// Merge concatenates the top-level JSON arrays of successful responses into
// one array. Failed or blocked envelopes are skipped; the second return
// value reports how many were.
func Merge(responses []*client.Response) (json.RawMessage, int, error) {
	var merged []json.RawMessage
	skipped := 0
	for _, resp := range responses {
		if resp == nil || !resp.OK() {
			skipped++
			continue
		}
		var elems []json.RawMessage
		if err := json.Unmarshal(resp.Data, &elems); err != nil {
			return nil, 0, fmt.Errorf("merge %s page: %w", resp.Endpoint, err)
		}
		merged = append(merged, elems...)
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, 0, err
	}
	return data, skipped, nil
}
