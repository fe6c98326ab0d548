package client

import (
	"context"
	"fmt"
)

// Hook post-processes a successful response in place. Formatter hooks
// reshape the payload; persister hooks write it somewhere durable. Hooks run
// synchronously on the dispatching goroutine and must be safe for concurrent
// use across responses.
type Hook func(ctx context.Context, resp *Response) error

// RegisterFormatter installs the formatter for an endpoint. Registration is
// keyed by endpoint; a second registration replaces the first.
func (c *Client) RegisterFormatter(endpointKey string, hook Hook) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.formatters[endpointKey] = hook
}

// RegisterPersister installs the persister for an endpoint.
func (c *Client) RegisterPersister(endpointKey string, hook Hook) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.persisters[endpointKey] = hook
}

// applyHooks runs the endpoint's formatter and then its persister against a
// successful response, flagging the envelope for each stage that ran.
func (c *Client) applyHooks(ctx context.Context, resp *Response) error {
	c.hookMu.RLock()
	formatter := c.formatters[resp.Endpoint]
	persister := c.persisters[resp.Endpoint]
	c.hookMu.RUnlock()

	if formatter != nil {
		if err := formatter(ctx, resp); err != nil {
			return fmt.Errorf("format %s response: %w", resp.Endpoint, err)
		}
		resp.Formatted = true
	}
	if persister != nil {
		if err := persister(ctx, resp); err != nil {
			return fmt.Errorf("persist %s response: %w", resp.Endpoint, err)
		}
		resp.Stored = true
	}
	return nil
}
