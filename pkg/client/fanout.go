package client

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"sync"

	"golang.org/x/sync/errgroup"
)

// GetLoop fans one GET endpoint out over every combination of the looped
// arguments. Each name in loop must map to a slice in args; the request
// family is the Cartesian product of those slices, with the remaining
// arguments shared.
//
// Requests run concurrently, bounded by MaxConcurrency, under
// PolicyAdaptive: individual failures come back as failed envelopes until
// the error budget runs low, at which point the whole fan-out aborts with an
// error. Responses arrive in completion order, not input order; suppressed
// admission rejections under a healthy budget come back as blocked
// envelopes, so the result length matches the combination count unless the
// fan-out aborts.
func (c *Client) GetLoop(ctx context.Context, endpointKey string, loop []string, args Args) ([]*Response, error) {
	combos, err := expandLoop(loop, args)
	if err != nil {
		return nil, err
	}

	c.session.Start()
	defer c.session.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.MaxConcurrency)

	var (
		mu  sync.Mutex
		out []*Response
	)
	policy := PolicyDefault.resolve(true)
	for _, combo := range combos {
		combo := combo
		g.Go(func() error {
			req, err := c.compose(ctx, http.MethodGet, endpointKey, combo)
			if err != nil {
				return err
			}
			resp, err := c.send(ctx, req, policy)
			if err != nil {
				return err
			}
			if resp != nil {
				mu.Lock()
				out = append(out, resp)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// expandLoop builds the Cartesian product of the looped arguments. Every
// combination is an independent Args copy holding one element per looped
// name.
func expandLoop(loop []string, args Args) ([]Args, error) {
	if len(loop) == 0 {
		return nil, fmt.Errorf("fan-out requires at least one looped argument")
	}

	elements := make([][]any, len(loop))
	for i, name := range loop {
		raw, ok := args[name]
		if !ok {
			return nil, fmt.Errorf("looped argument %q not supplied", name)
		}
		v := reflect.ValueOf(raw)
		if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			return nil, fmt.Errorf("looped argument %q must be a slice, got %T", name, raw)
		}
		if v.Len() == 0 {
			return nil, fmt.Errorf("looped argument %q is empty", name)
		}
		elems := make([]any, v.Len())
		for j := 0; j < v.Len(); j++ {
			elems[j] = v.Index(j).Interface()
		}
		elements[i] = elems
	}

	total := 1
	for _, elems := range elements {
		total *= len(elems)
	}

	combos := make([]Args, 0, total)
	indices := make([]int, len(loop))
	for {
		combo := make(Args, len(args))
		for name, value := range args {
			combo[name] = value
		}
		for i, name := range loop {
			combo[name] = elements[i][indices[i]]
		}
		combos = append(combos, combo)

		// Odometer increment over the index vector.
		pos := len(indices) - 1
		for pos >= 0 {
			indices[pos]++
			if indices[pos] < len(elements[pos]) {
				break
			}
			indices[pos] = 0
			pos--
		}
		if pos < 0 {
			break
		}
	}
	return combos, nil
}
