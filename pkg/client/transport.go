package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/evetools-dev/eve-tools/pkg/cache"
)

// Statuses that exhaust the retry budget immediately: the server answered
// decisively and a retry would only burn the error budget. 420 is the ESI
// "error limited" status; hammering on it is how IP bans happen.
func fastExhaust(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusNotFound, 420:
		return true
	}
	return false
}

// send runs admission, dispatches with retries, and applies the failure
// policy. The policy must already be resolved.
func (c *Client) send(ctx context.Context, req *Request, policy Policy) (*Response, error) {
	if c.checker != nil {
		if err := c.checker.Check(ctx, req); err != nil {
			return c.disposeBlocked(req, policy)
		}
	}

	resp, attemptErr := c.dispatch(ctx, req)
	if resp != nil && resp.OK() {
		c.session.RecordSuccess(resp.Expires)
		if err := c.applyHooks(ctx, resp); err != nil {
			return nil, err
		}
		return resp, nil
	}

	c.session.RecordFailure()
	return c.dispose(req, resp, attemptErr, policy)
}

// dispatch runs the retry loop. It returns the last response envelope, nil
// when every attempt died on the wire, together with the last transport
// error.
func (c *Client) dispatch(ctx context.Context, req *Request) (*Response, error) {
	requestsInFlight.Inc()
	defer requestsInFlight.Dec()
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(req.endpoint.Key).Observe(time.Since(start).Seconds())
	}()

	var (
		last    *Response
		lastErr error
	)
	for attempt := 1; attempt <= c.cfg.Attempts; attempt++ {
		if attempt > 1 {
			retriesTotal.Inc()
		}

		resp, err := c.attempt(ctx, req)
		if err != nil {
			if isTimeout(err) {
				// A timeout already held a connection for the full wait;
				// repeating it compounds the damage.
				c.logger.Warn().Str("endpoint", req.endpoint.Key).Err(err).
					Msg("request timed out, not retrying")
				return nil, err
			}
			lastErr = err
			c.budget.Spend()
			c.logger.Debug().Str("endpoint", req.endpoint.Key).Int("attempt", attempt).
				Err(err).Msg("transport error, retrying")
			continue
		}

		last = resp
		if resp.OK() {
			requestsTotal.WithLabelValues(req.endpoint.Key, req.method, strconv.Itoa(resp.Status)).Inc()
			return resp, nil
		}
		if resp.Status == http.StatusNotModified {
			// 304 but the cached payload is gone. Refetch unconditionally;
			// this is a cache incident, not a server failure, so it does not
			// touch the error budget.
			req.header.Del("If-None-Match")
			req.etag = ""
			continue
		}
		if fastExhaust(resp.Status) {
			c.budget.Spend()
			break
		}

		c.budget.Spend()
		c.logger.Debug().Str("endpoint", req.endpoint.Key).Int("attempt", attempt).
			Int("status", resp.Status).Msg("request failed, retrying")
	}

	status := "network_error"
	if last != nil {
		status = strconv.Itoa(last.Status)
	}
	requestsTotal.WithLabelValues(req.endpoint.Key, req.method, status).Inc()
	return last, lastErr
}

// attempt performs one HTTP exchange and decodes it into an envelope.
func (c *Client) attempt(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header = req.header.Clone()

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(httpResp.Body)
	httpResp.Body.Close()
	if err != nil {
		return nil, err
	}

	remain, window, synced := c.budget.SyncFromHeaders(httpResp.Header)
	if !synced {
		remain, window = c.budget.Remaining(), c.budget.Window()
	}

	resp := &Response{
		Status:      httpResp.StatusCode,
		Method:      req.method,
		Endpoint:    req.endpoint.Key,
		Identity:    req.identity,
		Headers:     httpResp.Header,
		Data:        body,
		Reason:      http.StatusText(httpResp.StatusCode),
		ErrorRemain: remain,
		ErrorReset:  window,
	}
	if expires := httpResp.Header.Get("Expires"); expires != "" {
		if t, err := http.ParseTime(expires); err == nil {
			resp.Expires = t
		}
	}

	switch httpResp.StatusCode {
	case http.StatusOK:
		c.storeETag(ctx, req, resp)
	case http.StatusNotModified:
		c.replayCached(ctx, req, resp)
	}
	return resp, nil
}

// storeETag saves the validator and payload of a fresh 200 so the next
// request for the same identity can go out conditional.
func (c *Client) storeETag(ctx context.Context, req *Request, resp *Response) {
	if c.cache == nil || req.method != http.MethodGet {
		return
	}
	etag := resp.Headers.Get("Etag")
	if etag == "" {
		return
	}
	if err := cache.SetETag(ctx, c.cache, req.identity, etag, resp.Data); err != nil {
		c.logger.Warn().Err(err).Str("endpoint", req.endpoint.Key).Msg("failed to store etag entry")
	}
}

// replayCached fills a 304's empty body from the conditional cache.
func (c *Client) replayCached(ctx context.Context, req *Request, resp *Response) {
	if c.cache == nil {
		return
	}
	entry, ok := cache.GetETag(ctx, c.cache, req.identity)
	if !ok {
		// The entry expired between composing and answering. The server
		// response is still valid, there is just nothing to replay.
		c.logger.Warn().Str("endpoint", req.endpoint.Key).
			Msg("304 with no cached payload, conditional entry lost")
		return
	}
	resp.Data = entry.Payload
	resp.FromCache = true
	cache.NotModifiedResponses.Inc()
}

// dispose applies the failure policy to an exhausted request.
func (c *Client) dispose(req *Request, last *Response, lastErr error, policy Policy) (*Response, error) {
	switch policy {
	case PolicySuppress:
		return nil, nil
	case PolicyAdaptive:
		if last != nil && c.budget.Remaining() > c.cfg.AdaptiveThreshold {
			return last, nil
		}
	}

	if last == nil {
		return nil, fmt.Errorf("%s %s: %w", req.method, req.endpoint.Key, lastErr)
	}
	return nil, &ResponseError{
		Endpoint: req.endpoint.Key,
		Method:   req.method,
		Status:   last.Status,
		Reason:   last.Reason,
		Body:     string(last.Data),
	}
}

// disposeBlocked applies the failure policy to an admission rejection.
func (c *Client) disposeBlocked(req *Request, policy Policy) (*Response, error) {
	c.session.RecordBlocked()
	requestsTotal.WithLabelValues(req.endpoint.Key, req.method, "blocked").Inc()

	switch policy {
	case PolicySuppress:
		return nil, nil
	case PolicyAdaptive:
		if c.budget.Remaining() > c.cfg.AdaptiveThreshold {
			return req.blockedResponse(c.budget.Remaining(), c.budget.Window()), nil
		}
	}
	return nil, &BlockedError{Endpoint: req.endpoint.Key, Reason: req.reason}
}

// isTimeout distinguishes the waits that already cost a full deadline from
// transient connection failures worth retrying.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
