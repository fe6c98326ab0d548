// Package handler provides the stock post-processing hooks for market
// endpoints: formatters that normalize payloads into stable record schemas
// and persisters that write them into a cache store. Hooks are registered on
// a client per endpoint; see client.RegisterFormatter.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/evetools-dev/eve-tools/pkg/cache"
	"github.com/evetools-dev/eve-tools/pkg/client"
)

// HistoryRecord is one day of market history for a type in a region.
type HistoryRecord struct {
	Date       string  `json:"date"`
	Average    float64 `json:"average"`
	Highest    float64 `json:"highest"`
	Lowest     float64 `json:"lowest"`
	OrderCount int64   `json:"order_count"`
	Volume     int64   `json:"volume"`
}

// OrderRecord is one live market order.
type OrderRecord struct {
	OrderID      int64   `json:"order_id"`
	TypeID       int64   `json:"type_id"`
	LocationID   int64   `json:"location_id"`
	SystemID     int64   `json:"system_id"`
	IsBuyOrder   bool    `json:"is_buy_order"`
	Price        float64 `json:"price"`
	VolumeRemain int64   `json:"volume_remain"`
	VolumeTotal  int64   `json:"volume_total"`
	MinVolume    int64   `json:"min_volume"`
	Duration     int64   `json:"duration"`
	Issued       string  `json:"issued"`
	Range        string  `json:"range"`
}

// MarketHistoryFormatter normalizes a market history payload: the raw array
// is decoded into HistoryRecords and re-encoded, dropping any fields outside
// the schema. Downstream consumers get a payload whose shape cannot drift
// with the server.
func MarketHistoryFormatter() client.Hook {
	return func(_ context.Context, resp *client.Response) error {
		var records []HistoryRecord
		if err := resp.Unmarshal(&records); err != nil {
			return fmt.Errorf("decode history payload: %w", err)
		}
		data, err := json.Marshal(records)
		if err != nil {
			return err
		}
		resp.Data = data
		return nil
	}
}

// MarketOrdersFormatter normalizes a market orders payload the same way.
func MarketOrdersFormatter() client.Hook {
	return func(_ context.Context, resp *client.Response) error {
		var records []OrderRecord
		if err := resp.Unmarshal(&records); err != nil {
			return fmt.Errorf("decode orders payload: %w", err)
		}
		data, err := json.Marshal(records)
		if err != nil {
			return err
		}
		resp.Data = data
		return nil
	}
}

// PayloadPersister stores the response payload in a cache store under the
// request identity. The TTL tracks the server-declared expiry when present,
// falling back to fallbackTTL.
func PayloadPersister(store cache.Store, fallbackTTL time.Duration) client.Hook {
	return func(ctx context.Context, resp *client.Response) error {
		ttl := fallbackTTL
		if !resp.Expires.IsZero() {
			if until := time.Until(resp.Expires); until > 0 {
				ttl = until
			}
		}
		key := "esi:payload:" + resp.Identity
		if err := store.Set(ctx, key, resp.Data, ttl); err != nil {
			return fmt.Errorf("persist payload: %w", err)
		}
		return nil
	}
}

// LoadPayload retrieves a payload previously written by PayloadPersister.
func LoadPayload(ctx context.Context, store cache.Store, identity string) (json.RawMessage, error) {
	data, err := store.Get(ctx, "esi:payload:"+identity)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// RegisterMarketHooks installs the stock market formatters and, when store
// is non-nil, payload persistence on both market endpoints.
func RegisterMarketHooks(c *client.Client, store cache.Store, fallbackTTL time.Duration) {
	c.RegisterFormatter("/markets/{region_id}/history/", MarketHistoryFormatter())
	c.RegisterFormatter("/markets/{region_id}/orders/", MarketOrdersFormatter())
	if store != nil {
		c.RegisterPersister("/markets/{region_id}/history/", PayloadPersister(store, fallbackTTL))
		c.RegisterPersister("/markets/{region_id}/orders/", PayloadPersister(store, fallbackTTL))
	}
}
