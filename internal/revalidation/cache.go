// Package revalidation keeps read-through caches of list and lookup
// endpoints and lets mutations declare which entries became stale.
package revalidation

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "revalidate"
	versionPrefix = "revalidate:version:"
	keyVerPrefix  = "revalidate:keyversion:"
	// Channel carries "<endpoint>=<version>" bump messages.
	Channel = "revalidate.bump"
)

// Key identifies one cached response by endpoint and filter params.
type Key struct {
	Endpoint string
	Params   url.Values
}

// NewKey builds a key from alternating name/value pairs. Empty values are skipped.
func NewKey(endpoint string, pairs ...string) Key {
	params := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			continue
		}
		params.Add(pairs[i], pairs[i+1])
	}
	return Key{Endpoint: endpoint, Params: params}
}

// String renders the canonical form; params are sorted by name.
func (k Key) String() string {
	if len(k.Params) == 0 {
		return k.Endpoint
	}
	return k.Endpoint + "?" + k.Params.Encode()
}

// Loader produces the value to cache on a miss.
type Loader func(context.Context) (any, error)

// Cache wraps Redis based caching with per-endpoint versioning.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool { return c != nil && c.client != nil }

// Version returns the current version of endpoint, initialising when missing.
func (c *Cache) Version(ctx context.Context, endpoint string) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	vkey := versionPrefix + endpoint
	ver, err := c.client.Get(ctx, vkey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, vkey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, vkey).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// keyVersion returns the per-key counter raised by Invalidate, 0 when unset.
func (c *Cache) keyVersion(ctx context.Context, key Key) (int64, error) {
	ver, err := c.client.Get(ctx, keyVerPrefix+key.String()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return ver, err
}

// storageKey embeds both the endpoint and the key version, so a value
// loaded before an invalidation is written to an orphaned slot.
func (c *Cache) storageKey(ctx context.Context, key Key) (string, error) {
	ver, err := c.Version(ctx, key.Endpoint)
	if err != nil {
		return "", err
	}
	kver, err := c.keyVersion(ctx, key)
	if err != nil {
		return "", err
	}
	return strings.Join([]string{
		keyPrefix, key.Endpoint,
		"v" + strconv.FormatInt(ver, 10) + "." + strconv.FormatInt(kver, 10),
		key.Params.Encode(),
	}, ":"), nil
}

// Read loads a cached value into dest or populates it using loader.
func (c *Cache) Read(ctx context.Context, key Key, dest any, loader Loader) error {
	if loader == nil {
		return errors.New("revalidation: loader required")
	}
	if !c.enabled() {
		return load(ctx, dest, loader)
	}
	skey, err := c.storageKey(ctx, key)
	if err != nil {
		return err
	}
	payload, err := c.client.Get(ctx, skey).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		return err
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, skey, raw, c.ttl).Err(); err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func load(ctx context.Context, dest any, loader Loader) error {
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Invalidate raises the version of each exact key and drops its current entry.
func (c *Cache) Invalidate(ctx context.Context, keys ...Key) error {
	if !c.enabled() || len(keys) == 0 {
		return nil
	}
	for _, k := range keys {
		stale, err := c.storageKey(ctx, k)
		if err != nil {
			return err
		}
		vkey := keyVerPrefix + k.String()
		if err := c.client.Incr(ctx, vkey).Err(); err != nil {
			return err
		}
		// Counters outlive every entry they guard.
		if c.ttl > 0 {
			if err := c.client.Expire(ctx, vkey, 2*c.ttl).Err(); err != nil {
				return err
			}
		}
		if err := c.client.Del(ctx, stale).Err(); err != nil {
			return err
		}
	}
	return nil
}

// InvalidateEndpoint orphans every cached entry of the endpoints and publishes the bump.
func (c *Cache) InvalidateEndpoint(ctx context.Context, endpoints ...string) error {
	if !c.enabled() {
		return nil
	}
	for _, endpoint := range endpoints {
		ver, err := c.client.Incr(ctx, versionPrefix+endpoint).Result()
		if err != nil {
			return err
		}
		msg := endpoint + "=" + strconv.FormatInt(ver, 10)
		if err := c.client.Publish(ctx, Channel, msg).Err(); err != nil {
			return err
		}
	}
	return nil
}

// ListenForInvalidation subscribes to version bumps published by peers
// and raises the local version when a peer is ahead.
func (c *Cache) ListenForInvalidation(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	pubsub := c.client.Subscribe(ctx, Channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				c.applyBump(ctx, msg.Payload)
			}
		}
	}()
	return nil
}

func (c *Cache) applyBump(ctx context.Context, payload string) {
	endpoint, raw, ok := strings.Cut(payload, "=")
	if !ok || endpoint == "" {
		return
	}
	ver, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		_ = c.client.Incr(ctx, versionPrefix+endpoint).Err()
		return
	}
	current, err := c.Version(ctx, endpoint)
	if err == nil && current < ver {
		_ = c.client.Set(ctx, versionPrefix+endpoint, ver, 0).Err()
	}
}
