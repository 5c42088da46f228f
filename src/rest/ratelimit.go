package rest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hendrywilliam/splash/src/structs"
	"github.com/sasha-s/go-csync"
)

// https://discord.com/developers/docs/topics/rate-limits#header-format
const (
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderResetAfter = "X-RateLimit-Reset-After"
	HeaderGlobal     = "X-RateLimit-Global"
	HeaderRetryAfter = "Retry-After"
)

// BucketKey scopes a rate limit to a route and its major parameters.
// Zero ids mean the parameter is absent.
type BucketKey struct {
	Route     string
	GuildID   structs.Snowflake
	ChannelID structs.Snowflake
}

func (k BucketKey) String() string {
	return fmt.Sprintf("%s:%s:%s", BucketRoute(k.Route), k.ChannelID, k.GuildID)
}

// Ids following these segments are major parameters and select their own
// bucket.
var majorParameters = map[string]bool{
	"channels": true,
	"guilds":   true,
	"webhooks": true,
}

// BucketRoute reduces a concrete path to its rate limit template. Minor
// ids become ":id" and interaction or webhook tokens become ":token", so
// /interactions/1/abc/callback and /interactions/2/def/callback share one
// bucket.
func BucketRoute(route string) string {
	if i := strings.IndexByte(route, '?'); i >= 0 {
		route = route[:i]
	}
	parts := strings.Split(route, "/")
	for i := 1; i < len(parts); i++ {
		switch {
		case parts[i-1] == "interactions":
			parts[i] = ":id"
			if i+1 < len(parts) {
				parts[i+1] = ":token"
				i++
			}
		case i >= 2 && parts[i-2] == "webhooks":
			parts[i] = ":token"
		case majorParameters[parts[i-1]]:
		case isSnowflake(parts[i]):
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

func isSnowflake(s string) bool {
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}

// Bucket holds the last known limit state of one BucketKey. Requests on the
// same bucket are serialized through its lock.
type Bucket struct {
	mu csync.Mutex

	key       string
	known     bool
	remaining int
	reset     time.Time
}

func (b *Bucket) Key() string {
	return b.key
}

// Lock blocks until the bucket is free or ctx is done.
func (b *Bucket) Lock(ctx context.Context) error {
	return b.mu.CLock(ctx)
}

func (b *Bucket) Unlock() {
	b.mu.Unlock()
}

// RateLimiter maps bucket keys to their limit state. Keys are route
// templates, so the map stays bounded by the routes in use. Entries are
// overwritten by the next response on the same bucket.
type RateLimiter struct {
	mu          sync.Mutex
	buckets     map[string]*Bucket
	globalReset time.Time

	now func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*Bucket),
		now:     time.Now,
	}
}

// Bucket returns the bucket for key, creating an empty one on first use.
func (rl *RateLimiter) Bucket(key BucketKey) *Bucket {
	k := key.String()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.buckets[k]
	if !ok {
		b = &Bucket{key: k}
		rl.buckets[k] = b
	}
	return b
}

// State returns the remaining count and reset time of a bucket. ok is false
// when no response has been recorded for it yet.
func (rl *RateLimiter) State(key BucketKey) (remaining int, reset time.Time, ok bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, found := rl.buckets[key.String()]
	if !found || !b.known {
		return 0, time.Time{}, false
	}
	return b.remaining, b.reset, true
}

// Delay returns how long a request on b has to wait before it may be sent.
func (rl *RateLimiter) Delay(b *Bucket) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	var until time.Time
	if rl.globalReset.After(now) {
		until = rl.globalReset
	}
	if b.known && b.remaining == 0 && b.reset.After(now) && b.reset.After(until) {
		until = b.reset
	}
	if until.IsZero() {
		return 0
	}
	return until.Sub(now)
}

// Wait suspends the caller until b may be used again.
func (rl *RateLimiter) Wait(ctx context.Context, b *Bucket) error {
	d := rl.Delay(b)
	if d <= 0 {
		return nil
	}
	return sleep(ctx, d)
}

// Update records the limit headers of a response. Responses without limit
// headers leave the bucket untouched.
func (rl *RateLimiter) Update(b *Bucket, header http.Header) {
	rawRemaining := header.Get(HeaderRemaining)
	if rawRemaining == "" {
		return
	}
	remaining, err := strconv.Atoi(rawRemaining)
	if err != nil {
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	reset := now
	if raw := header.Get(HeaderReset); raw != "" {
		if epoch, err := strconv.ParseFloat(raw, 64); err == nil {
			reset = epochToTime(epoch)
		}
	} else if raw := header.Get(HeaderResetAfter); raw != "" {
		if after, err := strconv.ParseFloat(raw, 64); err == nil {
			reset = now.Add(secondsToDuration(after))
		}
	}
	b.known = true
	b.remaining = remaining
	b.reset = reset
}

// BlockGlobal stops every bucket from being used for d.
func (rl *RateLimiter) BlockGlobal(d time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	until := rl.now().Add(d)
	if until.After(rl.globalReset) {
		rl.globalReset = until
	}
}

func epochToTime(epoch float64) time.Time {
	sec := int64(epoch)
	nsec := int64((epoch - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
