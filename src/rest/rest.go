package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hendrywilliam/splash/src/structs"
)

const (
	DefaultAPIVersion = 10
	DefaultTimeout    = 15 * time.Second
	UserAgent         = "DiscordBot (https://github.com/hendrywilliam/splash, 1.0.0)"
)

// DefaultBaseURL returns the REST base for an API version.
func DefaultBaseURL(version int) string {
	return fmt.Sprintf("https://discord.com/api/v%d", version)
}

// RESTClient is what the API wrappers need from the request layer.
type RESTClient interface {
	URL() string
	Request(ctx context.Context, method string, route string, body any, options *RESTOptions) ([]byte, error)
	Get(ctx context.Context, route string, options *RESTOptions) ([]byte, error)
	Post(ctx context.Context, route string, body any, options *RESTOptions) ([]byte, error)
	Put(ctx context.Context, route string, body any, options *RESTOptions) ([]byte, error)
	Patch(ctx context.Context, route string, body any, options *RESTOptions) ([]byte, error)
	Delete(ctx context.Context, route string, options *RESTOptions) ([]byte, error)
}

type REST struct {
	httpBaseURL string
	httpClient  *http.Client
	botToken    string
	limiter     *RateLimiter
	log         *slog.Logger
}

type RESTArguments struct {
	BotToken string
	// BaseURL defaults to https://discord.com/api/v10.
	BaseURL string
	// Timeout bounds a single HTTP round trip, default 15s.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type RESTOptions struct {
	Headers map[string]string
	Query   url.Values
	// Major parameters, they select the rate limit bucket.
	GuildID   structs.Snowflake
	ChannelID structs.Snowflake
	// Reason is written to the guild audit log.
	Reason string
}

func NewREST(args RESTArguments) *REST {
	if args.BaseURL == "" {
		args.BaseURL = DefaultBaseURL(DefaultAPIVersion)
	}
	if args.Timeout <= 0 {
		args.Timeout = DefaultTimeout
	}
	if args.HTTPClient == nil {
		args.HTTPClient = &http.Client{Timeout: args.Timeout}
	}
	if args.Logger == nil {
		args.Logger = slog.Default()
	}
	return &REST{
		httpBaseURL: strings.TrimSuffix(args.BaseURL, "/"),
		httpClient:  args.HTTPClient,
		botToken:    args.BotToken,
		limiter:     NewRateLimiter(),
		log:         args.Logger,
	}
}

func (r *REST) URL() string {
	return r.httpBaseURL
}

func (r *REST) RateLimiter() *RateLimiter {
	return r.limiter
}

func (r *REST) applyHeaders(req *http.Request, headers map[string]string) {
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}

func (r *REST) makeRequest(ctx context.Context, method string, route string, body []byte, options *RESTOptions) (*http.Request, error) {
	u := r.httpBaseURL + route
	if options != nil && len(options.Query) > 0 {
		u += "?" + options.Query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	// Mandatory headers.
	req.Header.Set("Authorization", fmt.Sprintf("Bot %s", r.botToken))
	req.Header.Set("User-Agent", UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}

	if options != nil {
		if options.Reason != "" {
			req.Header.Set("X-Audit-Log-Reason", url.PathEscape(options.Reason))
		}
		r.applyHeaders(req, options.Headers)
	}
	return req, nil
}

func (r *REST) send(ctx context.Context, method string, route string, body []byte, options *RESTOptions) (*http.Response, []byte, error) {
	req, err := r.makeRequest(ctx, method, route, body, options)
	if err != nil {
		return nil, nil, err
	}
	res, err := r.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, nil, err
	}
	return res, data, nil
}

// Request performs an authenticated call to route, a path relative to the
// base URL such as "/users/@me". body is JSON encoded when non-nil. The raw
// response body is returned for 2xx responses; any other
// status yields an *HTTPError. A 429 is retried once after its retry-after.
func (r *REST) Request(ctx context.Context, method string, route string, body any, options *RESTOptions) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	key := BucketKey{Route: route}
	if options != nil {
		key.GuildID = options.GuildID
		key.ChannelID = options.ChannelID
	}
	bucket := r.limiter.Bucket(key)
	if err := bucket.Lock(ctx); err != nil {
		return nil, err
	}
	defer bucket.Unlock()

	retried := false
	for {
		if err := r.limiter.Wait(ctx, bucket); err != nil {
			return nil, err
		}
		res, data, err := r.send(ctx, method, route, payload, options)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, route, err)
		}
		r.limiter.Update(bucket, res.Header)

		if res.StatusCode >= 200 && res.StatusCode < 300 {
			return data, nil
		}
		if res.StatusCode == http.StatusTooManyRequests {
			retryAfter := parseRetryAfter(res.Header, data)
			if strings.EqualFold(res.Header.Get(HeaderGlobal), "true") {
				r.limiter.BlockGlobal(retryAfter)
			}
			if !retried {
				retried = true
				r.log.Warn("rate limited", "method", method, "bucket", bucket.Key(), "retry_after", retryAfter)
				if err := sleep(ctx, retryAfter); err != nil {
					return nil, err
				}
				continue
			}
		}
		return nil, newHTTPError(method, route, res.StatusCode, data)
	}
}

func (r *REST) Get(ctx context.Context, route string, options *RESTOptions) ([]byte, error) {
	return r.Request(ctx, http.MethodGet, route, nil, options)
}

func (r *REST) Post(ctx context.Context, route string, body any, options *RESTOptions) ([]byte, error) {
	return r.Request(ctx, http.MethodPost, route, body, options)
}

func (r *REST) Put(ctx context.Context, route string, body any, options *RESTOptions) ([]byte, error) {
	return r.Request(ctx, http.MethodPut, route, body, options)
}

func (r *REST) Patch(ctx context.Context, route string, body any, options *RESTOptions) ([]byte, error) {
	return r.Request(ctx, http.MethodPatch, route, body, options)
}

func (r *REST) Delete(ctx context.Context, route string, options *RESTOptions) ([]byte, error) {
	return r.Request(ctx, http.MethodDelete, route, nil, options)
}

// parseRetryAfter prefers the Retry-After header and falls back to the
// retry_after field of the JSON body. Both are in seconds.
func parseRetryAfter(header http.Header, body []byte) time.Duration {
	if raw := header.Get(HeaderRetryAfter); raw != "" {
		if s, err := strconv.ParseFloat(raw, 64); err == nil {
			return secondsToDuration(s)
		}
	}
	rb := struct {
		RetryAfter float64 `json:"retry_after"`
	}{}
	if err := json.Unmarshal(body, &rb); err == nil {
		return secondsToDuration(rb.RetryAfter)
	}
	return 0
}
