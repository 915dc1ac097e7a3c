package client

import (
	"context"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/b2b-portal/types"
)

type State int32

const (
	StateRunning State = iota
	StateStopping
	StateStopped
)

const (
	defaultTimeout = 15 * time.Second
	defaultBackoff = time.Second
)

type Option func(*HTTPClient)

// WithDial replaces the transport dialer, e.g. with an in-memory listener.
func WithDial(dial fasthttp.DialFunc) Option {
	return func(c *HTTPClient) {
		c.client.Dial = dial
	}
}

// WithBackoff sets the base delay; attempt n waits n times this long.
func WithBackoff(backoff time.Duration) Option {
	return func(c *HTTPClient) {
		c.backoff = backoff
	}
}

func WithHeader(key, value string) Option {
	return func(c *HTTPClient) {
		c.headers[key] = value
	}
}

// HTTPClient calls a single upstream with retries and a circuit breaker.
type HTTPClient struct {
	ctx            context.Context
	cancel         context.CancelFunc
	logger         types.Logger
	name           string
	client         *fasthttp.Client
	baseURL        string
	headers        map[string]string
	circuitBreaker *CircuitBreaker
	state          atomic.Value
	timeout        time.Duration
	retries        int
	backoff        time.Duration
}

func NewHTTPClient(ctx context.Context, logger types.Logger, name string, config *types.UpstreamConfig, opts ...Option) *HTTPClient {
	clientCtx, cancel := context.WithCancel(ctx)

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &HTTPClient{
		ctx:    clientCtx,
		cancel: cancel,
		logger: logger,
		name:   name,
		client: &fasthttp.Client{
			Name:                name,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 90 * time.Second,
		},
		baseURL:        strings.TrimRight(config.BaseURL, "/"),
		headers:        make(map[string]string),
		circuitBreaker: NewCircuitBreaker(config.CircuitBreaker, logger, name),
		timeout:        timeout,
		retries:        config.Retries,
		backoff:        defaultBackoff,
	}

	if config.AuthToken != "" {
		c.headers["Authorization"] = "Bearer " + config.AuthToken
		c.headers["X-Auth-Token"] = config.AuthToken
	}
	if config.StoreHash != "" {
		c.headers["X-Store-Hash"] = config.StoreHash
	}

	for _, opt := range opts {
		opt(c)
	}

	c.state.Store(StateRunning)

	return c
}

// Call performs one logical request. 2xx and non-retryable 4xx responses
// return their status with a nil error; the caller decides what a 4xx means.
func (c *HTTPClient) Call(ctx context.Context, method, path string, query url.Values, body []byte, opts *types.CallOptions) ([]byte, int, error) {
	if !c.IsRunning() {
		return nil, 0, types.ErrClientNotRunning
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	if len(query) > 0 {
		req.URI().SetQueryString(query.Encode())
	}

	if body != nil {
		req.SetBody(body)
		req.Header.SetContentType("application/json")
	}

	timeout := c.timeout
	retries := c.retries

	if opts != nil {
		for key, value := range opts.Headers {
			req.Header.Set(key, value)
		}
		for key, value := range opts.Query {
			req.URI().QueryArgs().Set(key, value)
		}
		if opts.Timeout > 0 {
			timeout = opts.Timeout
		}
		if opts.Retry > 0 {
			retries = opts.Retry
		}
	}

	return c.executeWithRetries(ctx, req, resp, timeout, retries)
}

func (c *HTTPClient) BreakerState() string {
	return c.circuitBreaker.StateString()
}

func (c *HTTPClient) Close() {
	if !c.state.CompareAndSwap(StateRunning, StateStopping) {
		return
	}

	c.cancel()
	c.client.CloseIdleConnections()
	c.state.Store(StateStopped)

	c.logger.Debug("HTTP client closed", zap.String("upstream", c.name))
}

func (c *HTTPClient) IsRunning() bool {
	return c.state.Load().(State) == StateRunning
}

func (c *HTTPClient) executeWithRetries(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response, timeout time.Duration, maxRetries int) ([]byte, int, error) {
	var lastErr error
	var lastStatus int

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.checkContext(ctx); err != nil {
			return nil, lastStatus, err
		}

		if !c.circuitBreaker.CanExecute() {
			return nil, 0, types.Errorf(types.ErrCircuitBreakerOpen, "upstream: %s", c.name)
		}

		err := c.client.DoTimeout(req, resp, attemptTimeout(ctx, timeout))
		statusCode := resp.StatusCode()
		if err != nil {
			statusCode = 0
		}

		if err == nil && !IsRetryableError(statusCode, nil) {
			if IsCircuitBreakerFailure(statusCode, nil) {
				c.circuitBreaker.RecordFailure()
			} else {
				c.circuitBreaker.RecordSuccess()
			}

			responseBody := make([]byte, len(resp.Body()))
			copy(responseBody, resp.Body())

			return responseBody, statusCode, nil
		}

		if IsCircuitBreakerFailure(statusCode, err) {
			c.circuitBreaker.RecordFailure()
		}

		lastStatus = statusCode
		lastErr = err
		if err == nil {
			lastErr = types.Errorf(types.ErrClientResponseInvalid, "HTTP %d", statusCode)
		} else if !IsRetryableError(0, err) {
			break
		}

		if attempt < maxRetries {
			backoff := time.Duration(attempt+1) * c.backoff

			c.logger.Debug("Retrying request",
				zap.String("upstream", c.name),
				zap.ByteString("uri", req.URI().FullURI()),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, lastStatus, types.WrapError(types.ErrClientTimeout, ctx.Err().Error())
			case <-c.ctx.Done():
				return nil, lastStatus, types.NewErrorf("client shutting down during retry for upstream: %s", c.name)
			}
		}
	}

	return nil, lastStatus, types.Errorf(types.ErrClientRequestFailed, "all %d attempts failed for upstream %s: %v", maxRetries+1, c.name, lastErr)
}

func (c *HTTPClient) checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return types.WrapError(types.ErrClientTimeout, ctx.Err().Error())
	case <-c.ctx.Done():
		return types.ErrClientNotRunning
	default:
		return nil
	}
}

// attemptTimeout caps the per-attempt timeout by the caller's deadline.
func attemptTimeout(ctx context.Context, timeout time.Duration) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return timeout
	}

	if remaining := time.Until(deadline); remaining < timeout {
		if remaining <= 0 {
			return time.Millisecond
		}
		return remaining
	}

	return timeout
}
