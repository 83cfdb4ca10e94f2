package mpesa

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/LavaJover/shvark-mpesa-service/internal/config"
	"github.com/LavaJover/shvark-mpesa-service/internal/domain"
	"github.com/sony/gobreaker"
)

const maxResponseBody = 1 << 20

// Client calls the M-Pesa Mozambique OpenAPI gateway. Each operation is served
// on its own port of the same host.
type Client struct {
	cfg        config.Provider
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	publicKey  *rsa.PublicKey
}

// serverError marks a 5xx answer so the breaker counts it as a failure while
// the response itself still reaches the caller.
type serverError struct {
	resp *domain.ProviderResponse
}

func (e *serverError) Error() string {
	return fmt.Sprintf("mpesa server error %d %s", e.resp.HTTPStatus, e.resp.ResponseCode)
}

func NewClient(cfg config.Provider) (*Client, error) {
	pub, err := parsePublicKey(cfg.PublicKey)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "mpesa",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
		publicKey:  pub,
	}, nil
}

func (c *Client) Invoke(ctx context.Context, req domain.ProviderRequest) (*domain.ProviderResponse, error) {
	ep, ok := endpoints[req.Operation]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported operation %q", domain.ErrInvalidRequest, req.Operation)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, req.Operation, ep, c.parameters(req))
	})

	var se *serverError
	switch {
	case err == nil:
		return result.(*domain.ProviderResponse), nil
	case errors.As(err, &se):
		return se.resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: circuit breaker %v", domain.ErrProviderUnavailable, err)
	default:
		return nil, err
	}
}

func (c *Client) do(ctx context.Context, op domain.Operation, ep endpoint, params map[string]string) (*domain.ProviderResponse, error) {
	token, err := bearerToken(c.cfg.APIKey, c.publicKey)
	if err != nil {
		return nil, err
	}

	target := c.baseURL(op) + ep.path
	var body io.Reader
	if ep.method == http.MethodGet {
		query := url.Values{}
		for k, v := range params {
			query.Set(k, v)
		}
		target += "?" + query.Encode()
	} else {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal mpesa payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, ep.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build mpesa request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Origin", "*")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrProviderUnavailable, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s response: %v", domain.ErrProviderUnavailable, op, err)
	}

	slog.Info("mpesa call finished",
		"operation", op,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	var decoded apiResponse
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			// gateways and proxies answer with HTML on outages
			return nil, fmt.Errorf("%w: %s answered %d with undecodable body: %v", domain.ErrProviderUnavailable, op, resp.StatusCode, err)
		}
	} else if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: %s answered %d with empty body", domain.ErrProviderUnavailable, op, resp.StatusCode)
	}

	out := decoded.toDomain(resp.StatusCode)
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &serverError{resp: out}
	}
	return out, nil
}

func (c *Client) baseURL(op domain.Operation) string {
	scheme := "https"
	if !c.cfg.UseTLS {
		scheme = "http"
	}
	host := strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(c.cfg.Host, "https://"), "http://"), "/")
	return scheme + "://" + net.JoinHostPort(host, c.port(op))
}

func (c *Client) port(op domain.Operation) string {
	switch op {
	case domain.OpB2CPayment:
		return c.cfg.PortB2C
	case domain.OpB2BPayment:
		return c.cfg.PortB2B
	case domain.OpReversal:
		return c.cfg.PortReversal
	case domain.OpQueryTransactionStatus:
		return c.cfg.PortQueryTxn
	case domain.OpQueryCustomerName:
		return c.cfg.PortQueryCustomer
	default:
		return c.cfg.PortC2B
	}
}
