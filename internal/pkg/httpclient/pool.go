package httpclient

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/flowgate-io/flowgate/internal/pkg/circuitbreaker"
)

type Config struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	TLSHandshakeTimeout time.Duration
	DialTimeout         time.Duration
	KeepAlive           time.Duration
	DisableKeepAlives   bool
	InsecureSkipVerify  bool
}

func DefaultConfig() Config {
	return Config{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialTimeout:         10 * time.Second,
		KeepAlive:           30 * time.Second,
		DisableKeepAlives:   false,
		InsecureSkipVerify:  false,
	}
}

// PooledClient is a shared HTTP client with connection pooling and a
// per-host circuit breaker. Per-request deadlines come from the request
// context, so the client itself carries no overall timeout.
type PooledClient struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.Manager
	config         Config
}

func NewPooledClient(config Config) *PooledClient {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		MaxConnsPerHost:     config.MaxConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		TLSHandshakeTimeout: config.TLSHandshakeTimeout,
		DisableKeepAlives:   config.DisableKeepAlives,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.InsecureSkipVerify,
		},
		ForceAttemptHTTP2: true,
	}

	client := &http.Client{
		Transport: transport,
	}

	cbConfig := circuitbreaker.Config{
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
	}

	return &PooledClient{
		client:         client,
		circuitBreaker: circuitbreaker.NewManager(cbConfig),
		config:         config,
	}
}

func (p *PooledClient) Do(req *http.Request) (*http.Response, error) {
	host := req.URL.Host
	cb := p.circuitBreaker.Get(host)

	result, err := cb.ExecuteWithContext(req.Context(), func(ctx context.Context) (interface{}, error) {
		return p.client.Do(req.WithContext(ctx))
	})

	if err != nil {
		return nil, err
	}
	return result.(*http.Response), nil
}

// CircuitStates reports the per-host breaker states, surfaced by the health
// endpoint.
func (p *PooledClient) CircuitStates() map[string]circuitbreaker.State {
	return p.circuitBreaker.States()
}

func (p *PooledClient) CloseIdleConnections() {
	p.client.CloseIdleConnections()
}
