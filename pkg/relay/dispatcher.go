package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"paygate/internal/domain"
)

// maxResponseBody caps how much of an upstream response is buffered.
const maxResponseBody = 10 << 20

// CallSpec is the caller's request as accepted by the gateway.
type CallSpec struct {
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Params  map[string]string `json:"params"`
	Body    json.RawMessage   `json:"body"`
}

// HopRequest is the envelope the dispatcher posts to the internal relay hop.
type HopRequest struct {
	ApiID uint     `json:"api_id"`
	Spec  CallSpec `json:"spec"`
}

// Route tells the dispatcher how to reach an API without exposing the hidden
// endpoint outside the internal hop.
type Route struct {
	ApiID    uint
	Mode     domain.RelayMode
	Endpoint string
}

// Outcome is the result of one relayed call. Status 0 with Unreachable set
// means the upstream could not be reached at the network level, as opposed to
// an upstream that answered with an error status.
type Outcome struct {
	Status      int
	Body        []byte
	ContentType string
	ElapsedMs   int64
	Size        int64
	RequestID   string
	Unreachable bool
	ErrMessage  string

	// markedUnreachable is set when the internal hop reported a network-level
	// failure via the marker header.
	markedUnreachable bool
}

// Success reports whether the upstream answered with a non-error status.
func (o *Outcome) Success() bool {
	return !o.Unreachable && o.Status > 0 && o.Status < 400
}

// JSONBody returns the body as JSON when it parses, or nil.
func (o *Outcome) JSONBody() json.RawMessage {
	if len(o.Body) > 0 && json.Valid(o.Body) {
		return json.RawMessage(o.Body)
	}
	return nil
}

// InternalHopPath is where the gateway mounts its own second hop.
const InternalHopPath = "/internal/relay"

// MarkerUnreachable lets the hop tell the dispatcher the hidden upstream was
// unreachable, so the outcome keeps its network-failure classification across
// the extra HTTP boundary.
const MarkerUnreachable = "X-Upstream-Unreachable"

// Options tunes the dispatcher; zero values get sensible defaults.
type Options struct {
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Dispatcher executes relayed calls. One instance is shared process-wide; it
// owns the HTTP client and a circuit breaker per upstream host.
type Dispatcher struct {
	client          *http.Client
	internalBaseURL string
	internalSecret  string
	breakerFailures uint32
	breakerTimeout  time.Duration

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewDispatcher(internalBaseURL, internalSecret string, opts Options) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}
	return &Dispatcher{
		client:          &http.Client{Timeout: opts.Timeout},
		internalBaseURL: strings.TrimRight(internalBaseURL, "/"),
		internalSecret:  internalSecret,
		breakerFailures: opts.BreakerFailures,
		breakerTimeout:  opts.BreakerTimeout,
		breakers:        make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Relay executes one validated call. Direct routes hit the public endpoint;
// double routes go through the gateway's internal hop so the developer never
// learns the real upstream. No retries happen here beyond the hop's single
// documented fallback attempt.
func (d *Dispatcher) Relay(ctx context.Context, route Route, spec CallSpec) *Outcome {
	if route.Mode == domain.RelayModeDouble {
		return d.relayDouble(ctx, route.ApiID, spec)
	}
	return d.do(ctx, spec.Method, route.Endpoint, spec, nil)
}

// Forward is the hop-side executor: call the hidden primary, and on a
// non-success outcome retry exactly once against a distinct fallback. The
// fallback's outcome, not the primary's, is what gets reported.
func (d *Dispatcher) Forward(ctx context.Context, primary, fallback string, spec CallSpec) *Outcome {
	out := d.do(ctx, spec.Method, primary, spec, nil)
	if out.Success() || fallback == "" || fallback == primary {
		return out
	}
	return d.do(ctx, spec.Method, fallback, spec, nil)
}

func (d *Dispatcher) relayDouble(ctx context.Context, apiID uint, spec CallSpec) *Outcome {
	payload, err := json.Marshal(HopRequest{ApiID: apiID, Spec: spec})
	if err != nil {
		return &Outcome{Unreachable: true, ErrMessage: fmt.Sprintf("encode hop request: %v", err)}
	}
	hopSpec := CallSpec{
		Method:  http.MethodPost,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    payload,
	}
	out := d.do(ctx, http.MethodPost, d.internalBaseURL+InternalHopPath, hopSpec, map[string]string{
		domain.HeaderInternalAuth: d.internalSecret,
	})
	if out.markedUnreachable {
		out.Unreachable = true
		out.Status = 0
	}
	return out
}

// do performs a single upstream attempt through the host's circuit breaker.
func (d *Dispatcher) do(ctx context.Context, method, endpoint string, spec CallSpec, extraHeaders map[string]string) *Outcome {
	target, err := url.Parse(endpoint)
	if err != nil {
		return &Outcome{Unreachable: true, ErrMessage: fmt.Sprintf("invalid endpoint: %v", err)}
	}

	breaker := d.breaker(target.Host)
	result, err := breaker.Execute(func() (interface{}, error) {
		out := d.attempt(ctx, method, target, spec, extraHeaders)
		if out.Unreachable {
			return out, errors.New(out.ErrMessage)
		}
		return out, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return &Outcome{Unreachable: true, ErrMessage: "circuit open: " + target.Host}
		}
		if out, ok := result.(*Outcome); ok {
			return out
		}
		return &Outcome{Unreachable: true, ErrMessage: err.Error()}
	}
	return result.(*Outcome)
}

func (d *Dispatcher) attempt(ctx context.Context, method string, target *url.URL, spec CallSpec, extraHeaders map[string]string) *Outcome {
	if method == "" {
		method = http.MethodGet
	}
	method = strings.ToUpper(method)

	u := *target
	if len(spec.Params) > 0 {
		q := u.Query()
		for k, val := range spec.Params {
			q.Set(k, val)
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if len(spec.Body) > 0 && method != http.MethodGet && method != http.MethodHead {
		body = bytes.NewReader(spec.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return &Outcome{Unreachable: true, ErrMessage: err.Error()}
	}

	for k, val := range spec.Headers {
		if isGatewayHeader(k) {
			continue
		}
		req.Header.Set(k, val)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.New().String()
	req.Header.Set(domain.HeaderRequestID, requestID)
	for k, val := range extraHeaders {
		req.Header.Set(k, val)
	}

	start := time.Now()
	resp, err := d.client.Do(req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return &Outcome{
			RequestID:   requestID,
			ElapsedMs:   elapsed,
			Unreachable: true,
			ErrMessage:  err.Error(),
		}
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	size := resp.ContentLength
	if size < 0 {
		size = int64(len(respBody))
	}
	out := &Outcome{
		Status:            resp.StatusCode,
		Body:              respBody,
		ContentType:       resp.Header.Get("Content-Type"),
		ElapsedMs:         elapsed,
		Size:              size,
		RequestID:         requestID,
		markedUnreachable: resp.Header.Get(MarkerUnreachable) != "",
	}
	if readErr != nil {
		out.ErrMessage = readErr.Error()
	} else if !out.Success() {
		out.ErrMessage = fmt.Sprintf("upstream status %d", resp.StatusCode)
	}
	return out
}

func (d *Dispatcher) breaker(host string) *gobreaker.CircuitBreaker {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cb, ok := d.breakers[host]; ok {
		return cb
	}
	failures := d.breakerFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "upstream-" + host,
		Timeout: d.breakerTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
	})
	d.breakers[host] = cb
	return cb
}

func isGatewayHeader(name string) bool {
	switch http.CanonicalHeaderKey(name) {
	case domain.HeaderDeveloperAddress, domain.HeaderPayment, domain.HeaderTokenHash, domain.HeaderInternalAuth:
		return true
	}
	return false
}
