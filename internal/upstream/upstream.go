package upstream

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/angeloszaimis/breakerguard/internal/circuitbreaker"
)

const maxBodySize = 10 << 20

// ErrResponseTooLarge is returned when an upstream body exceeds 10 MiB.
var ErrResponseTooLarge = errors.New("upstream response too large")

// Hop-by-hop headers are not forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Response is an upstream response with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// StatusError reports an upstream response that counts as a failure.
type StatusError struct {
	Response *Response
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream responded with status %d", e.Response.StatusCode)
}

// Upstream is a dependency reached over HTTP. Every request it sends runs
// through its circuit breaker.
type Upstream struct {
	name    string
	url     *url.URL
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
}

// New creates an Upstream for the service at u. timeout bounds each request;
// the breaker itself imposes none.
func New(name string, u *url.URL, timeout time.Duration, breaker *circuitbreaker.CircuitBreaker) *Upstream {
	return &Upstream{
		name: name,
		url:  u,
		client: &http.Client{
			Timeout: timeout,
		},
		breaker: breaker,
	}
}

func (u *Upstream) Name() string {
	return u.name
}

// URL returns the upstream base URL.
func (u *Upstream) URL() *url.URL {
	return u.url
}

func (u *Upstream) Breaker() *circuitbreaker.CircuitBreaker {
	return u.breaker
}

// Forward sends r to path on the upstream, keeping method, query, headers and
// body. Transport errors and 5xx responses are recorded as failures; a 5xx
// response is still returned inside the *StatusError. Errors caused by r's
// own context ending, and oversized bodies on non-5xx responses, are returned
// without touching the breaker.
func (u *Upstream) Forward(r *http.Request, path string) (*Response, error) {
	target := u.url.JoinPath(path)
	target.RawQuery = r.URL.RawQuery

	out, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		return nil, err
	}

	out.ContentLength = r.ContentLength
	out.Header = r.Header.Clone()
	for _, h := range hopHeaders {
		out.Header.Del(h)
	}
	appendForwardedFor(out.Header, r.RemoteAddr)

	return circuitbreaker.Execute(u.breaker, func() (*Response, error) {
		resp, err := u.send(out)
		if err != nil && r.Context().Err() != nil {
			return nil, circuitbreaker.Exclude(err)
		}
		return resp, err
	})
}

func (u *Upstream) send(req *http.Request) (*Response, error) {
	res, err := u.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize+1))
	if err != nil {
		return nil, err
	}

	if len(body) > maxBodySize {
		err := fmt.Errorf("%w: status %d", ErrResponseTooLarge, res.StatusCode)
		if res.StatusCode >= http.StatusInternalServerError {
			return nil, err
		}
		return nil, circuitbreaker.Exclude(err)
	}

	response := &Response{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       body,
	}

	if res.StatusCode >= http.StatusInternalServerError {
		return nil, &StatusError{Response: response}
	}

	return response, nil
}

func appendForwardedFor(header http.Header, remoteAddr string) {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil || host == "" {
		return
	}

	if prior := header.Get("X-Forwarded-For"); prior != "" {
		host = prior + ", " + host
	}
	header.Set("X-Forwarded-For", host)
}
