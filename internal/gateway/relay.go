package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/fyrsmithlabs/resumegate/internal/logging"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ErrorBody is the JSON error payload written by the forwarders.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Inbound headers copied upstream. Everything else is dropped.
var forwardHeaders = []string{echo.HeaderContentType, echo.HeaderAuthorization}

// Upstream response headers never copied to the caller. The transport may
// already have decoded the body, so length and encoding would not match.
var droppedHeaders = map[string]bool{
	"Content-Encoding":  true,
	"Transfer-Encoding": true,
	"Content-Length":    true,
	"Connection":        true,
	"Keep-Alive":        true,
}

const streamChunk = 32 << 10

// relayRequest describes one upstream exchange.
type relayRequest struct {
	endpoint    string
	target      *url.URL
	body        io.Reader
	length      int64  // declared inbound length, 0 if unknown
	contentType string // used when the caller sent none
	annotate    bool   // add X-Upstream-* on 2xx
}

// outcome of a relay, for events and metrics.
type outcome string

const (
	outcomeSuccess       outcome = "success"
	outcomeUpstreamError outcome = "upstream_error"
	outcomeUnreachable   outcome = "unreachable"
	outcomeRejected      outcome = "rejected"
)

func copyForwardHeaders(dst, src http.Header) {
	for _, h := range forwardHeaders {
		if v := src.Get(h); v != "" {
			dst.Set(h, v)
		}
	}
}

// sanitizeHeaders copies upstream headers minus the dropped set.
func sanitizeHeaders(dst, src http.Header) {
	for k, vs := range src {
		if droppedHeaders[http.CanonicalHeaderKey(k)] {
			continue
		}
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

// preview returns at most n characters of b, cut on a rune boundary.
func preview(b []byte, n int) string {
	if utf8.RuneCount(b) <= n {
		return string(b)
	}
	count := 0
	for i := range string(b) {
		if count == n {
			return string(b[:i])
		}
		count++
	}
	return string(b)
}

// parseAbsolute accepts only http(s) URLs with a host.
func parseAbsolute(raw string) (*url.URL, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	return u, true
}

// reject writes a local error response and records it.
func (f *Forwarder) reject(c echo.Context, endpoint string, started time.Time, status int, body ErrorBody) error {
	f.record(c, endpoint, outcomeRejected, status, "", started)
	return c.JSON(status, body)
}

func (f *Forwarder) record(c echo.Context, endpoint string, oc outcome, status int, host string, started time.Time) {
	ctx := c.Request().Context()
	elapsed := time.Since(started)
	if f.metrics != nil {
		f.metrics.observe(endpoint, oc, status, elapsed)
	}
	f.events.Publish(ctx, RelayEvent{
		Endpoint:     endpoint,
		Outcome:      string(oc),
		Status:       status,
		UpstreamHost: host,
		DurationMS:   elapsed.Milliseconds(),
		RequestID:    c.Response().Header().Get(echo.HeaderXRequestID),
		At:           started.UTC(),
	})
}

// relay performs the upstream POST and writes the response.
func (f *Forwarder) relay(c echo.Context, rr relayRequest) error {
	started := time.Now()
	inbound := c.Request()
	host := rr.target.Host
	log := f.logger.With(zap.String("endpoint", rr.endpoint), zap.String("upstream_host", host))

	ctx, cancel := context.WithTimeout(inbound.Context(), f.cfg.UpstreamTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rr.target.String(), rr.body)
	if err != nil {
		return f.reject(c, rr.endpoint, started, http.StatusBadRequest, ErrorBody{
			Error:   "Invalid upstream request",
			Message: err.Error(),
		})
	}
	if rr.body != nil && rr.length > 0 {
		req.ContentLength = rr.length
	}
	copyForwardHeaders(req.Header, inbound.Header)
	if req.Header.Get(echo.HeaderContentType) == "" && rr.contentType != "" {
		req.Header.Set(echo.HeaderContentType, rr.contentType)
	}

	log.Trace(inbound.Context(), "relaying upstream",
		logging.ContinuationURL("upstream", rr.target),
		zap.Strings("forwarded_headers", headerNames(req.Header)))

	resp, err := f.client.Do(req)
	if err != nil {
		return f.upstreamFailure(ctx, c, rr, started, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return f.passthroughError(c, rr, started, resp)
	}

	out := c.Response()
	sanitizeHeaders(out.Header(), resp.Header)
	if rr.annotate {
		out.Header().Set("X-Upstream-Url", rr.target.String())
		out.Header().Set("X-Upstream-Status", strconv.Itoa(resp.StatusCode))
	}
	out.WriteHeader(resp.StatusCode)

	n, copyErr := streamBody(out, resp.Body)
	if copyErr != nil {
		// Headers are already sent; all that is left is to log.
		log.Warn(inbound.Context(), "upstream body stream interrupted",
			zap.Int64("bytes_written", n), zap.Error(copyErr))
	}

	f.record(c, rr.endpoint, outcomeSuccess, resp.StatusCode, host, started)
	log.Info(inbound.Context(), "relay complete",
		zap.Int("status", resp.StatusCode),
		zap.Int64("bytes", n),
		zap.Duration("duration", time.Since(started)),
	)
	return nil
}

// passthroughError buffers a non-2xx body (bounded by the ceiling), logs a
// preview, and returns it verbatim.
func (f *Forwarder) passthroughError(c echo.Context, rr relayRequest, started time.Time, resp *http.Response) error {
	ctx := c.Request().Context()
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		f.logger.Warn(ctx, "reading upstream error body", zap.String("endpoint", rr.endpoint), zap.Error(err))
	}

	f.logger.Warn(ctx, "upstream non-success",
		zap.String("endpoint", rr.endpoint),
		zap.String("upstream_host", rr.target.Host),
		zap.Int("status", resp.StatusCode),
		zap.Int("body_bytes", len(body)),
		zap.String("body_preview", f.scrubber.Scrub(preview(body, f.cfg.PreviewChars))),
	)

	out := c.Response()
	sanitizeHeaders(out.Header(), resp.Header)
	out.WriteHeader(resp.StatusCode)
	if _, err := out.Write(body); err != nil {
		f.logger.Warn(ctx, "writing error passthrough", zap.Error(err))
	}

	f.record(c, rr.endpoint, outcomeUpstreamError, resp.StatusCode, rr.target.Host, started)
	return nil
}

// upstreamFailure maps a transport error onto 413, 504 or 502.
func (f *Forwarder) upstreamFailure(upstreamCtx context.Context, c echo.Context, rr relayRequest, started time.Time, err error) error {
	ctx := c.Request().Context()
	host := rr.target.Host

	// url.Error embeds the full target, which carries the continuation token.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		f.logger.Warn(ctx, "request body exceeds ceiling",
			zap.String("endpoint", rr.endpoint), zap.Int64("limit", tooLarge.Limit))
		return f.reject(c, rr.endpoint, started, http.StatusRequestEntityTooLarge, ErrorBody{
			Error:   "Request body too large",
			Message: "body exceeds " + strconv.FormatInt(tooLarge.Limit, 10) + " bytes",
		})
	}

	diag := ClassifyNetError(err)
	fields := append([]zap.Field{
		zap.String("endpoint", rr.endpoint),
		zap.String("upstream_host", host),
		zap.Error(err),
	}, diag.Fields()...)

	if errors.Is(upstreamCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		f.logger.Error(ctx, "upstream request timed out", fields...)
		f.record(c, rr.endpoint, outcomeUnreachable, http.StatusGatewayTimeout, host, started)
		return c.JSON(http.StatusGatewayTimeout, ErrorBody{
			Error:   "Upstream request timed out",
			Message: "no response within " + f.cfg.UpstreamTimeout.String(),
		})
	}

	f.logger.Error(ctx, "upstream request failed", fields...)
	f.record(c, rr.endpoint, outcomeUnreachable, http.StatusBadGateway, host, started)
	return c.JSON(http.StatusBadGateway, ErrorBody{
		Error:   "Upstream request failed",
		Message: err.Error(),
	})
}

// streamBody copies src to the response, flushing after each chunk.
func streamBody(w *echo.Response, src io.Reader) (int64, error) {
	rc := http.NewResponseController(w.Writer)
	buf := make([]byte, streamChunk)
	var total int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			written, writeErr := w.Write(buf[:n])
			total += int64(written)
			if writeErr != nil {
				return total, writeErr
			}
			_ = rc.Flush()
		}
		if readErr == io.EOF {
			return total, nil
		}
		if readErr != nil {
			return total, readErr
		}
	}
}

func headerNames(h http.Header) []string {
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	return names
}
