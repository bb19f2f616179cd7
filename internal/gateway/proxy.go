package gateway

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// Resume relays any inbound method to the absolute URL in the "url" query
// parameter, always as POST.
func (f *Forwarder) Resume(c echo.Context) error {
	started := time.Now()
	raw := c.QueryParam("url")
	if raw == "" {
		return f.reject(c, EndpointResume, started, http.StatusBadRequest, ErrorBody{
			Error: "Missing 'url' query parameter",
		})
	}
	target, ok := parseAbsolute(raw)
	if !ok {
		return f.reject(c, EndpointResume, started, http.StatusBadRequest, ErrorBody{
			Error: "Invalid resumeUrl; must be absolute",
		})
	}

	body, err := f.streamedBody(c)
	if err != nil {
		return f.reject(c, EndpointResume, started, http.StatusRequestEntityTooLarge, *err)
	}

	return f.relay(c, relayRequest{
		endpoint: EndpointResume,
		target:   target,
		body:     body,
		length:   c.Request().ContentLength,
	})
}

// streamedBody returns the inbound body behind the size ceiling, or nil for
// bodiless requests. A declared length over the ceiling is refused up front.
func (f *Forwarder) streamedBody(c echo.Context) (io.Reader, *ErrorBody) {
	req := c.Request()
	if req.Method == http.MethodGet || req.Method == http.MethodHead || req.Body == nil || req.ContentLength == 0 {
		return nil, nil
	}
	if req.ContentLength > f.cfg.MaxBodyBytes {
		return nil, tooLargeBody(f.cfg.MaxBodyBytes)
	}
	return http.MaxBytesReader(c.Response(), req.Body, f.cfg.MaxBodyBytes), nil
}

func tooLargeBody(limit int64) *ErrorBody {
	return &ErrorBody{
		Error:   "Request body too large",
		Message: "body exceeds " + strconv.FormatInt(limit, 10) + " bytes",
	}
}
