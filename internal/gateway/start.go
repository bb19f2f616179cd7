package gateway

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/resumegate/internal/config"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Start relays the session-initiating payload to the configured start URL.
// The target is never taken from the caller.
func (f *Forwarder) Start(c echo.Context) error {
	started := time.Now()
	ctx := c.Request().Context()

	if c.Request().Method != http.MethodPost {
		c.Response().Header().Set(echo.HeaderAllow, http.MethodPost)
		return f.reject(c, EndpointStart, started, http.StatusMethodNotAllowed, ErrorBody{
			Error:   "Method not allowed",
			Message: "use POST",
		})
	}

	if f.cfg.StartURL == "" {
		f.logger.Error(ctx, "start url not configured", zap.String("key", config.StartURLKey))
		return f.reject(c, EndpointStart, started, http.StatusInternalServerError, ErrorBody{
			Error:   "Server misconfigured",
			Message: config.StartURLKey + " is not set",
		})
	}
	target, ok := parseAbsolute(f.cfg.StartURL)
	if !ok {
		f.logger.Error(ctx, "start url is not absolute", zap.String("key", config.StartURLKey))
		return f.reject(c, EndpointStart, started, http.StatusInternalServerError, ErrorBody{
			Error:   "Server misconfigured",
			Message: config.StartURLKey + " must be an absolute URL",
		})
	}

	// The initiating payload is small; read it whole.
	payload, err := f.readStartBody(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return f.reject(c, EndpointStart, started, http.StatusRequestEntityTooLarge, *tooLargeBody(tooLarge.Limit))
		}
		return f.reject(c, EndpointStart, started, http.StatusBadRequest, ErrorBody{
			Error:   "Unreadable request body",
			Message: err.Error(),
		})
	}

	return f.relay(c, relayRequest{
		endpoint:    EndpointStart,
		target:      target,
		body:        bytes.NewReader(payload),
		contentType: echo.MIMEApplicationJSON,
		annotate:    true,
	})
}

func (f *Forwarder) readStartBody(c echo.Context) ([]byte, error) {
	req := c.Request()
	if req.Body == nil {
		return nil, nil
	}
	if req.ContentLength > f.cfg.MaxBodyBytes {
		return nil, &http.MaxBytesError{Limit: f.cfg.MaxBodyBytes}
	}
	return io.ReadAll(http.MaxBytesReader(c.Response(), req.Body, f.cfg.MaxBodyBytes))
}
