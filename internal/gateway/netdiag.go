package gateway

import (
	"context"
	"errors"
	"net"
	"os"
	"strconv"
	"syscall"

	"go.uber.org/zap"
)

// NetDiagnostics classifies a transport failure so DNS failures,
// refused connections and timeouts can be told apart in logs.
type NetDiagnostics struct {
	Code    string
	Errno   int
	Syscall string
	Address string
	Port    string
	Timeout bool
}

var errnoCodes = map[syscall.Errno]string{
	syscall.ECONNREFUSED:  "ECONNREFUSED",
	syscall.ECONNRESET:    "ECONNRESET",
	syscall.ETIMEDOUT:     "ETIMEDOUT",
	syscall.EHOSTUNREACH:  "EHOSTUNREACH",
	syscall.ENETUNREACH:   "ENETUNREACH",
	syscall.EPIPE:         "EPIPE",
	syscall.ECONNABORTED:  "ECONNABORTED",
	syscall.EADDRNOTAVAIL: "EADDRNOTAVAIL",
}

// ClassifyNetError extracts whatever classification the error chain
// exposes. Fields the transport does not report stay zero.
func ClassifyNetError(err error) NetDiagnostics {
	var d NetDiagnostics
	if err == nil {
		return d
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		d.Syscall = "getaddrinfo"
		d.Address = dnsErr.Name
		switch {
		case dnsErr.IsNotFound:
			d.Code = "ENOTFOUND"
		case dnsErr.IsTemporary, dnsErr.IsTimeout:
			d.Code = "EAI_AGAIN"
		default:
			d.Code = "EDNS"
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Addr != nil {
		host, port, splitErr := net.SplitHostPort(opErr.Addr.String())
		if splitErr == nil {
			d.Address, d.Port = host, port
		} else {
			d.Address = opErr.Addr.String()
		}
	}

	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) {
		d.Syscall = sysErr.Syscall
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		d.Errno = int(errno)
		if code, ok := errnoCodes[errno]; ok {
			d.Code = code
		} else if d.Code == "" {
			d.Code = "E" + strconv.Itoa(int(errno))
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		d.Timeout = true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		d.Timeout = true
	}
	if d.Timeout && d.Code == "" {
		d.Code = "ETIMEDOUT"
	}

	return d
}

// Fields renders the non-empty diagnostics as log fields.
func (d NetDiagnostics) Fields() []zap.Field {
	fields := make([]zap.Field, 0, 6)
	if d.Code != "" {
		fields = append(fields, zap.String("code", d.Code))
	}
	if d.Errno != 0 {
		fields = append(fields, zap.Int("errno", d.Errno))
	}
	if d.Syscall != "" {
		fields = append(fields, zap.String("syscall", d.Syscall))
	}
	if d.Address != "" {
		fields = append(fields, zap.String("address", d.Address))
	}
	if d.Port != "" {
		fields = append(fields, zap.String("port", d.Port))
	}
	fields = append(fields, zap.Bool("timeout", d.Timeout))
	return fields
}
