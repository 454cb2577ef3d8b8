package dispatch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"syscall"
)

// Machine-readable transport failure codes carried in the status-0 body.
const (
	CodeTimeout    = "ETIMEDOUT"
	CodeRefused    = "ECONNREFUSED"
	CodeNotFound   = "ENOTFOUND"
	CodeReset      = "ECONNRESET"
	CodeCanceled   = "ECANCELED"
	CodeProtocol   = "EPROTO"
	CodeNetwork    = "ERR_NETWORK"
	requestErrName = "Request Error"
)

// errorCode classifies a transport failure.
func errorCode(err error) string {
	var netErr net.Error
	var dnsErr *net.DNSError
	var recordErr tls.RecordHeaderError
	var certErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var hostErr x509.HostnameError

	switch {
	case errors.Is(err, context.Canceled):
		return CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return CodeTimeout
	case errors.As(err, &dnsErr):
		return CodeNotFound
	case errors.Is(err, syscall.ECONNREFUSED):
		return CodeRefused
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return CodeReset
	case errors.As(err, &recordErr), errors.As(err, &certErr), errors.As(err, &unknownAuth), errors.As(err, &hostErr):
		return CodeProtocol
	default:
		return CodeNetwork
	}
}
