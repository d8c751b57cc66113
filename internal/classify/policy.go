package classify

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"syscall"
)

// AmbiguityPolicy decides the outcome of an upload whose request was sent
// but for which no HTTP status ever arrived.
type AmbiguityPolicy func(err error) Outcome

// Optimistic reports a dropped connection as an unverified success, since
// the service may have created the page before the stream broke. Uploads
// that really failed are reported as successes too.
func Optimistic(error) Outcome {
	o := Success("", "")
	o.Message = "File uploaded, unverified (no response received)"
	o.Unverified = true
	return o
}

// Strict reports a dropped connection as a recoverable failure.
func Strict(err error) Outcome {
	return Recoverable("No response from server, upload state unknown: " + err.Error())
}

// PolicyByName maps the config value to a policy. Unknown names fall back to Optimistic.
func PolicyByName(name string) AmbiguityPolicy {
	if name == "strict" {
		return Strict
	}
	return Optimistic
}

// isConnectivityError reports transport errors where the request may have
// reached the server: network level failures and connections that broke off.
// Timeouts, cancellation and certificate failures are excluded.
func isConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}
	if isCertificateError(err) {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

func isCertificateError(err error) bool {
	var (
		verifyErr    *tls.CertificateVerificationError
		authorityErr x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		invalidErr   x509.CertificateInvalidError
		headerErr    tls.RecordHeaderError
	)
	return errors.As(err, &verifyErr) ||
		errors.As(err, &authorityErr) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidErr) ||
		errors.As(err, &headerErr)
}
