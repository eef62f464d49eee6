package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/hamed0406/statuspulse/internal/domain"
)

// MaxErrorLen bounds transport error text copied into results.
const MaxErrorLen = 200

var ErrTooManyRedirects = errors.New("too many redirects")

// Describe maps a transport error to its failure kind and a readable message.
func Describe(err error, timeout time.Duration) (FailureKind, string) {
	if errors.Is(err, ErrTooManyRedirects) {
		return FailureRedirect, "Too many redirects"
	}
	if isTimeout(err) {
		return FailureTimeout, fmt.Sprintf("Timeout after %ss", formatSeconds(timeout))
	}
	if isConnect(err) {
		return FailureConnect, "Connection failed: " + domain.Truncate(err.Error(), MaxErrorLen)
	}
	return FailureOther, "Error: " + domain.Truncate(err.Error(), MaxErrorLen)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isConnect(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
