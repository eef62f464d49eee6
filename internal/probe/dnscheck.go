package probe

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"
)

// DNSClass summarizes why a host did or did not resolve.
type DNSClass string

const (
	DNSResolves    DNSClass = "RESOLVES"
	DNSNXDomain    DNSClass = "NXDOMAIN"
	DNSNoAddress   DNSClass = "NO_A_RECORD"
	DNSUnreachable DNSClass = "SERVFAIL_or_TIMEOUT"
	DNSInvalidName DNSClass = "INVALID_NAME"
)

type DNSStatus struct {
	Domain        string
	Class         DNSClass
	IPs           []net.IP
	CNAME         string
	Nameservers   []string
	ResolverError string
}

// Resolver is the subset of net.Resolver used for diagnosis.
type Resolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
	LookupCNAME(ctx context.Context, host string) (string, error)
	LookupNS(ctx context.Context, name string) ([]*net.NS, error)
}

var dnsTimeout = 3 * time.Second

// DiagnoseURL classifies DNS resolution for the host of raw.
// Used to annotate connection failures in logs.
func DiagnoseURL(ctx context.Context, raw string) DNSStatus {
	host := raw
	if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	return Diagnose(ctx, net.DefaultResolver, host)
}

func Diagnose(ctx context.Context, r Resolver, host string) DNSStatus {
	s := DNSStatus{Domain: strings.TrimSpace(host)}
	if s.Domain == "" || strings.ContainsAny(s.Domain, "/ ") {
		s.Class = DNSInvalidName
		return s
	}
	if ip := net.ParseIP(s.Domain); ip != nil {
		s.IPs = []net.IP{ip}
		s.Class = DNSResolves
		return s
	}

	ctx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()

	ips, ipErr := r.LookupIP(ctx, "ip", s.Domain)
	if ipErr != nil {
		s.ResolverError = ipErr.Error()
	}
	s.IPs = ips
	if cname, err := r.LookupCNAME(ctx, s.Domain); err == nil && !strings.EqualFold(cname, s.Domain+".") {
		s.CNAME = strings.TrimSuffix(cname, ".")
	}
	if ns, err := r.LookupNS(ctx, s.Domain); err == nil {
		for _, n := range ns {
			s.Nameservers = append(s.Nameservers, strings.TrimSuffix(n.Host, "."))
		}
	}
	s.Class = classify(len(ips) > 0, len(s.Nameservers) > 0, ipErr)
	return s
}

// classify: a zone with nameservers but no addresses is NO_A_RECORD even when
// the resolver reports not-found.
func classify(hasAddr, hasNS bool, err error) DNSClass {
	if hasAddr {
		return DNSResolves
	}
	if hasNS {
		return DNSNoAddress
	}
	var de *net.DNSError
	if errors.As(err, &de) && de.IsNotFound {
		return DNSNXDomain
	}
	if err != nil {
		return DNSUnreachable
	}
	return DNSNXDomain
}
