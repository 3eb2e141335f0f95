package dnscheck

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/miekg/dns"
)

// Checker verifies the deployment target domain before any side effect: the
// domain has to resolve, and should resolve to an address of the host running
// the orchestrator. A mismatch is advisory (split-horizon DNS and NAT are
// common), a name that does not resolve at all is fatal since the ACME
// HTTP-01 validation cannot possibly succeed.
type Checker struct {
	resolver  string
	client    *dns.Client
	hostAddrs func() ([]net.IP, error)
	log       *slog.Logger
}

// NewChecker creates a checker. An empty resolver address selects the first
// nameserver from /etc/resolv.conf.
func NewChecker(resolver string, log *slog.Logger) *Checker {
	return &Checker{
		resolver:  resolver,
		client:    new(dns.Client),
		hostAddrs: interfaceAddrs,
		log:       log,
	}
}

// Resolve looks up the A and AAAA records for domain. Returns an error when
// the name does not exist or has no address records.
func (c *Checker) Resolve(ctx context.Context, domain string) ([]net.IP, error) {
	resolver, err := c.resolverAddr()
	if err != nil {
		return nil, err
	}

	var ips []net.IP
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		m := new(dns.Msg)
		m.SetQuestion(dns.Fqdn(domain), qtype)
		m.RecursionDesired = true

		in, _, err := c.client.ExchangeContext(ctx, m, resolver)
		if err != nil {
			return nil, fmt.Errorf("query %s %s: %w", domain, dns.TypeToString[qtype], err)
		}
		if in.Rcode == dns.RcodeNameError {
			return nil, fmt.Errorf("domain %s does not exist (NXDOMAIN)", domain)
		}

		for _, rr := range in.Answer {
			switch record := rr.(type) {
			case *dns.A:
				ips = append(ips, record.A)
			case *dns.AAAA:
				ips = append(ips, record.AAAA)
			}
		}
	}

	if len(ips) == 0 {
		return nil, fmt.Errorf("domain %s has no address records", domain)
	}
	return ips, nil
}

// Verify resolves domain and reports whether any resolved address belongs to
// this host. The error is non-nil only for the fatal cases from Resolve.
func (c *Checker) Verify(ctx context.Context, domain string) (bool, error) {
	resolved, err := c.Resolve(ctx, domain)
	if err != nil {
		return false, err
	}

	local, err := c.hostAddrs()
	if err != nil {
		c.log.Warn("Could not enumerate host addresses", "err", err)
		return false, nil
	}

	for _, ip := range resolved {
		for _, addr := range local {
			if ip.Equal(addr) {
				c.log.Info("Domain resolves to this host", "domain", domain, "addr", ip.String())
				return true, nil
			}
		}
	}

	c.log.Warn("Domain does not resolve to a local address",
		"domain", domain,
		slog.Any("resolved", resolved))
	return false, nil
}

func (c *Checker) resolverAddr() (string, error) {
	if c.resolver != "" {
		return c.resolver, nil
	}

	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil {
		return "", fmt.Errorf("load resolver configuration: %w", err)
	}
	if len(conf.Servers) == 0 {
		return "", fmt.Errorf("no nameservers configured")
	}
	return net.JoinHostPort(conf.Servers[0], conf.Port), nil
}

func interfaceAddrs() ([]net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}

	var ips []net.IP
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		ips = append(ips, ipNet.IP)
	}
	return ips, nil
}
