package upstream

import (
	"fmt"
	"net"
	"strings"
)

// Documentation/test and benchmark ranges not covered by the net.IP
// classification helpers.
var blockedCIDRs = func() []*net.IPNet {
	cidrs := []string{
		"0.0.0.0/8",
		"100.64.0.0/10",   // CGNAT
		"192.0.2.0/24",    // TEST-NET-1
		"198.51.100.0/24", // TEST-NET-2
		"203.0.113.0/24",  // TEST-NET-3
		"198.18.0.0/15",   // benchmarking
		"192.88.99.0/24",  // 6to4 anycast
		"240.0.0.0/4",     // reserved
	}
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}()

// ValidateHost rejects hosts that resolve to non-public addresses. It is
// applied to every outbound URL host and every proxy host before any
// request byte is sent.
func ValidateHost(host string) error {
	h := host
	if strings.Contains(h, ":") {
		// Strip a port if present; bare IPv6 literals keep their colons.
		if hp, _, err := net.SplitHostPort(h); err == nil {
			h = hp
		}
	}
	h = strings.Trim(h, "[]")
	if h == "" {
		return fmt.Errorf("empty host")
	}

	if ip := net.ParseIP(h); ip != nil {
		return validateIP(ip)
	}

	ips, err := net.LookupIP(h)
	if err != nil {
		return fmt.Errorf("resolving %q: %w", h, err)
	}
	if len(ips) == 0 {
		return fmt.Errorf("host %q resolved to no addresses", h)
	}
	for _, ip := range ips {
		if err := validateIP(ip); err != nil {
			return fmt.Errorf("host %q: %w", h, err)
		}
	}
	return nil
}

func validateIP(ip net.IP) error {
	switch {
	case ip.IsLoopback():
		return fmt.Errorf("loopback address %s not allowed", ip)
	case ip.IsPrivate():
		return fmt.Errorf("private address %s not allowed", ip)
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return fmt.Errorf("link-local address %s not allowed", ip)
	case ip.IsMulticast():
		return fmt.Errorf("multicast address %s not allowed", ip)
	case ip.IsUnspecified():
		return fmt.Errorf("unspecified address %s not allowed", ip)
	}
	for _, n := range blockedCIDRs {
		if n.Contains(ip) {
			return fmt.Errorf("reserved address %s not allowed", ip)
		}
	}
	return nil
}
