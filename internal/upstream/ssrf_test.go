package upstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateHost_BlockedAddresses(t *testing.T) {
	blocked := []string{
		"127.0.0.1",
		"127.0.0.1:8080",
		"10.0.0.5",
		"172.16.3.4",
		"192.168.1.1:443",
		"169.254.169.254", // link-local (cloud metadata)
		"224.0.0.1",       // multicast
		"0.0.0.0",
		"192.0.2.10",   // TEST-NET-1
		"198.51.100.7", // TEST-NET-2
		"203.0.113.99", // TEST-NET-3
		"198.18.0.1",   // benchmarking
		"100.64.10.10", // CGNAT
		"::1",
		"[::1]:443",
		"fe80::1",
		"",
	}
	for _, host := range blocked {
		assert.Error(t, ValidateHost(host), "host %q should be rejected", host)
	}
}

func TestValidateHost_PublicAddresses(t *testing.T) {
	allowed := []string{
		"1.1.1.1",
		"8.8.8.8:53",
		"203.113.131.1", // public VN range, not TEST-NET-3
		"2606:4700:4700::1111",
	}
	for _, host := range allowed {
		assert.NoError(t, ValidateHost(host), "host %q should be allowed", host)
	}
}

func TestValidateHost_UnresolvedHostname(t *testing.T) {
	err := ValidateHost("definitely-not-a-real-host.invalid")
	assert.Error(t, err)
}
