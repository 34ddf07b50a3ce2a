// Package clientip resolves the address of the client behind a request.
// Forwarding headers are honored only when the direct peer is a configured
// proxy; otherwise any client could pick its own address.
package clientip

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Trusted is the set of proxy networks allowed to set X-Forwarded-For and
// X-Real-IP. The zero value trusts nobody and always answers with the peer
// address.
type Trusted struct {
	nets []*net.IPNet
}

// Parse builds a Trusted set from CIDRs or bare IPs ("10.0.0.0/8",
// "127.0.0.1").
func Parse(entries []string) (Trusted, error) {
	var t Trusted
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.Contains(e, "/") {
			ip := net.ParseIP(e)
			if ip == nil {
				return Trusted{}, fmt.Errorf("invalid proxy address %q", e)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			t.nets = append(t.nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(e)
		if err != nil {
			return Trusted{}, fmt.Errorf("invalid proxy network %q: %w", e, err)
		}
		t.nets = append(t.nets, n)
	}
	return t, nil
}

func (t Trusted) contains(ip net.IP) bool {
	for _, n := range t.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// From returns the client address for r. When the peer is a trusted proxy,
// X-Forwarded-For is walked right to left and the first hop that is not
// itself a trusted proxy wins; X-Real-IP is the fallback.
func (t Trusted) From(r *http.Request) string {
	peer := peerAddr(r.RemoteAddr)
	peerIP := net.ParseIP(peer)
	if peerIP == nil || !t.contains(peerIP) {
		return peer
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			ip := net.ParseIP(strings.TrimSpace(hops[i]))
			if ip == nil {
				break
			}
			if !t.contains(ip) {
				return ip.String()
			}
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	return peer
}

func peerAddr(remote string) string {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}
