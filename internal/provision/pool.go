package provision

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"eduvpn.org/wg-provision/internal/wgconf"
)

// Pool is the universe of assignable host addresses: Base.Start through
// Base.End inclusive, where Base is a 3-octet IPv4 prefix such as "10.0.0".
type Pool struct {
	Base  string
	Start int
	End   int
}

func NewPool(base string, start, end int) (Pool, error) {
	octets := strings.Split(base, ".")
	if len(octets) != 3 {
		return Pool{}, fmt.Errorf("pool base %q is not a 3-octet IPv4 prefix", base)
	}
	for _, o := range octets {
		n, err := strconv.Atoi(o)
		if err != nil || n < 0 || n > 255 {
			return Pool{}, fmt.Errorf("pool base %q is not a 3-octet IPv4 prefix", base)
		}
	}
	if start < 2 || start > end || end > 254 {
		return Pool{}, fmt.Errorf("pool range %d-%d violates 2 <= start <= end <= 254", start, end)
	}
	return Pool{Base: base, Start: start, End: end}, nil
}

// ServerIP is the address conventionally taken by the server itself.
func (p Pool) ServerIP() net.IP {
	return net.ParseIP(p.Base + ".1")
}

// HostNumber returns the pool host number of ip, or false when ip does not
// fall under the pool's prefix.
func (p Pool) HostNumber(ip net.IP) (int, bool) {
	s := ip.String()
	rest, ok := strings.CutPrefix(s, p.Base+".")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Contains reports whether ip is an assignable pool address.
func (p Pool) Contains(ip net.IP) bool {
	n, ok := p.HostNumber(ip)
	return ok && n >= p.Start && n <= p.End
}

// InUse reports whether ip already appears in the registry document.
func (p Pool) InUse(doc *wgconf.Document, ip net.IP) bool {
	n, ok := p.HostNumber(ip)
	if !ok {
		return false
	}
	return p.usedHostNumbers(doc)[n]
}

// Allocate scans every property value in the registry document for
// addresses under the pool prefix and returns the lowest free address.
// The scan is a pure read: values that do not look like pool addresses are
// ignored, so a partially written registry never makes allocation fail,
// only a genuinely full pool does.
func (p Pool) Allocate(doc *wgconf.Document) (net.IP, error) {
	used := p.usedHostNumbers(doc)
	for n := p.Start; n <= p.End; n++ {
		if !used[n] {
			return net.ParseIP(fmt.Sprintf("%s.%d", p.Base, n)), nil
		}
	}
	return nil, ErrPoolExhausted
}

func (p Pool) usedHostNumbers(doc *wgconf.Document) map[int]bool {
	used := make(map[int]bool)
	for _, section := range doc.Sections {
		for _, prop := range section.Props {
			values := strings.FieldsFunc(prop.Value, func(r rune) bool {
				return r == ',' || r == ' ' || r == '\t'
			})
			for _, v := range values {
				addr, _, _ := strings.Cut(v, "/")
				ip := net.ParseIP(addr)
				if ip == nil {
					continue
				}
				if n, ok := p.HostNumber(ip); ok {
					used[n] = true
				}
			}
		}
	}
	return used
}
