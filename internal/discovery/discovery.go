// Package discovery browses for network-bridged FujiBus ports via mDNS.
//
// A serial-over-IP bridge (e.g. ser2net) fronting the real UART can
// advertise itself as a "_fujibus._tcp" service; this package locates one
// so the CLI's --discover flag can fill in --port without the caller
// needing to know the bridge's address ahead of time. It never talks
// FujiBus itself — the bus session still speaks to whatever address comes
// back over its usual framed byte stream.
package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the mDNS service type advertised by FujiBus serial bridges.
const ServiceType = "_fujibus._tcp"

// Bridge describes a discovered serial-over-IP bridge.
type Bridge struct {
	Instance  string // advertised name, e.g. "fujibus on workshop-pi"
	Hostname  string // DNS hostname, e.g. "workshop-pi.local."
	Addresses []net.IP
	Port      int
	TXT       []string
}

// Addr returns the first IPv4 (preferred) or IPv6 address as "host:port",
// suitable for passing straight to net.Dial.
func (b Bridge) Addr() (string, error) {
	for _, ip := range b.Addresses {
		if ip4 := ip.To4(); ip4 != nil {
			return fmt.Sprintf("%s:%d", ip4.String(), b.Port), nil
		}
	}
	if len(b.Addresses) > 0 {
		return fmt.Sprintf("[%s]:%d", b.Addresses[0].String(), b.Port), nil
	}
	return "", fmt.Errorf("discovery: bridge %q has no resolved address", b.Instance)
}

// Discover performs a blocking mDNS browse for FujiBus bridge services and
// returns deduplicated entries found before ctx is done.
func Discover(ctx context.Context) ([]Bridge, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(map[string]Bridge)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case e, ok := <-entries:
				if !ok {
					return
				}
				if e == nil {
					continue
				}
				addrs := make([]net.IP, 0, len(e.AddrIPv4)+len(e.AddrIPv6))
				addrs = append(addrs, e.AddrIPv4...)
				addrs = append(addrs, e.AddrIPv6...)

				key := fmt.Sprintf("%s|%d", e.HostName, e.Port)
				found[key] = Bridge{
					Instance:  cleanInstance(e.Instance),
					Hostname:  e.HostName,
					Addresses: addrs,
					Port:      e.Port,
					TXT:       append([]string{}, e.Text...),
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, "local.", entries); err != nil {
		return nil, fmt.Errorf("discovery: browse: %w", err)
	}
	<-done

	out := make([]Bridge, 0, len(found))
	for _, b := range found {
		out = append(out, b)
	}
	return out, nil
}

// cleanInstance undoes zeroconf's escaping of literal spaces in instance names.
func cleanInstance(s string) string {
	return strings.ReplaceAll(s, `\ `, " ")
}
