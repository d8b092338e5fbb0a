package discovery

import (
	"net"
	"testing"
)

func TestBridgeAddrPrefersIPv4(t *testing.T) {
	b := Bridge{
		Instance:  "fujibus on bench",
		Addresses: []net.IP{net.ParseIP("fe80::1"), net.ParseIP("192.168.1.42")},
		Port:      6502,
	}
	addr, err := b.Addr()
	if err != nil {
		t.Fatalf("Addr: %v", err)
	}
	if addr != "192.168.1.42:6502" {
		t.Fatalf("got %q, want 192.168.1.42:6502", addr)
	}
}

func TestBridgeAddrFallsBackToIPv6(t *testing.T) {
	b := Bridge{Addresses: []net.IP{net.ParseIP("fe80::1")}, Port: 6502}
	addr, err := b.Addr()
	if err != nil {
		t.Fatalf("Addr: %v", err)
	}
	if addr != "[fe80::1]:6502" {
		t.Fatalf("got %q", addr)
	}
}

func TestBridgeAddrNoAddresses(t *testing.T) {
	b := Bridge{Instance: "ghost"}
	if _, err := b.Addr(); err == nil {
		t.Fatal("expected error for bridge with no addresses")
	}
}
