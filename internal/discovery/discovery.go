// Package discovery finds the rule authority on the local network over mDNS.
package discovery

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"

	"github.com/pion/mdns/v2"
	"go.uber.org/zap"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"smartgreenhouse/internal/utils"
)

// Resolver maps an mDNS name such as "greenhouse.local" to an address
type Resolver func(ctx context.Context, name string) (netip.Addr, error)

// MDNS returns a Resolver that queries the local network.
func MDNS(logger *zap.Logger) Resolver {
	logger = utils.OrNop(logger)
	return func(ctx context.Context, name string) (netip.Addr, error) {
		conn, err := openConn(logger)
		if err != nil {
			return netip.Addr{}, err
		}
		defer conn.Close()

		_, addr, err := conn.QueryAddr(ctx, name)
		if err != nil {
			return netip.Addr{}, fmt.Errorf("mdns query %s: %w", name, err)
		}
		logger.Info("Resolved authority over mDNS", zap.String("name", name), zap.String("addr", addr.String()))
		return addr, nil
	}
}

func openConn(logger *zap.Logger) (*mdns.Conn, error) {
	addr4, err := net.ResolveUDPAddr("udp4", mdns.DefaultAddressIPv4)
	if err != nil {
		return nil, err
	}
	l4, err := net.ListenUDP("udp4", addr4)
	if err != nil {
		return nil, fmt.Errorf("listen udp4 for mdns: %w", err)
	}

	var p6 *ipv6.PacketConn
	if addr6, err := net.ResolveUDPAddr("udp6", mdns.DefaultAddressIPv6); err == nil {
		if l6, err := net.ListenUDP("udp6", addr6); err == nil {
			p6 = ipv6.NewPacketConn(l6)
		} else {
			logger.Debug("mDNS over IPv6 unavailable", zap.Error(err))
		}
	}

	return mdns.Server(ipv4.NewPacketConn(l4), p6, &mdns.Config{})
}

// ResolveURL replaces the host of base with the address of name, keeping
// scheme, port and path. An empty name returns base unchanged.
func ResolveURL(ctx context.Context, base, name string, resolve Resolver) (string, error) {
	if name == "" {
		return base, nil
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse authority url: %w", err)
	}
	addr, err := resolve(ctx, name)
	if err != nil {
		return "", err
	}
	host := addr.Unmap().String()
	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else if addr.Is6() && !addr.Is4In6() {
		u.Host = "[" + host + "]"
	} else {
		u.Host = host
	}
	return u.String(), nil
}
