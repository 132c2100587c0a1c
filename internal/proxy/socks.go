// Package proxy builds HTTP clients that tunnel through a SOCKS5 proxy.
// All outbound API traffic goes through one when --proxy is set, so the
// assistant works behind restrictive networks.
package proxy

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"
)

// NewSocksClient returns an HTTP client dialing through the SOCKS5 proxy
// at addr (host:port).
func NewSocksClient(addr string, timeout time.Duration) (*http.Client, error) {
	dialer, err := proxy.SOCKS5("tcp", addr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("socks5 dialer: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		},
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}
