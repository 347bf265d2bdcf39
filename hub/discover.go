package hub

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"
)

const haService = "_home-assistant._tcp"

var (
	ErrHubNotFound = errors.New("no Home Assistant instance found on the local network")

	fnBrowse = func(ctx context.Context, service string, entries chan *zeroconf.ServiceEntry) error {
		resolver, err := zeroconf.NewResolver(nil)
		if err != nil {
			return fmt.Errorf("failed to create mDNS resolver: %w", err)
		}
		return resolver.Browse(ctx, service, "local.", entries)
	}
)

// Discover browses mDNS for Home Assistant and returns the base URL of the first instance found.
func Discover(ctx context.Context, logger *zap.SugaredLogger, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := fnBrowse(ctx, haService, entries); err != nil {
		return "", err
	}

	for {
		select {
		case <-ctx.Done():
			return "", ErrHubNotFound
		case entry, ok := <-entries:
			if !ok {
				return "", ErrHubNotFound
			}
			if u, ok := baseURL(entry); ok {
				logger.Infof("Discovered Home Assistant %q at %v", entry.Instance, u)
				return u, nil
			}
			logger.Debugf("Ignoring Home Assistant advertisement without an address: %v", entry.Instance)
		}
	}
}

// baseURL prefers the URL advertised in the TXT record and falls back to the first IPv4 address.
func baseURL(entry *zeroconf.ServiceEntry) (string, bool) {
	if entry == nil {
		return "", false
	}
	for _, key := range []string{"internal_url=", "base_url="} {
		for _, txt := range entry.Text {
			if v, found := strings.CutPrefix(txt, key); found && v != "" {
				return strings.TrimRight(v, "/"), true
			}
		}
	}
	if len(entry.AddrIPv4) > 0 && entry.Port > 0 {
		return "http://" + net.JoinHostPort(entry.AddrIPv4[0].String(), strconv.Itoa(entry.Port)), true
	}
	return "", false
}
