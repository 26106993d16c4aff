// Package discovery finds NAS devices advertising SMB over mDNS.
package discovery

import (
	"context"
	"sort"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/sublayer/sublayer/pkg/log"
)

const (
	smbService = "_smb._tcp"
	smbDomain  = "local."

	defaultBrowseTimeout = 3 * time.Second
)

// Device is one discovered SMB host.
type Device struct {
	Name string `json:"name"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Browser scans the local network for SMB services on demand.
type Browser struct {
	timeout time.Duration
}

func NewBrowser() *Browser {
	return &Browser{timeout: defaultBrowseTimeout}
}

// Discover browses _smb._tcp for the configured window and returns the
// devices found, sorted by name. An unreachable multicast stack yields an
// empty list, not an error.
func (b *Browser) Discover(ctx context.Context) []Device {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		log.Warn("mDNS resolver unavailable: %v", err)
		return nil
	}

	browseCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(map[string]Device)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for entry := range entries {
			device, ok := toDevice(entry)
			if !ok {
				continue
			}
			found[device.Name] = device
			log.Debug("Discovered NAS %s at %s:%d", device.Name, device.Host, device.Port)
		}
	}()

	if err := resolver.Browse(browseCtx, smbService, smbDomain, entries); err != nil {
		log.Warn("mDNS browse failed: %v", err)
		return nil
	}
	<-browseCtx.Done()
	<-done

	devices := make([]Device, 0, len(found))
	for _, device := range found {
		devices = append(devices, device)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Name < devices[j].Name })

	log.Info("NAS discovery found %d devices", len(devices))
	return devices
}

func toDevice(entry *zeroconf.ServiceEntry) (Device, bool) {
	if entry == nil {
		return Device{}, false
	}

	host := ""
	if len(entry.AddrIPv4) > 0 {
		host = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		host = entry.AddrIPv6[0].String()
	}
	if host == "" {
		return Device{}, false
	}

	port := entry.Port
	if port <= 0 {
		port = 445
	}
	return Device{Name: entry.Instance, Host: host, Port: port}, true
}
