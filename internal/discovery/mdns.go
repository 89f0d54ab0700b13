// ABOUTME: mDNS service discovery for the PCM push endpoint
// ABOUTME: Players advertise _hdmiplay._tcp; producers look one up with Find
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/Resonate-Protocol/hdmiplay/internal/version"
	"github.com/hashicorp/mdns"
)

// ServiceType is the advertised DNS-SD service
const ServiceType = "_" + version.Product + "._tcp"

// queryWindow is how long each Find round listens for answers
const queryWindow = time.Second

// ErrNoEndpoint is returned when Find gives up without a match
var ErrNoEndpoint = errors.New("no push endpoint found")

// Config describes the endpoint a player advertises
type Config struct {
	ServiceName string
	Port        int
	Path        string   // WebSocket path of the push endpoint
	Info        []string // Extra TXT records, e.g. "rate=48000"
}

// Advertiser publishes one push endpoint until Stop
type Advertiser struct {
	config Config
	server *mdns.Server
}

// NewAdvertiser creates an advertiser; nothing is sent until Start
func NewAdvertiser(config Config) *Advertiser {
	return &Advertiser{config: config}
}

// txtRecords returns the TXT records for the endpoint
func (a *Advertiser) txtRecords() []string {
	txt := []string{
		"path=" + a.config.Path,
		"version=" + version.Version,
		"vendor=" + version.Manufacturer,
	}
	return append(txt, a.config.Info...)
}

// Start answers mDNS queries for the endpoint
func (a *Advertiser) Start() error {
	if a.server != nil {
		return fmt.Errorf("already advertising %s", a.config.ServiceName)
	}

	// An empty list lets the library resolve the hostname itself
	ips := advertisedIPs()

	service, err := mdns.NewMDNSService(
		a.config.ServiceName,
		ServiceType,
		"",
		"",
		a.config.Port,
		ips,
		a.txtRecords(),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}
	a.server = server

	log.Printf("Advertising %s on port %d (%s, %d addresses)", a.config.ServiceName, a.config.Port, ServiceType, len(ips))
	return nil
}

// Stop withdraws the advertisement
func (a *Advertiser) Stop() {
	if a.server == nil {
		return
	}
	if err := a.server.Shutdown(); err != nil {
		log.Printf("mDNS shutdown error: %v", err)
	}
	a.server = nil
}

// Endpoint is a discovered push endpoint
type Endpoint struct {
	Name string
	Host string
	Port int
	Path string
	Info []string
}

// URL returns the WebSocket URL of the endpoint
func (e *Endpoint) URL() string {
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(e.Host, strconv.Itoa(e.Port)), e.Path)
}

// Rate returns the advertised sample rate, or 0 if none was published
func (e *Endpoint) Rate() int {
	rate, err := strconv.Atoi(txtValue(e.Info, "rate"))
	if err != nil {
		return 0
	}
	return rate
}

// endpointFromEntry converts a query answer; entries without an IPv4
// address or port are unusable
func endpointFromEntry(entry *mdns.ServiceEntry) (*Endpoint, bool) {
	if entry == nil || entry.AddrV4 == nil || entry.Port == 0 {
		return nil, false
	}

	path := txtValue(entry.InfoFields, "path")
	if path == "" {
		path = "/"
	}
	return &Endpoint{
		Name: strings.TrimSuffix(entry.Name, "."+ServiceType+".local."),
		Host: entry.AddrV4.String(),
		Port: entry.Port,
		Path: path,
		Info: entry.InfoFields,
	}, true
}

// Find queries the network until an endpoint accepted by match answers or
// ctx ends. A nil match accepts any endpoint.
func Find(ctx context.Context, match func(*Endpoint) bool) (*Endpoint, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoEndpoint, err)
		}

		entries := make(chan *mdns.ServiceEntry, 16)
		found := make(chan *Endpoint, 1)
		done := make(chan struct{})

		go func() {
			defer close(done)
			for entry := range entries {
				ep, ok := endpointFromEntry(entry)
				if !ok || (match != nil && !match(ep)) {
					continue
				}
				select {
				case found <- ep:
				default:
				}
			}
		}()

		err := mdns.Query(&mdns.QueryParam{
			Service: ServiceType,
			Domain:  "local",
			Timeout: queryWindow,
			Entries: entries,
		})
		close(entries)
		<-done
		if err != nil {
			return nil, fmt.Errorf("mDNS query: %w", err)
		}

		select {
		case ep := <-found:
			log.Printf("Found push endpoint %s at %s", ep.Name, ep.URL())
			return ep, nil
		default:
		}
	}
}

// txtValue returns the value of key=value in fields
func txtValue(fields []string, key string) string {
	for _, f := range fields {
		if v, ok := strings.CutPrefix(f, key+"="); ok {
			return v
		}
	}
	return ""
}

// advertisedIPs returns the non-loopback IPv4 addresses of this host
func advertisedIPs() []net.IP {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		log.Printf("Warning: listing interface addresses: %v", err)
		return nil
	}

	var ips []net.IP
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() || ipnet.IP.To4() == nil {
			continue
		}
		ips = append(ips, ipnet.IP)
	}
	return ips
}
