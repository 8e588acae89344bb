package scanning

import (
	"net"
	"strconv"
	"strings"
)

const (
	// Port bounds for a parsed portid.
	minPort = 1
	maxPort = 65535
)

// StateOpen is the only port state that becomes a ServiceRecord.
const StateOpen = "open"

// ServiceRecord is one open port discovered on a host.
type ServiceRecord struct {
	// IP is the host address as reported by the engine
	IP string
	// Port is the port number (1-65535)
	Port int
	// Service is the detected service name, possibly empty
	Service string
	// Product is the detected product name, possibly empty
	Product string
	// Version is the detected product version, possibly empty
	Version string
}

// Address returns the host:port pair used to reach the service.
func (r ServiceRecord) Address() string {
	return net.JoinHostPort(r.IP, strconv.Itoa(r.Port))
}

// Description returns "product version" the way the inventory line shows it.
// Both parts are kept even when empty so the output shape stays fixed.
func (r ServiceRecord) Description() string {
	return r.Product + " " + r.Version
}

// Label is a compact service label for tables: the name plus any non-empty
// product and version.
func (r ServiceRecord) Label() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{r.Service, r.Product, r.Version} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
