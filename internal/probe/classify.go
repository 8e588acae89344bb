// Package probe runs the follow-up checks for each discovered service: a
// page fetch for web services and a single banner read for everything else.
package probe

import (
	"net"
	"strconv"

	"github.com/anstrom/recon/internal/scanning"
)

// Action is the follow-up probe chosen for a service.
type Action int

const (
	// ActionBanner reads whatever the service sends after connect.
	ActionBanner Action = iota
	// ActionWeb fetches the service's root page.
	ActionWeb
)

func (a Action) String() string {
	switch a {
	case ActionWeb:
		return "web"
	case ActionBanner:
		return "banner"
	default:
		return "unknown"
	}
}

const httpsPort = 443

// Classify picks the probe for a record. Only the exact service names
// "http" and "https" count as web; "http-proxy", "ssl/http" and the like
// get a banner grab.
func Classify(rec scanning.ServiceRecord) Action {
	switch rec.Service {
	case "http", "https":
		return ActionWeb
	default:
		return ActionBanner
	}
}

// WebURL builds the root URL for a web record. The scheme is https when the
// service is "https" or the port is 443.
func WebURL(rec scanning.ServiceRecord) string {
	scheme := "http"
	if rec.Service == "https" || rec.Port == httpsPort {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort(rec.IP, strconv.Itoa(rec.Port))
}
