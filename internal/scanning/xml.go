package scanning

import (
	"encoding/xml"
	stderrors "errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/anstrom/recon/internal/errors"
)

// nmapRunXML is the root of an nmap -oX report. Only the elements the
// inventory needs are decoded.
type nmapRunXML struct {
	XMLName xml.Name      `xml:"nmaprun"`
	Hosts   []nmapHostXML `xml:"host"`
}

// nmapHostXML is a single <host>. Ports is a pointer so a missing <ports>
// element can be told apart from an empty one.
type nmapHostXML struct {
	Addresses []nmapAddressXML `xml:"address"`
	Ports     *nmapPortsXML    `xml:"ports"`
}

type nmapAddressXML struct {
	Addr     string `xml:"addr,attr"`
	AddrType string `xml:"addrtype,attr"`
}

type nmapPortsXML struct {
	Ports []nmapPortXML `xml:"port"`
}

// nmapPortXML is a single <port> with its state and optional service.
type nmapPortXML struct {
	Protocol string          `xml:"protocol,attr"`
	PortID   string          `xml:"portid,attr"`
	State    *nmapStateXML   `xml:"state"`
	Service  *nmapServiceXML `xml:"service"`
}

type nmapStateXML struct {
	State string `xml:"state,attr"`
}

type nmapServiceXML struct {
	Name    string `xml:"name,attr"`
	Product string `xml:"product,attr"`
	Version string `xml:"version,attr"`
}

// ParseReport reads an nmap XML report and returns one ServiceRecord per open
// port, in document order.
func ParseReport(path string) ([]ServiceRecord, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the invoker's own artifact
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ErrReportNotFound(path, err)
		}
		return nil, errors.WrapParseError(errors.CodeParse, "read structured report", err).WithPath(path)
	}

	records, err := ParseReportBytes(data)
	if err != nil {
		var parseErr *errors.ParseError
		if stderrors.As(err, &parseErr) {
			return nil, parseErr.WithPath(path)
		}
		return nil, err
	}
	return records, nil
}

// ParseReportBytes parses an in-memory nmap XML report.
func ParseReportBytes(data []byte) ([]ServiceRecord, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.NewParseError("structured report is empty")
	}

	var run nmapRunXML
	if err := xml.Unmarshal(data, &run); err != nil {
		return nil, errors.WrapParseError(errors.CodeParse, "malformed structured report", err)
	}

	records := make([]ServiceRecord, 0)
	for hostIdx := range run.Hosts {
		host := &run.Hosts[hostIdx]

		if len(host.Addresses) == 0 || host.Addresses[0].Addr == "" {
			return nil, errors.NewParseError(fmt.Sprintf("host %d has no address", hostIdx+1))
		}
		addr := host.Addresses[0].Addr

		if host.Ports == nil {
			return nil, errors.NewParseError(fmt.Sprintf("host %s has no ports element", addr))
		}

		for portIdx := range host.Ports.Ports {
			record, open, err := convertPort(addr, &host.Ports.Ports[portIdx])
			if err != nil {
				return nil, err
			}
			if open {
				records = append(records, record)
			}
		}
	}

	return records, nil
}

// convertPort validates one <port> and reports whether it is open.
func convertPort(addr string, p *nmapPortXML) (ServiceRecord, bool, error) {
	if p.State == nil {
		return ServiceRecord{}, false, errors.NewParseError(
			fmt.Sprintf("port %s on %s has no state", p.PortID, addr))
	}

	if p.State.State != StateOpen {
		return ServiceRecord{}, false, nil
	}

	number, err := strconv.Atoi(strings.TrimSpace(p.PortID))
	if err != nil {
		return ServiceRecord{}, false, errors.WrapParseError(errors.CodeParse,
			fmt.Sprintf("invalid portid %q on %s", p.PortID, addr), err)
	}
	if number < minPort || number > maxPort {
		return ServiceRecord{}, false, errors.NewParseError(
			fmt.Sprintf("portid %d on %s is out of range", number, addr))
	}

	record := ServiceRecord{IP: addr, Port: number}
	if p.Service != nil {
		record.Service = p.Service.Name
		record.Product = p.Service.Product
		record.Version = p.Service.Version
	}
	return record, true, nil
}
