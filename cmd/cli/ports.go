package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/anstrom/recon/internal/errors"
)

const (
	minPort = 1
	maxPort = 65535
)

// validatePorts checks an nmap port specification before it reaches the
// engine: single ports, ranges, comma lists and "T:" top-port shorthands.
func validatePorts(ports string) error {
	if err := checkPortSpec(ports); err != nil {
		return errors.WrapConfigError(errors.CodeValidation, fmt.Sprintf("invalid ports %q", ports), err)
	}
	return nil
}

func checkPortSpec(ports string) error {
	if strings.TrimSpace(ports) == "" {
		return fmt.Errorf("empty port specification")
	}

	if top, ok := strings.CutPrefix(ports, "T:"); ok {
		n, err := strconv.Atoi(top)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid top ports count: %s", top)
		}
		return nil
	}

	for _, part := range strings.Split(ports, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if !strings.Contains(part, "-") {
			if _, err := parsePort(part); err != nil {
				return fmt.Errorf("invalid port: %s", part)
			}
			continue
		}

		bounds := strings.Split(part, "-")
		if len(bounds) != 2 {
			return fmt.Errorf("invalid port range: %s", part)
		}
		start, err := parsePort(bounds[0])
		if err != nil {
			return fmt.Errorf("invalid start port in range: %s", bounds[0])
		}
		end, err := parsePort(bounds[1])
		if err != nil {
			return fmt.Errorf("invalid end port in range: %s", bounds[1])
		}
		if start > end {
			return fmt.Errorf("start port cannot be greater than end port: %s", part)
		}
	}

	return nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if port < minPort || port > maxPort {
		return 0, fmt.Errorf("port %d out of range", port)
	}
	return port, nil
}
