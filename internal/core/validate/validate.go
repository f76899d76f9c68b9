// Package validate provides shared validation functions.
package validate

import (
	"fmt"
	"strings"
)

// EndpointName validates an endpoint name is non-empty and free of whitespace.
func EndpointName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.ContainsAny(name, " \t\n") {
		return fmt.Errorf("name %q must not contain whitespace", name)
	}
	return nil
}

// Address validates a party address of the form user@host.
func Address(addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return fmt.Errorf("address is required")
	}
	user, host, ok := strings.Cut(addr, "@")
	if !ok || user == "" || host == "" {
		return fmt.Errorf("address %q must have the form user@host", addr)
	}
	if strings.ContainsAny(addr, " \t;<>") {
		return fmt.Errorf("address %q contains invalid characters", addr)
	}
	return nil
}
