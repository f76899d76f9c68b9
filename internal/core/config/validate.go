package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/hay-kot/criterio"
)

// maxChunkSize is the largest chunk size that does not draw a warning.
const maxChunkSize = 64 * 1024

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep performs comprehensive validation of the configuration.
// Unlike Validate(), this checks endpoint URIs and file access.
func (c *Config) ValidateDeep(configPath string) error {
	var errs criterio.FieldErrorsBuilder

	if err := c.Validate(); err != nil {
		var fieldErrs criterio.FieldErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			errs = errs.Append(fe.Field, fe.Err)
		}
	}

	errs = c.validateFileAccess(errs, configPath)
	errs = c.validateEndpointURIs(errs)
	errs = c.validateCustomCapabilities(errs)

	return errs.ToError()
}

// validateFileAccess checks the config file and data directory.
func (c *Config) validateFileAccess(errs criterio.FieldErrorsBuilder, configPath string) criterio.FieldErrorsBuilder {
	if configPath != "" {
		if info, err := os.Stat(configPath); err == nil {
			if info.IsDir() {
				errs = errs.Append("config", fmt.Errorf("%s is a directory, not a file", configPath))
			}
		} else if !os.IsNotExist(err) {
			errs = errs.Append("config", fmt.Errorf("cannot access %s: %w", configPath, err))
		}
	}

	if c.DataDir != "" {
		if info, err := os.Stat(c.DataDir); err == nil {
			if !info.IsDir() {
				errs = errs.Append("data_dir", fmt.Errorf("%s exists but is not a directory", c.DataDir))
			}
		} else if !os.IsNotExist(err) {
			errs = errs.Append("data_dir", fmt.Errorf("cannot access %s: %w", c.DataDir, err))
		}
	}

	return errs
}

// validateEndpointURIs checks every endpoint URI uses a supported scheme.
func (c *Config) validateEndpointURIs(errs criterio.FieldErrorsBuilder) criterio.FieldErrorsBuilder {
	for i, ep := range c.Endpoints {
		if strings.TrimSpace(ep.URI) == "" {
			continue
		}
		field := fmt.Sprintf("endpoints[%d].uri", i)

		u, err := url.Parse(ep.URI)
		if err != nil {
			errs = errs.Append(field, fmt.Errorf("invalid uri %q: %w", ep.URI, err))
			continue
		}
		if u.Scheme != SchemeLoopback {
			errs = errs.Append(field, fmt.Errorf("unsupported scheme %q, only %s:// endpoints can be opened", u.Scheme, SchemeLoopback))
			continue
		}
		if u.Host == "" {
			errs = errs.Append(field, fmt.Errorf("uri %q has no endpoint host", ep.URI))
		}
	}
	return errs
}

// validateCustomCapabilities checks custom feature tag names.
func (c *Config) validateCustomCapabilities(errs criterio.FieldErrorsBuilder) criterio.FieldErrorsBuilder {
	for name := range c.Capabilities.Custom {
		if name == "" || strings.ContainsAny(name, " \t=;\"") {
			errs = errs.Append("capabilities.custom", fmt.Errorf("invalid feature tag name %q", name))
		}
	}
	return errs
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if c.ComposingTimeout >= c.IdleTimeout {
		warnings = append(warnings, ValidationWarning{
			Category: "Timeouts",
			Item:     "composing_timeout",
			Message:  fmt.Sprintf("%s is not shorter than idle_timeout (%s); composing indicators will never time out before the session does", c.ComposingTimeout, c.IdleTimeout),
		})
	}

	if c.SweepInterval > c.AcceptTimeout {
		warnings = append(warnings, ValidationWarning{
			Category: "Timeouts",
			Item:     "sweep_interval",
			Message:  fmt.Sprintf("%s is longer than accept_timeout (%s); unanswered sessions will linger past their timeout", c.SweepInterval, c.AcceptTimeout),
		})
	}

	if !c.Capabilities.Text && !c.Capabilities.Data {
		warnings = append(warnings, ValidationWarning{
			Category: "Capabilities",
			Item:     "capabilities",
			Message:  "neither text nor data is advertised; peers may refuse message sessions",
		})
	}

	if c.ChunkSize > maxChunkSize {
		warnings = append(warnings, ValidationWarning{
			Category: "Transport",
			Item:     "chunk_size",
			Message:  fmt.Sprintf("%d bytes is larger than %d; progress will be reported coarsely", c.ChunkSize, maxChunkSize),
		})
	}

	return warnings
}
