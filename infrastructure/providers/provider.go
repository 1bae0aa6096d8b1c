// Package providers holds the built-in data source provider descriptors.
// A provider is stateless for the process lifetime: identity constants,
// capability advertisement, config and auth validation, and an accessor
// factory method.
package providers

import (
	"fmt"

	"go.uber.org/zap"

	"bb-datasources/application/ports"
	"bb-datasources/domain/core/valueobjects"
	"bb-datasources/pkg/errors"
)

// descriptor carries the construction-time constants shared by every
// provider implementation.
type descriptor struct {
	providerType valueobjects.ProviderType
	accessMethod valueobjects.AccessMethod
	name         string
	description  string
	uriTemplate  string
	configFields []string
	authMethod   valueobjects.AuthMethod
	capabilities valueobjects.CapabilitySet
	guidance     ports.ContentTypeGuidance
	logger       *zap.Logger
}

func (d *descriptor) ProviderType() valueobjects.ProviderType { return d.providerType }
func (d *descriptor) AccessMethod() valueobjects.AccessMethod { return d.accessMethod }
func (d *descriptor) Name() string                            { return d.name }
func (d *descriptor) Description() string                     { return d.description }
func (d *descriptor) URITemplate() string                     { return d.uriTemplate }
func (d *descriptor) AuthMethod() valueobjects.AuthMethod     { return d.authMethod }

func (d *descriptor) RequiredConfigFields() []string {
	return append([]string(nil), d.configFields...)
}

func (d *descriptor) Capabilities() valueobjects.CapabilitySet {
	return d.capabilities.Clone()
}

func (d *descriptor) ContentTypeGuidance() ports.ContentTypeGuidance {
	out := d.guidance
	out.UsageNotes = append([]string(nil), d.guidance.UsageNotes...)
	out.ExampleURIs = append([]string(nil), d.guidance.ExampleURIs...)
	return out
}

// ValidateConfig checks that every required field is present as a
// non-empty string.
func (d *descriptor) ValidateConfig(config map[string]interface{}) error {
	for _, field := range d.configFields {
		value, ok := config[field]
		if !ok {
			return errors.NewInvalidConfig(fmt.Sprintf("missing required config field %q", field))
		}
		if s, isString := value.(string); isString && s == "" {
			return errors.NewInvalidConfig(fmt.Sprintf("config field %q cannot be empty", field))
		}
	}
	return nil
}

// ValidateAuth checks an auth record against the declared method.
func (d *descriptor) ValidateAuth(auth *valueobjects.Auth) error {
	if err := auth.Validate(d.authMethod); err != nil {
		return errors.NewInvalidConfig(err.Error())
	}
	return nil
}

// checkConnection verifies a connection targets this provider.
func (d *descriptor) checkConnection(conn ports.ConnectionInfo) error {
	if conn.ProviderType() != d.providerType {
		return errors.NewInvalidConfig(fmt.Sprintf(
			"connection %q targets provider %q, not %q",
			conn.Name(), conn.ProviderType(), d.providerType))
	}
	return nil
}
