package model

import "slices"

// ViewConfig holds optional per-view overrides.
type ViewConfig struct {
	// ViewExternalID is the external id of the view. Defaults to the type name.
	ViewExternalID string `json:"viewExternalId,omitempty" yaml:"viewExternalId,omitempty"`
	// InstanceSpaces restricts queries to these spaces.
	InstanceSpaces []string `json:"instanceSpaces,omitempty" yaml:"instanceSpaces,omitempty"`
	// InstanceSpacesPrefix restricts queries to spaces with this prefix.
	InstanceSpacesPrefix string `json:"instanceSpacesPrefix,omitempty" yaml:"instanceSpacesPrefix,omitempty"`
	// ViewCode prefixes generated model ids.
	ViewCode string `json:"viewCode,omitempty" yaml:"viewCode,omitempty"`
}

// Configurer is implemented by view models that override their ViewConfig.
// Either a value or a pointer receiver works.
type Configurer interface {
	ViewConfig() ViewConfig
}

func (c ViewConfig) clone() ViewConfig {
	c.InstanceSpaces = slices.Clone(c.InstanceSpaces)
	return c
}
