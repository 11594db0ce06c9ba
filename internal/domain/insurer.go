package domain

import (
	"fmt"
	"sort"
)

// Rail is one of the communication channels used to reach an insurer.
type Rail string

const (
	RailPortalUpload  Rail = "portal_upload"
	RailDentalNetwork Rail = "dental_network"
	RailEClaims       Rail = "national_eclaims"
)

func (r Rail) Valid() bool {
	switch r {
	case RailPortalUpload, RailDentalNetwork, RailEClaims:
		return true
	}
	return false
}

// InsurerRailConfig is the static per-insurer configuration. Immutable after
// registry construction.
type InsurerRailConfig struct {
	Name                string      `json:"name"`
	Rail                Rail        `json:"rail"`
	Endpoint            string      `json:"endpoint"`
	ProcessingTimeMs    int         `json:"processing_time_ms"`
	ApprovalRate        float64     `json:"approval_rate"`
	InfoRequestRate     float64     `json:"info_request_rate"`
	SupportedClaimTypes []ClaimType `json:"supported_claim_types"`
}

// SupportsClaimType reports whether the insurer accepts the given claim type.
func (c InsurerRailConfig) SupportsClaimType(t ClaimType) bool {
	for _, ct := range c.SupportedClaimTypes {
		if ct == t {
			return true
		}
	}
	return false
}

// InsurerRegistry maps insurer identity to rail configuration. All entries
// are validated at construction so an unknown insurer or a malformed config
// fails fast instead of at call time.
type InsurerRegistry struct {
	byName map[string]InsurerRailConfig
}

func NewInsurerRegistry(configs []InsurerRailConfig) (*InsurerRegistry, error) {
	byName := make(map[string]InsurerRailConfig, len(configs))
	for _, cfg := range configs {
		if cfg.Name == "" {
			return nil, fmt.Errorf("insurer config with empty name")
		}
		if _, dup := byName[cfg.Name]; dup {
			return nil, fmt.Errorf("duplicate insurer config %q", cfg.Name)
		}
		if !cfg.Rail.Valid() {
			return nil, fmt.Errorf("insurer %q: unknown rail %q", cfg.Name, cfg.Rail)
		}
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("insurer %q: endpoint is required", cfg.Name)
		}
		if cfg.ApprovalRate < 0 || cfg.InfoRequestRate < 0 || cfg.ApprovalRate+cfg.InfoRequestRate > 1 {
			return nil, fmt.Errorf("insurer %q: approval_rate + info_request_rate must be within [0,1]", cfg.Name)
		}
		if len(cfg.SupportedClaimTypes) == 0 {
			return nil, fmt.Errorf("insurer %q: at least one supported claim type required", cfg.Name)
		}
		byName[cfg.Name] = cfg
	}
	return &InsurerRegistry{byName: byName}, nil
}

// Lookup resolves an insurer name to its rail configuration.
func (r *InsurerRegistry) Lookup(name string) (InsurerRailConfig, error) {
	cfg, ok := r.byName[name]
	if !ok {
		return InsurerRailConfig{}, fmt.Errorf("unknown insurer %q", name)
	}
	return cfg, nil
}

// All returns every configured insurer, sorted by name.
func (r *InsurerRegistry) All() []InsurerRailConfig {
	out := make([]InsurerRailConfig, 0, len(r.byName))
	for _, cfg := range r.byName {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the insurer names whose claims ride the given rail.
func (r *InsurerRegistry) Names(rail Rail) []string {
	var out []string
	for name, cfg := range r.byName {
		if cfg.Rail == rail {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// DefaultInsurers is the built-in sandbox insurer table. Endpoints point at
// sandbox hosts; the isolation gateway rejects the production domains.
func DefaultInsurers() []InsurerRailConfig {
	both := []ClaimType{ClaimTypeClaim, ClaimTypePreauth}
	return []InsurerRailConfig{
		{
			Name:                "manulife",
			Rail:                RailEClaims,
			Endpoint:            "https://sandbox.manulife.ca/edi",
			ProcessingTimeMs:    2500,
			ApprovalRate:        0.85,
			InfoRequestRate:     0.10,
			SupportedClaimTypes: both,
		},
		{
			Name:                "sunlife",
			Rail:                RailEClaims,
			Endpoint:            "https://sandbox.sunlife.ca/eclaims",
			ProcessingTimeMs:    3000,
			ApprovalRate:        0.80,
			InfoRequestRate:     0.12,
			SupportedClaimTypes: both,
		},
		{
			Name:                "canada-life",
			Rail:                RailDentalNetwork,
			Endpoint:            "https://sandbox.canadalife.com/dental",
			ProcessingTimeMs:    4000,
			ApprovalRate:        0.78,
			InfoRequestRate:     0.15,
			SupportedClaimTypes: both,
		},
		{
			Name:                "green-shield",
			Rail:                RailDentalNetwork,
			Endpoint:            "https://sandbox.greenshield.ca/providernet",
			ProcessingTimeMs:    2000,
			ApprovalRate:        0.88,
			InfoRequestRate:     0.08,
			SupportedClaimTypes: []ClaimType{ClaimTypeClaim},
		},
		{
			Name:                "blue-cross",
			Rail:                RailPortalUpload,
			Endpoint:            "https://sandbox.medaviebc.ca/portal",
			ProcessingTimeMs:    6000,
			ApprovalRate:        0.75,
			InfoRequestRate:     0.18,
			SupportedClaimTypes: both,
		},
		{
			Name:                "desjardins",
			Rail:                RailPortalUpload,
			Endpoint:            "https://sandbox.desjardins.com/group-insurance",
			ProcessingTimeMs:    5000,
			ApprovalRate:        0.82,
			InfoRequestRate:     0.10,
			SupportedClaimTypes: []ClaimType{ClaimTypeClaim},
		},
	}
}

// ProductionDomains is the deny-list of live insurer domains the isolation
// gateway must never let sandbox traffic reach. Subdomains are covered too.
func ProductionDomains() []string {
	return []string{
		"manulife.ca",
		"sunlife.ca",
		"canadalife.com",
		"greenshield.ca",
		"medaviebc.ca",
		"desjardins.com",
		"telus.com",
		"ia.ca",
	}
}
