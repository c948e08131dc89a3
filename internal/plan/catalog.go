// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

// Package plan holds the subscription catalog and enforces its resource caps.
package plan

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// Unlimited is the cap value that disables a limit.
const Unlimited = -1

// Resource kinds with caps.
const (
	ResourceSites       = "sites"
	ResourceTeamMembers = "team_members"
	ResourceMediaMB     = "media_mb"
)

// SupportedVersions constrains the catalog format versions this build reads.
const SupportedVersions = "^1.0.0"

//go:embed plans.yaml
var defaultCatalog []byte

// Catalog maps plan tiers to per-resource caps and billing prices to tiers.
type Catalog struct {
	Version string            `yaml:"version" json:"version" jsonschema:"required,description=Catalog format version (semver)"`
	Default string            `yaml:"default" json:"default" jsonschema:"required,description=Plan assigned to accounts without a known plan"`
	Plans   map[string]Tier   `yaml:"plans" json:"plans" jsonschema:"required"`
	Prices  map[string]string `yaml:"prices,omitempty" json:"prices,omitempty" jsonschema:"description=Billing price ID to plan tier"`
}

// Tier is one subscription level.
type Tier struct {
	Name   string         `yaml:"name" json:"name" jsonschema:"required"`
	Limits map[string]int `yaml:"limits" json:"limits" jsonschema:"required"`
}

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalogFile reads and validates a catalog from path.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("failed to read plan catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog validates data against the catalog schema, decodes it and
// checks the cross-field constraints the schema cannot express.
func ParseCatalog(data []byte) (*Catalog, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks catalog constraints.
func (c *Catalog) Validate() error {
	v, err := semver.NewVersion(c.Version)
	if err != nil {
		return fmt.Errorf("version %q is not a semantic version: %w", c.Version, err)
	}
	constraint, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return fmt.Errorf("invalid version constraint: %w", err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("catalog version %s is not supported (want %s)", v, SupportedVersions)
	}

	if _, ok := c.Plans[c.Default]; !ok {
		return fmt.Errorf("default plan %q is not defined", c.Default)
	}
	for name, tier := range c.Plans {
		for resource, limit := range tier.Limits {
			if limit < Unlimited {
				return fmt.Errorf("plan %q: limit for %q must be >= %d, got %d", name, resource, Unlimited, limit)
			}
		}
	}
	for price, tier := range c.Prices {
		if _, ok := c.Plans[tier]; !ok {
			return fmt.Errorf("price %q maps to unknown plan %q", price, tier)
		}
	}
	return nil
}

// Resolve returns name if it is a known tier, otherwise the default tier.
func (c *Catalog) Resolve(name string) string {
	if _, ok := c.Plans[name]; ok {
		return name
	}
	return c.Default
}

// Limit returns the cap of resource under plan. Unknown plans use the
// default tier; unknown resources have a cap of zero.
func (c *Catalog) Limit(plan, resource string) int {
	return c.Plans[c.Resolve(plan)].Limits[resource]
}

// PlanForPrice maps a billing price ID to a tier. Unknown prices map to the
// default tier and ok is false.
func (c *Catalog) PlanForPrice(priceID string) (plan string, ok bool) {
	if p, found := c.Prices[priceID]; found {
		return p, true
	}
	return c.Default, false
}

// PriceForPlan returns the first price ID, in sorted order, for plan.
func (c *Catalog) PriceForPlan(plan string) (string, bool) {
	var prices []string
	for price, tier := range c.Prices {
		if tier == plan {
			prices = append(prices, price)
		}
	}
	if len(prices) == 0 {
		return "", false
	}
	sort.Strings(prices)
	return prices[0], true
}

// IsPrice reports whether priceID is in the catalog.
func (c *Catalog) IsPrice(priceID string) bool {
	_, ok := c.Prices[priceID]
	return ok
}
