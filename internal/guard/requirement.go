// Package guard evaluates the entitlement requirements that protect helpdesk
// actions: feature flags, metered quotas and count-based capacity.
package guard

import (
	"fmt"

	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
)

// Kind tags a Requirement.
type Kind string

const (
	KindFeature  Kind = "feature"
	KindQuota    Kind = "quota"
	KindCapacity Kind = "capacity"
)

// Requirement is one condition an action needs. Build it with Feature, Quota
// or Capacity; only the fields of its Kind are set.
type Requirement struct {
	Kind     Kind                   `json:"kind"`
	Feature  enums.FeatureKey       `json:"feature,omitempty"`
	QuotaKey enums.QuotaKey         `json:"quotaKey,omitempty"`
	Amount   int64                  `json:"amount,omitempty"`
	Resource enums.CapacityResource `json:"resource,omitempty"`
}

// Feature requires a feature flag.
func Feature(key enums.FeatureKey) Requirement {
	return Requirement{Kind: KindFeature, Feature: key}
}

// Quota records amount against a metered quota.
func Quota(key enums.QuotaKey, amount int64) Requirement {
	return Requirement{Kind: KindQuota, QuotaKey: key, Amount: amount}
}

// Capacity requires room for one more resource.
func Capacity(resource enums.CapacityResource) Requirement {
	return Requirement{Kind: KindCapacity, Resource: resource}
}

func (r Requirement) String() string {
	switch r.Kind {
	case KindFeature:
		return fmt.Sprintf("feature(%s)", r.Feature)
	case KindQuota:
		return fmt.Sprintf("quota(%s,%d)", r.QuotaKey, r.Amount)
	case KindCapacity:
		return fmt.Sprintf("capacity(%s)", r.Resource)
	}
	return "unknown"
}
