package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// FeatureSet is the jsonb feature map stored on plans and overrides. A nil
// field means the key is absent; overrides rely on that to patch single keys.
type FeatureSet struct {
	Campaigns   *bool   `json:"campaigns,omitempty"`
	Automations *bool   `json:"automations,omitempty"`
	Reports     *string `json:"reports,omitempty"`
}

// IsEmpty reports whether no key is set.
func (f FeatureSet) IsEmpty() bool {
	return f.Campaigns == nil && f.Automations == nil && f.Reports == nil
}

// Value marshals the map into JSON for Postgres.
func (f FeatureSet) Value() (driver.Value, error) {
	buf, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Scan decodes JSONB into the set.
func (f *FeatureSet) Scan(value interface{}) error {
	if value == nil {
		*f = FeatureSet{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("feature set: unsupported scan type %T", value)
	}

	var result FeatureSet
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			return err
		}
	}
	*f = result
	return nil
}
