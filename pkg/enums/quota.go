package enums

// QuotaKey identifies a period-metered resource.
type QuotaKey string

const (
	QuotaMessagesMonthly QuotaKey = "messages.monthly"
	QuotaCampaignsDaily  QuotaKey = "campaigns.daily"
)

var validQuotaKeys = []QuotaKey{
	QuotaMessagesMonthly,
	QuotaCampaignsDaily,
}

func (q QuotaKey) String() string { return string(q) }

func (q QuotaKey) IsValid() bool { return oneOf(q, validQuotaKeys) }

// Daily reports whether the quota resets every calendar day instead of every billing period.
func (q QuotaKey) Daily() bool {
	return q == QuotaCampaignsDaily
}

// QuotaKeys lists every metered quota in display order.
func QuotaKeys() []QuotaKey {
	keys := make([]QuotaKey, len(validQuotaKeys))
	copy(keys, validQuotaKeys)
	return keys
}

func ParseQuotaKey(value string) (QuotaKey, error) {
	return parse("quota key", value, validQuotaKeys)
}

// CapacityResource identifies a count-limited resource (seats, connected channels).
type CapacityResource string

const (
	CapacityUsers    CapacityResource = "users"
	CapacityChannels CapacityResource = "channels"
)

var validCapacityResources = []CapacityResource{
	CapacityUsers,
	CapacityChannels,
}

func (c CapacityResource) String() string { return string(c) }

func (c CapacityResource) IsValid() bool { return oneOf(c, validCapacityResources) }

func ParseCapacityResource(value string) (CapacityResource, error) {
	return parse("capacity resource", value, validCapacityResources)
}
