package enums

// SubscriptionStatus is the lifecycle state of a tenant subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
)

var subscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusActive,
	SubscriptionStatusTrialing,
	SubscriptionStatusCanceled,
	SubscriptionStatusPastDue,
}

// RenewableSubscriptionStatuses are the statuses whose billing periods roll over
// and whose usage is swept for quota alerts.
var RenewableSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusActive,
	SubscriptionStatusTrialing,
}

func (s SubscriptionStatus) String() string { return string(s) }

func (s SubscriptionStatus) IsValid() bool { return oneOf(s, subscriptionStatuses) }

// Renews reports whether the subscription advances to a new period when the current one ends.
func (s SubscriptionStatus) Renews() bool { return oneOf(s, RenewableSubscriptionStatuses) }

func ParseSubscriptionStatus(value string) (SubscriptionStatus, error) {
	return parse("subscription status", value, subscriptionStatuses)
}
