package enums

// BillingProvider records which system owns a subscription's payment lifecycle.
type BillingProvider string

const (
	BillingProviderMock   BillingProvider = "mock"
	BillingProviderStripe BillingProvider = "stripe"
)

var billingProviders = []BillingProvider{BillingProviderMock, BillingProviderStripe}

func (b BillingProvider) String() string { return string(b) }

func (b BillingProvider) IsValid() bool { return oneOf(b, billingProviders) }

func ParseBillingProvider(value string) (BillingProvider, error) {
	return parse("billing provider", value, billingProviders)
}
