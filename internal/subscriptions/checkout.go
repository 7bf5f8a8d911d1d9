package subscriptions

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/angelmondragon/helpdesk-billing/pkg/db/models"
	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
	pkgstripe "github.com/angelmondragon/helpdesk-billing/pkg/stripe"
)

// CheckoutRequest is the provider-neutral checkout input.
type CheckoutRequest struct {
	TenantID   uuid.UUID
	Plan       models.Plan
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is returned to the client to complete payment.
type CheckoutSession struct {
	Provider  enums.BillingProvider `json:"provider"`
	SessionID string                `json:"sessionId"`
	URL       string                `json:"url"`
}

// CheckoutProvider opens a hosted checkout for a plan.
type CheckoutProvider interface {
	CreateSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

type stripeSessions interface {
	CreateCheckoutSession(ctx context.Context, input pkgstripe.CheckoutSessionInput) (*pkgstripe.CheckoutSession, error)
}

// StripeCheckout delegates to Stripe hosted checkout.
type StripeCheckout struct {
	client stripeSessions
}

// NewStripeCheckout wraps the shared Stripe client.
func NewStripeCheckout(client *pkgstripe.Client) (*StripeCheckout, error) {
	if client == nil {
		return nil, errors.New("stripe client required")
	}
	return &StripeCheckout{client: client}, nil
}

func (s *StripeCheckout) CreateSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	priceID := strings.TrimSpace(lo.FromPtr(req.Plan.StripePriceID))
	if priceID == "" {
		return nil, errMissingPrice
	}
	session, err := s.client.CreateCheckoutSession(ctx, pkgstripe.CheckoutSessionInput{
		TenantID:   req.TenantID.String(),
		PlanTier:   string(req.Plan.Tier),
		PriceID:    priceID,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		return nil, err
	}
	return &CheckoutSession{Provider: enums.BillingProviderStripe, SessionID: session.ID, URL: session.URL}, nil
}

// MockCheckout returns a local URL that the dashboard treats as a paid checkout.
type MockCheckout struct {
	baseURL string
}

// NewMockCheckout builds a mock provider rooted at baseURL.
func NewMockCheckout(baseURL string) *MockCheckout {
	return &MockCheckout{baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/")}
}

func (m *MockCheckout) CreateSession(_ context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	sessionID := "mock_cs_" + uuid.NewString()
	q := url.Values{}
	q.Set("session_id", sessionID)
	q.Set("tenant_id", req.TenantID.String())
	q.Set("tier", string(req.Plan.Tier))
	if req.SuccessURL != "" {
		q.Set("success_url", req.SuccessURL)
	}
	if req.CancelURL != "" {
		q.Set("cancel_url", req.CancelURL)
	}
	return &CheckoutSession{
		Provider:  enums.BillingProviderMock,
		SessionID: sessionID,
		URL:       m.baseURL + "?" + q.Encode(),
	}, nil
}
