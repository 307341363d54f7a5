// Package checkout turns a plan selection into a hosted checkout with one of
// the payment providers and exposes a verify proxy for the payment result
// pages.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fxforge/platform/internal/billing"
	"github.com/fxforge/platform/internal/plan"
)

var (
	ErrUnknownProvider = errors.New("unknown payment provider")
	ErrEmailRequired   = errors.New("customer email is required")
	ErrInvalidAmount   = errors.New("amount must be a positive number")
)

// Service builds provider checkouts from plans. The app base URL anchors the
// success and failure redirects.
type Service struct {
	plans     plan.Store
	providers map[string]billing.Provider
	appURL    string
	log       *slog.Logger
	now       func() time.Time
}

// NewService registers the given providers under their Name().
func NewService(plans plan.Store, appURL string, log *slog.Logger, providers ...billing.Provider) *Service {
	if plans == nil {
		panic("checkout: plan.Store is required")
	}
	registry := make(map[string]billing.Provider, len(providers))
	for _, p := range providers {
		registry[p.Name()] = p
	}
	return &Service{
		plans:     plans,
		providers: registry,
		appURL:    strings.TrimRight(appURL, "/"),
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Params is a checkout request. PlanID drives the price and provider product;
// the legacy path takes a raw Amount in major currency units instead.
type Params struct {
	Provider           string
	UserID             uuid.UUID
	Email              string
	PlanID             uuid.UUID
	Amount             float64
	Currency           string
	ProductID          string // legacy explicit provider product id
	DiscountID         string
	AllowDiscountCodes bool
	Metadata           map[string]string
}

// Create opens a checkout and returns the provider session, URL included.
func (s *Service) Create(ctx context.Context, params Params) (*billing.CheckoutSession, error) {
	provider, ok := s.providers[params.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, params.Provider)
	}
	if params.Email == "" {
		return nil, ErrEmailRequired
	}

	meta := make(map[string]string, len(params.Metadata)+6)
	for k, v := range params.Metadata {
		meta[k] = v
	}
	meta["user_id"] = params.UserID.String()

	req := billing.CheckoutParams{
		Email:              params.Email,
		FailureURL:         s.appURL + "/payment/failure",
		DiscountID:         params.DiscountID,
		AllowDiscountCodes: params.AllowDiscountCodes,
		Metadata:           meta,
	}

	if params.PlanID != uuid.Nil {
		p, err := s.plans.Get(ctx, params.PlanID)
		if err != nil {
			return nil, err
		}
		if !p.Active {
			return nil, plan.ErrPlanInactive
		}

		productID, err := providerProductID(provider.Name(), p)
		if err != nil {
			return nil, err
		}

		req.ProductID = productID
		req.Currency = p.Currency
		req.AmountCents = int64(p.PriceCents)
		if req.DiscountID == "" {
			req.DiscountID = p.PolarDiscountID
		}

		meta["ea_id"] = p.EAID.String()
		meta["ea_plan_id"] = p.ID.String()
		meta["tier"] = string(p.Tier)
		meta["term"] = string(p.Term)
		meta["max_accounts"] = strconv.Itoa(p.MaxAccounts)
	} else {
		if params.Amount <= 0 {
			return nil, ErrInvalidAmount
		}
		if provider.Name() == "polar" && params.ProductID == "" {
			return nil, fmt.Errorf("%w: ea_plan_id is required for subscriptions", plan.ErrMappingMissing)
		}
		req.ProductID = params.ProductID
		req.Currency = strings.ToUpper(firstNonEmpty(params.Currency, "USD"))
		req.AmountCents = int64(math.Round(params.Amount * 100))
		meta["legacy_amount_checkout"] = "true"
	}

	req.SuccessURL, req.Reference = s.successURL(provider.Name())

	sess, err := provider.CreateCheckout(ctx, req)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Verify proxies the payment result page's status check to the provider.
func (s *Service) Verify(ctx context.Context, providerName, id string) (*billing.CheckoutStatus, error) {
	provider, ok := s.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
	}
	return provider.VerifyCheckout(ctx, id)
}

// successURL builds the redirect target for a provider. Polar and Stripe
// substitute their checkout id placeholder server-side; Paystack needs a
// caller-generated reference baked into the callback.
func (s *Service) successURL(providerName string) (url, reference string) {
	switch providerName {
	case "polar":
		return s.appURL + "/payment/success?checkout_id={CHECKOUT_ID}&psp=polar", ""
	case "stripe":
		return s.appURL + "/payment/success?checkout_id={CHECKOUT_SESSION_ID}&psp=stripe", ""
	case "paystack":
		reference = fmt.Sprintf("pay_%d_%s", s.now().UnixMilli(), uuid.NewString()[:8])
		return s.appURL + "/payment/success?reference=" + reference + "&psp=paystack", reference
	}
	return s.appURL + "/payment/success", ""
}

func providerProductID(providerName string, p *plan.Plan) (string, error) {
	switch providerName {
	case "polar":
		if p.PolarProductID == "" {
			return "", fmt.Errorf("%w: polar product for plan %s", plan.ErrMappingMissing, p.ID)
		}
		return p.PolarProductID, nil
	case "stripe":
		if p.StripePriceID == "" {
			return "", fmt.Errorf("%w: stripe price for plan %s", plan.ErrMappingMissing, p.ID)
		}
		return p.StripePriceID, nil
	case "paystack":
		// Paystack charges an amount, not a catalog product.
		return "", nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
