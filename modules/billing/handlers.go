package billing

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dentaflow/dentaflow/core"
	"github.com/dentaflow/dentaflow/pkg/entitlement"
	"github.com/dentaflow/dentaflow/pkg/finance"
	"github.com/dentaflow/dentaflow/pkg/payment"
	"github.com/dentaflow/dentaflow/pkg/referral"
	"github.com/dentaflow/dentaflow/pkg/subscription"
)

// Handlers carries the services the billing routes call into.
type Handlers struct {
	subs      *subscription.Service
	payments  *payment.Orchestrator
	referrals *referral.Service
	reports   *finance.Reporter
	log       *slog.Logger
}

// NewHandlers creates the billing handler set.
func NewHandlers(
	subs *subscription.Service,
	payments *payment.Orchestrator,
	referrals *referral.Service,
	reports *finance.Reporter,
	log *slog.Logger,
) *Handlers {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Handlers{
		subs:      subs,
		payments:  payments,
		referrals: referrals,
		reports:   reports,
		log:       log,
	}
}

// planResponse is the public view of a plan.
type planResponse struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Description  string                `json:"description"`
	Amount       int64                 `json:"amount"`
	Currency     string                `json:"currency"`
	DurationDays int                   `json:"durationDays"`
	Features     subscription.Features `json:"features"`
}

// listPlans answers GET /plans.
func (h *Handlers) listPlans(w http.ResponseWriter, r *http.Request) {
	plans := h.subs.Catalog().List()
	out := make([]planResponse, 0, len(plans))
	for _, plan := range plans {
		out = append(out, planResponse{
			ID:           plan.ID,
			Name:         plan.Name,
			Description:  plan.Description,
			Amount:       plan.Price.Amount,
			Currency:     plan.Price.Currency,
			DurationDays: plan.DurationDays,
			Features:     plan.Features,
		})
	}
	core.JSON(w, http.StatusOK, out)
}

type createOrderRequest struct {
	PlanType string `json:"planType"`
}

// createOrder answers POST /payments/create-order.
func (h *Handlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := entitlement.OwnerIDFromContext(r.Context())
	if !ok {
		core.Error(w, h.log, core.ErrUnauthorized)
		return
	}

	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		core.Error(w, h.log, err)
		return
	}
	if strings.TrimSpace(req.PlanType) == "" {
		core.Error(w, h.log, core.ValidationError{"planType": {"is required"}})
		return
	}

	order, err := h.payments.OpenOrder(r.Context(), ownerID, req.PlanType)
	if err != nil {
		core.Error(w, h.log, mapError(err))
		return
	}
	core.JSON(w, http.StatusCreated, order)
}

type verifyPaymentRequest struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

func (r verifyPaymentRequest) validate() error {
	errs := core.ValidationError{}
	if r.OrderID == "" {
		errs.Add("orderId", "is required")
	}
	if r.PaymentID == "" {
		errs.Add("paymentId", "is required")
	}
	if r.Signature == "" {
		errs.Add("signature", "is required")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// verifyPayment answers POST /payments/verify-payment.
func (h *Handlers) verifyPayment(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := entitlement.OwnerIDFromContext(r.Context())
	if !ok {
		core.Error(w, h.log, core.ErrUnauthorized)
		return
	}

	var req verifyPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		core.Error(w, h.log, err)
		return
	}
	if err := req.validate(); err != nil {
		core.Error(w, h.log, err)
		return
	}

	sub, err := h.payments.Verify(r.Context(), ownerID, payment.VerifyRequest{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	if err != nil {
		core.Error(w, h.log, mapError(err))
		return
	}
	core.JSON(w, http.StatusOK, sub)
}

// statusResponse is the subscription-status payload clients poll.
type statusResponse struct {
	HasActiveSubscription bool                   `json:"hasActiveSubscription"`
	PlanType              string                 `json:"planType,omitempty"`
	DaysRemaining         int                    `json:"daysRemaining,omitempty"`
	EndDate               *time.Time             `json:"endDate,omitempty"`
	Features              *subscription.Features `json:"features,omitempty"`
}

// subscriptionStatus answers GET /payments/subscription-status. An owner
// without a subscription gets a 200 with hasActiveSubscription false, not
// an error: the client uses this to decide whether to show the paywall.
func (h *Handlers) subscriptionStatus(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := entitlement.OwnerIDFromContext(r.Context())
	if !ok {
		core.Error(w, h.log, core.ErrUnauthorized)
		return
	}

	current, err := h.subs.GetCurrent(r.Context(), ownerID)
	if err != nil {
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			core.JSON(w, http.StatusOK, statusResponse{HasActiveSubscription: false})
			return
		}
		core.Error(w, h.log, err)
		return
	}

	core.JSON(w, http.StatusOK, statusResponse{
		HasActiveSubscription: true,
		PlanType:              current.PlanID,
		DaysRemaining:         current.DaysRemaining(),
		EndDate:               &current.EndDate,
		Features:              &current.Features,
	})
}

// cancelBasicPlan answers DELETE /payments/basic-plan/{userID}, the
// administrative cleanup of trial-style basic subscriptions.
func (h *Handlers) cancelBasicPlan(w http.ResponseWriter, r *http.Request) {
	principal, ok := entitlement.PrincipalFromContext(r.Context())
	if !ok {
		core.Error(w, h.log, core.ErrUnauthorized)
		return
	}
	if principal.Role != entitlement.RoleAdmin {
		core.Error(w, h.log, core.ErrForbidden)
		return
	}

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		core.Error(w, h.log, core.ValidationError{"userID": {"must be a valid UUID"}})
		return
	}

	cancelled, err := h.subs.CancelPlan(r.Context(), userID, subscription.PlanBasic, "cancelled by administrator")
	if err != nil {
		core.Error(w, h.log, mapError(err))
		return
	}
	core.JSON(w, http.StatusOK, cancelled)
}

type inviteRequest struct {
	Email string `json:"email"`
}

// invite answers POST /referrals/invite.
func (h *Handlers) invite(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := entitlement.OwnerIDFromContext(r.Context())
	if !ok {
		core.Error(w, h.log, core.ErrUnauthorized)
		return
	}

	var req inviteRequest
	if err := decodeJSON(r, &req); err != nil {
		core.Error(w, h.log, err)
		return
	}

	ref, err := h.referrals.Invite(r.Context(), ownerID, req.Email)
	if err != nil {
		core.Error(w, h.log, mapError(err))
		return
	}
	core.JSON(w, http.StatusCreated, ref)
}

// listReferrals answers GET /referrals.
func (h *Handlers) listReferrals(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := entitlement.OwnerIDFromContext(r.Context())
	if !ok {
		core.Error(w, h.log, core.ErrUnauthorized)
		return
	}

	refs, err := h.referrals.List(r.Context(), ownerID)
	if err != nil {
		core.Error(w, h.log, mapError(err))
		return
	}
	if refs == nil {
		refs = []referral.Referral{}
	}
	core.JSON(w, http.StatusOK, refs)
}

// referralStats answers GET /referrals/stats.
func (h *Handlers) referralStats(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := entitlement.OwnerIDFromContext(r.Context())
	if !ok {
		core.Error(w, h.log, core.ErrUnauthorized)
		return
	}

	stats, err := h.referrals.Stats(r.Context(), ownerID)
	if err != nil {
		core.Error(w, h.log, mapError(err))
		return
	}
	core.JSON(w, http.StatusOK, stats)
}

// financeSummary answers GET /finance/summary, admin only.
func (h *Handlers) financeSummary(w http.ResponseWriter, r *http.Request) {
	principal, ok := entitlement.PrincipalFromContext(r.Context())
	if !ok {
		core.Error(w, h.log, core.ErrUnauthorized)
		return
	}
	if principal.Role != entitlement.RoleAdmin {
		core.Error(w, h.log, core.ErrForbidden)
		return
	}

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			core.Error(w, h.log, core.ValidationError{"since": {"must be RFC 3339"}})
			return
		}
		since = parsed
	}

	summary, err := h.reports.Summary(r.Context(), since)
	if err != nil {
		core.Error(w, h.log, err)
		return
	}
	core.JSON(w, http.StatusOK, summary)
}

// decodeJSON reads a JSON body, rejecting unknown fields and trailing
// garbage.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return core.ErrBadRequest
	}
	if dec.More() {
		return core.ErrBadRequest
	}
	return nil
}
