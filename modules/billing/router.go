package billing

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Middleware is a standard net/http middleware.
type Middleware = func(http.Handler) http.Handler

// RouterOptions wires the handler set and the cross-cutting middleware into
// the billing routes. ResolveOwner is required on every authenticated
// route; RateLimit guards only the order endpoints, where each request can
// reach the payment gateway.
type RouterOptions struct {
	Handlers     *Handlers
	ResolveOwner Middleware
	RateLimit    Middleware
}

// Router builds the billing route tree.
//
//	r := chi.NewRouter()
//	r.Mount("/", billing.Router(billing.RouterOptions{...}))
func Router(opts RouterOptions) chi.Router {
	noop := func(next http.Handler) http.Handler { return next }
	if opts.ResolveOwner == nil {
		opts.ResolveOwner = noop
	}
	if opts.RateLimit == nil {
		opts.RateLimit = noop
	}
	h := opts.Handlers

	r := chi.NewRouter()

	r.Get("/plans", h.listPlans)

	r.Route("/payments", func(payments chi.Router) {
		payments.Use(opts.ResolveOwner)

		payments.Group(func(limited chi.Router) {
			limited.Use(opts.RateLimit)
			limited.Post("/create-order", h.createOrder)
			limited.Post("/verify-payment", h.verifyPayment)
		})

		payments.Get("/subscription-status", h.subscriptionStatus)
		payments.Delete("/basic-plan/{userID}", h.cancelBasicPlan)
	})

	r.Route("/referrals", func(referrals chi.Router) {
		referrals.Use(opts.ResolveOwner)
		referrals.Post("/invite", h.invite)
		referrals.Get("/", h.listReferrals)
		referrals.Get("/stats", h.referralStats)
	})

	r.Route("/finance", func(fin chi.Router) {
		fin.Use(opts.ResolveOwner)
		fin.Get("/summary", h.financeSummary)
	})

	return r
}
