package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/propertyledger-backend/api/controllers"
	"github.com/angelmondragon/propertyledger-backend/api/middleware"
	"github.com/angelmondragon/propertyledger-backend/internal/balance"
	"github.com/angelmondragon/propertyledger-backend/internal/contracts"
	"github.com/angelmondragon/propertyledger-backend/internal/invoices"
	"github.com/angelmondragon/propertyledger-backend/internal/payments"
	"github.com/angelmondragon/propertyledger-backend/internal/usageimport"
	"github.com/angelmondragon/propertyledger-backend/pkg/config"
	"github.com/angelmondragon/propertyledger-backend/pkg/db"
	"github.com/angelmondragon/propertyledger-backend/pkg/logger"
	"github.com/angelmondragon/propertyledger-backend/pkg/metrics"
	"github.com/angelmondragon/propertyledger-backend/pkg/redis"
)

// RouterParams carries everything the HTTP surface needs. Redis and
// Idempotency are optional; without a store, Idempotency-Key is ignored.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          db.Pinger
	Redis       redis.Pinger
	Idempotency redis.IdempotencyStore
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics

	Contracts contracts.Service
	Resolver  balance.Resolver
	Invoices  invoices.Service
	Payments  payments.Service
	Importer  controllers.UsageImporter
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, p.HTTPMetrics),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})
	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	importOpts := usageimport.Options{
		Concurrency: cfg.Import.Concurrency,
		MaxRows:     cfg.Import.MaxRows,
	}

	r.Route("/api/v1", func(r chi.Router) {
		if p.Idempotency != nil {
			r.Use(middleware.Idempotency(p.Idempotency, logg))
		}

		r.Route("/contracts", func(r chi.Router) {
			r.Post("/", controllers.ContractRegister(p.Contracts, logg))
			r.Get("/{contractId}", controllers.ContractGet(p.Contracts, logg))
			r.Get("/{contractId}/outstanding-balance", controllers.ContractOutstandingBalance(p.Contracts, p.Resolver, logg))
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Post("/", controllers.InvoiceCreate(p.Invoices, logg))
			r.Get("/", controllers.InvoiceList(p.Invoices, logg))
			r.Post("/import-csv", controllers.InvoiceImportCSV(p.Importer, importOpts, logg))

			r.Route("/{invoiceId}", func(r chi.Router) {
				r.Get("/", controllers.InvoiceGet(p.Invoices, logg))
				r.Put("/", controllers.InvoiceUpdateBill(p.Invoices, logg))
				r.Post("/status", controllers.InvoiceSetStatus(p.Invoices, logg))
				r.Post("/recompute", controllers.InvoiceRecompute(p.Invoices, logg))
				r.Post("/penalty", controllers.InvoiceApplyPenalty(p.Invoices, logg))
				r.Post("/penalty/waive", controllers.InvoiceWaivePenalty(p.Invoices, logg))
				r.Post("/cancel", controllers.InvoiceCancel(p.Invoices, logg))
				r.Get("/payments", controllers.InvoicePayments(p.Payments, logg))
			})
		})

		r.Route("/payments/records", func(r chi.Router) {
			r.Post("/", controllers.PaymentCreate(p.Payments, logg))
			r.Put("/{paymentId}", controllers.PaymentUpdateStatus(p.Payments, logg))
			r.Delete("/{paymentId}", controllers.PaymentDelete(p.Payments, logg))
			r.Post("/{paymentId}/proofs", controllers.PaymentProofCreate(p.Payments, logg))
			r.Get("/{paymentId}/proofs", controllers.PaymentProofList(p.Payments, logg))
		})
	})

	return r
}
