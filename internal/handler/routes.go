package handler

import "github.com/gofiber/fiber/v2"

// Handlers groups every HTTP handler mounted by RegisterRoutes.
type Handlers struct {
	Accounts    *AccountHandler
	Rewards     *RewardHandler
	Redemptions *RedemptionHandler
	Health      *HealthHandler
}

// RegisterRoutes mounts the loyalty API on app.
func RegisterRoutes(app *fiber.App, h Handlers) {
	app.Get("/health", h.Health.Check)

	api := app.Group("/api")

	accounts := api.Group("/accounts")
	accounts.Post("/", h.Accounts.Open)
	accounts.Get("/:id", h.Accounts.Get)
	accounts.Post("/:id/credit", h.Accounts.Credit)
	accounts.Post("/:id/debit", h.Accounts.Debit)
	accounts.Post("/:id/refund", h.Accounts.Refund)
	accounts.Get("/:id/stats", h.Accounts.Stats)
	accounts.Get("/:id/transactions", h.Accounts.Transactions)
	accounts.Get("/:id/activities", h.Accounts.Activities)
	accounts.Get("/:id/rewards", h.Rewards.ListAvailable)
	accounts.Get("/:id/vouchers", h.Redemptions.ListVouchers)
	accounts.Get("/:id/redeem-requests", h.Redemptions.ListRequests)

	rewards := api.Group("/rewards")
	rewards.Post("/", h.Rewards.Create)
	rewards.Get("/:id", h.Rewards.Get)
	rewards.Post("/:id/deactivate", h.Rewards.Deactivate)

	api.Post("/redemptions", h.Redemptions.RedeemNow)

	// pending must be registered before :id
	requests := api.Group("/redeem-requests")
	requests.Post("/", h.Redemptions.CreateRequest)
	requests.Get("/pending", h.Redemptions.ListPending)
	requests.Get("/:id", h.Redemptions.GetRequest)
	requests.Post("/:id/process", h.Redemptions.Process)

	api.Post("/vouchers/:id/use", h.Redemptions.UseVoucher)
}
