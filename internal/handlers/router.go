package handlers

import (
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/ev-warranty/internal/middleware"
	"github.com/ukydev/ev-warranty/internal/models"
	"github.com/ukydev/ev-warranty/internal/service"
)

// Login and register attempts allowed per client per minute.
const authRateLimit = 20

// RouterConfig carries the collaborators of NewRouter.
type RouterConfig struct {
	Auth      *AuthHandler
	Claims    *ClaimHandler
	Catalog   *CatalogHandler
	Guard     *middleware.AuthMiddleware
	RateLimit *middleware.RateLimitMiddleware
	Logger    log.FieldLogger
}

// NewRouter wires every route behind request id, access logging, panic
// recovery and token authentication. Registration is reserved to EVM staff
// and catalog writes are gated by permission here as well as in the services.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	limited := cfg.RateLimit.RateLimit(authRateLimit, 60)
	mux.Handle("POST /api/auth/login", limited(http.HandlerFunc(cfg.Auth.Login)))
	mux.Handle("POST /api/auth/register", limited(cfg.Guard.RequireRole(models.RoleEVMStaff)(http.HandlerFunc(cfg.Auth.Register))))
	mux.HandleFunc("GET /api/auth/profile", cfg.Auth.GetProfile)
	mux.HandleFunc("POST /api/auth/password", cfg.Auth.ChangePassword)

	registerClaimRoutes(mux, cfg.Claims)
	registerCatalogRoutes(mux, cfg.Catalog, cfg.Guard)

	var h http.Handler = mux
	h = cfg.Guard.Authenticate(h)
	h = middleware.Recovery(cfg.Logger)(h)
	h = middleware.Logger(cfg.Logger)(h)
	h = middleware.RequestID(h)
	return h
}

func registerClaimRoutes(mux *http.ServeMux, h *ClaimHandler) {
	mux.HandleFunc("POST /api/claims", h.Create)
	mux.HandleFunc("GET /api/claims", h.List)
	mux.HandleFunc("GET /api/claims/{id}", h.Get)
	mux.HandleFunc("DELETE /api/claims/{id}", h.Delete)
	mux.HandleFunc("GET /api/claims/{id}/history", h.History)
	mux.HandleFunc("POST /api/claims/{id}/items", h.AddItem)
	mux.HandleFunc("DELETE /api/claims/{id}/items/{itemId}", h.RemoveItem)
	mux.HandleFunc("POST /api/claims/{id}/items/{itemId}/approve", h.ApproveItem)
	mux.HandleFunc("POST /api/claims/{id}/items/{itemId}/reject", h.RejectItem)

	mux.HandleFunc("POST /api/claims/{id}/submit", h.Transition(h.claims.Submit))
	mux.HandleFunc("POST /api/claims/{id}/cancel", h.Transition(h.claims.Cancel))
	mux.HandleFunc("POST /api/claims/{id}/start-review", h.Transition(h.claims.StartReview))
	mux.HandleFunc("POST /api/claims/{id}/request-info", h.Transition(h.claims.RequestInfo))
	mux.HandleFunc("POST /api/claims/{id}/complete", h.Transition(h.claims.Complete))
}

func registerCatalogRoutes(mux *http.ServeMux, h *CatalogHandler, guard *middleware.AuthMiddleware) {
	write := func(action models.Action) func(string, http.HandlerFunc) {
		gate := guard.RequirePermission(action)
		return func(pattern string, fn http.HandlerFunc) {
			mux.Handle(pattern, gate(fn))
		}
	}

	categories := write(models.ActionManageCategories)
	mux.HandleFunc("GET /api/categories", h.ListCategories)
	categories("POST /api/categories", h.CreateCategory)
	categories("PUT /api/categories/{id}", h.RenameCategory)
	for _, action := range []string{service.CategoryActionReadOnly, service.CategoryActionActivate, service.CategoryActionArchive} {
		categories("POST /api/categories/{id}/"+action, h.CategoryAction(action))
	}

	parts := write(models.ActionManageParts)
	mux.HandleFunc("GET /api/parts", h.ListParts)
	parts("POST /api/parts", h.CreatePart)
	parts("PUT /api/parts/{id}/category", h.ReassignPartCategory)
	parts("PUT /api/parts/{id}/office", h.ReassignPartOffice)
	partActions := map[string]models.PartAction{
		"reserve":   models.PartActionReserve,
		"install":   models.PartActionInstall,
		"defective": models.PartActionMarkDefective,
		"obsolete":  models.PartActionMakeObsolete,
		"available": models.PartActionMakeAvailable,
		"archive":   models.PartActionArchive,
	}
	for path, action := range partActions {
		parts("POST /api/parts/{id}/"+path, h.PartAction(action))
	}

	policies := write(models.ActionManagePolicies)
	mux.HandleFunc("GET /api/policies", h.ListPolicies)
	policies("POST /api/policies", h.CreatePolicy)
	mux.HandleFunc("GET /api/policies/{id}", h.GetPolicy)
	policies("POST /api/policies/{id}/coverage", h.AddCoverage)
	policies("PUT /api/policies/{id}/coverage/{categoryId}", h.UpdateCoverage)
	policies("DELETE /api/policies/{id}/coverage/{categoryId}", h.RemoveCoverage)
	for _, action := range []string{service.PolicyActionActivate, service.PolicyActionExpire, service.PolicyActionSupersede, service.PolicyActionArchive} {
		policies("POST /api/policies/{id}/"+action, h.PolicyAction(action))
	}
}
