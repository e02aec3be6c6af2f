package handler

import (
	"net/http"

	"bakery/internal/api/v1/dto"
	"bakery/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// CatalogHandler serves the public pricing data.
type CatalogHandler struct {
	catalog service.CatalogService
	logger  zerolog.Logger
}

func NewCatalogHandler(catalog service.CatalogService, logger zerolog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger.With().Str("handler", "CatalogHandler").Logger()}
}

func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/subscription-plans", h.listPlans)
	r.Get("/credit-packages", h.listPackages)
	r.Get("/credit-usage-settings", h.listUsageSettings)
}

// listPlans godoc
// @Summary List subscription plans
// @Tags catalog
// @Produce json
// @Success 200 {array} dto.PlanDTO
// @Router /subscription-plans [get]
func (h *CatalogHandler) listPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.catalog.ListPlans(r.Context())
	if err != nil {
		internalError(w, r, h.logger, err, "Failed to list plans")
		return
	}
	out := make([]dto.PlanDTO, 0, len(plans))
	for _, p := range plans {
		out = append(out, dto.NewPlanDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// listPackages godoc
// @Summary List credit packs
// @Tags catalog
// @Produce json
// @Success 200 {array} dto.PackageDTO
// @Router /credit-packages [get]
func (h *CatalogHandler) listPackages(w http.ResponseWriter, r *http.Request) {
	packs, err := h.catalog.ListPackages(r.Context())
	if err != nil {
		internalError(w, r, h.logger, err, "Failed to list credit packages")
		return
	}
	out := make([]dto.PackageDTO, 0, len(packs))
	for _, p := range packs {
		out = append(out, dto.NewPackageDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// listUsageSettings godoc
// @Summary List per-model credit costs
// @Tags catalog
// @Produce json
// @Success 200 {array} dto.UsageSettingDTO
// @Router /credit-usage-settings [get]
func (h *CatalogHandler) listUsageSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.catalog.ListUsageSettings(r.Context())
	if err != nil {
		internalError(w, r, h.logger, err, "Failed to list usage settings")
		return
	}
	out := make([]dto.UsageSettingDTO, 0, len(settings))
	for _, s := range settings {
		out = append(out, dto.UsageSettingDTO{
			ModelID:    s.ModelID,
			Category:   string(s.Category),
			CreditCost: s.CreditCost,
			Unit:       s.Unit,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
