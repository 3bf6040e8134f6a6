package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/harborview/support-service/internal/config"
	"github.com/harborview/support-service/internal/domain"
)

// LookupsHandler serves the static configuration lookups the portal's forms
// and filters are built from.
type LookupsHandler struct {
	categories []config.Lookup
}

// NewLookupsHandler returns a new handler instance.
func NewLookupsHandler(support config.SupportConfig) *LookupsHandler {
	return &LookupsHandler{categories: support.Categories}
}

// Categories GET /api/v1/lookups/categories.
func (h *LookupsHandler) Categories(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.categories})
}

// Priorities GET /api/v1/lookups/priorities.
func (h *LookupsHandler) Priorities(c *fiber.Ctx) error {
	items := make([]config.Lookup, 0, len(domain.Priorities()))
	for _, priority := range domain.Priorities() {
		items = append(items, config.Lookup{Value: string(priority), Label: titleCase(string(priority))})
	}
	return c.JSON(fiber.Map{"data": items})
}

// Teams GET /api/v1/lookups/teams.
func (h *LookupsHandler) Teams(c *fiber.Ctx) error {
	items := make([]config.Lookup, 0, len(domain.Teams()))
	for _, team := range domain.Teams() {
		items = append(items, config.Lookup{Value: string(team), Label: titleCase(string(team))})
	}
	return c.JSON(fiber.Map{"data": items})
}

func titleCase(upper string) string {
	if upper == "" {
		return upper
	}
	lower := strings.ToLower(strings.ReplaceAll(upper, "_", " "))
	return strings.ToUpper(lower[:1]) + lower[1:]
}
