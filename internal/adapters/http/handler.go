package http

import (
	"errors"
	"log/slog"
	"sort"

	"github.com/gofiber/fiber/v2"
	"github.com/melih/rbuild/internal/core/domain"
	"github.com/melih/rbuild/internal/core/ports"
)

// GroupInfo describes a group served by the API.
type GroupInfo struct {
	Name string `json:"name"`
	Ref  string `json:"ref"`
}

// GroupHandler exposes group passes over HTTP. Groups are addressed by
// project name; only the definitions it was created with are reachable.
type GroupHandler struct {
	service ports.RebuildService
	groups  map[string]string
}

// NewGroupHandler creates a handler for groups, a map of project name to
// definition path.
func NewGroupHandler(service ports.RebuildService, groups map[string]string) *GroupHandler {
	return &GroupHandler{service: service, groups: groups}
}

// Register mounts the group routes on router.
func (h *GroupHandler) Register(router fiber.Router) {
	router.Get("/", h.ListGroups)
	router.Get("/:name", h.GetStatus)
	router.Post("/:name/rebuild", h.Rebuild)
	router.Delete("/:name/images", h.RemoveImages)
}

func (h *GroupHandler) ListGroups(c *fiber.Ctx) error {
	groups := make([]GroupInfo, 0, len(h.groups))
	for name, ref := range h.groups {
		groups = append(groups, GroupInfo{Name: name, Ref: ref})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return c.JSON(groups)
}

func (h *GroupHandler) GetStatus(c *fiber.Ctx) error {
	ref, err := h.lookup(c)
	if err != nil {
		return err
	}

	report, err := h.service.Status(c.Context(), ref)
	if err != nil {
		return err
	}
	return c.JSON(report)
}

func (h *GroupHandler) Rebuild(c *fiber.Ctx) error {
	ref, err := h.lookup(c)
	if err != nil {
		return err
	}

	// This blocks for the whole pass, build and bring-up included.
	result, err := h.service.Run(c.Context(), ref, c.QueryBool("force"))
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (h *GroupHandler) RemoveImages(c *fiber.Ctx) error {
	ref, err := h.lookup(c)
	if err != nil {
		return err
	}

	removed, err := h.service.Remove(c.Context(), ref)
	if err != nil {
		return err
	}
	if removed == nil {
		removed = []string{}
	}
	return c.JSON(fiber.Map{
		"removed": removed,
	})
}

func (h *GroupHandler) lookup(c *fiber.Ctx) (string, error) {
	ref, ok := h.groups[c.Params("name")]
	if !ok {
		return "", domain.ErrUnknownGroup
	}
	return ref, nil
}

// ErrorHandler renders errors as JSON. Unknown groups are 404, everything
// else is 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError

	var fe *fiber.Error
	switch {
	case errors.Is(err, domain.ErrUnknownGroup):
		status = fiber.StatusNotFound
	case errors.As(err, &fe):
		status = fe.Code
	default:
		slog.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}

	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}
