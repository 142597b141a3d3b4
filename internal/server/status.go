package server

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/nupoint/nupoint/internal/version"
)

// handleStatus 暴露 /-/status 诊断信息，供 SRE 与探活使用。
func (h *handlers) handleStatus(c fiber.Ctx) error {
	packages, versions := h.idx.Counts()

	return c.JSON(fiber.Map{
		"version":        version.Full(),
		"packages":       packages,
		"versions":       versions,
		"active_streams": h.gate.Active(),
		"shutting_down":  h.gate.Closed(),
		"uptime_seconds": int64(time.Since(h.startedAt) / time.Second),
	})
}
