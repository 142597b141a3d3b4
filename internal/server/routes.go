package server

import (
	"github.com/gofiber/fiber/v3"

	"github.com/nupoint/nupoint/internal/auth"
)

// registerRoutes 挂载全部协议端点。/v3 为 NuGet V3 读协议，
// /api/v2 为发布面（与官方客户端的 push 约定一致），/-/ 为诊断面。
func registerRoutes(app *fiber.App, h *handlers) {
	readGate := h.requireScope(auth.ScopeRead)
	publishGate := h.requireScope(auth.ScopePublish)

	app.Get("/v3/index.json", h.handleServiceIndex, readGate)
	app.Get("/v3/search", h.handleSearch, readGate)
	app.Get("/v3/registration/:id/index.json", h.handleRegistration, readGate)
	app.Get("/v3/package/:id/index.json", h.handleVersions, readGate)
	app.Get("/v3/package/:id/:version/icon", h.handleIcon, readGate)
	app.Get("/v3/package/:id/:version/:filename", h.handleDownload, readGate)

	app.Put("/api/v2/package", h.handlePublish, publishGate)
	app.Delete("/api/v2/package/:id/:version", h.handleUnlist, publishGate)
	app.Post("/api/v2/package/:id/:version", h.handleRelist, publishGate)
	app.Post("/api/v2/rescan", h.handleRescan, publishGate)

	app.Get("/-/status", h.handleStatus)
}

// requireScope 构造准入中间件；密钥经 X-NuGet-ApiKey 头出示。
func (h *handlers) requireScope(scope auth.Scope) fiber.Handler {
	return func(c fiber.Ctx) error {
		if h.guard.Admit(scope, c.Get(apiKeyHeader)) {
			return c.Next()
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "api key required",
		})
	}
}
