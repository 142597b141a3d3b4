package server

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
)

const (
	defaultSearchTake = 20
	maxSearchTake     = 1000
)

// handleServiceIndex 输出根发现文档；@id 前缀来自本次请求的解析结果。
func (h *handlers) handleServiceIndex(c fiber.Ctx) error {
	root := resolvedURL(c, h.idx).Root()
	return c.JSON(h.builder.ServiceIndex(root))
}

// handleSearch 执行查询与分页。skip/take 非法时取安全默认值。
func (h *handlers) handleSearch(c fiber.Ctx) error {
	root := resolvedURL(c, h.idx).Root()

	query := c.Query("q")
	skip := parseQueryInt(c.Query("skip"), 0)
	take := parseQueryInt(c.Query("take"), defaultSearchTake)
	if take > maxSearchTake {
		take = maxSearchTake
	}

	return c.JSON(h.builder.Search(root, query, skip, take))
}

// handleRegistration 输出单页注册文档。
func (h *handlers) handleRegistration(c fiber.Ctx) error {
	root := resolvedURL(c, h.idx).Root()

	id := strings.TrimSpace(c.Params("id"))
	doc, ok := h.builder.Registration(root, id)
	if !ok {
		return renderPackageNotFound(c)
	}
	return c.JSON(doc)
}

// handleVersions 输出 PackageBaseAddress 的版本枚举。
func (h *handlers) handleVersions(c fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	doc, ok := h.builder.Versions(id)
	if !ok {
		return renderPackageNotFound(c)
	}
	return c.JSON(doc)
}

func parseQueryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

// renderPackageNotFound 输出协议约定的 404 正文。
func renderPackageNotFound(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "Package not found",
	})
}
