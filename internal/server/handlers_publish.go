package server

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/nupoint/nupoint/internal/feed"
	"github.com/nupoint/nupoint/internal/logging"
	"github.com/nupoint/nupoint/internal/publish"
)

// handlePublish 接收 nupkg 上传。解包/校验/落盘由 Publisher 完成，
// 这里只做准入与错误翻译。
func (h *handlers) handlePublish(c fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "empty package upload",
		})
	}

	entry, err := h.publisher.Publish(c.Context(), body)
	if err != nil {
		switch {
		case errors.Is(err, publish.ErrDuplicate):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "package version already exists",
			})
		case errors.Is(err, publish.ErrInvalidPackage):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid package",
			})
		default:
			return h.renderInternal(c, "publish", "", err)
		}
	}

	root := resolvedURL(c, h.idx).Root()
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":             entry.Metadata.ID,
		"version":        entry.Metadata.Version,
		"packageContent": feed.ContentURL(root, entry.Metadata.ID, entry.Metadata.Version),
	})
}

// handleUnlist 将版本标记为不可见（NuGet 软删除约定），文件保持可下载。
func (h *handlers) handleUnlist(c fiber.Ctx) error {
	return h.toggleListed(c, false, "unlist")
}

// handleRelist 恢复版本可见性。
func (h *handlers) handleRelist(c fiber.Ctx) error {
	return h.toggleListed(c, true, "relist")
}

func (h *handlers) toggleListed(c fiber.Ctx, listed bool, action string) error {
	id := strings.TrimSpace(c.Params("id"))
	version := strings.TrimSpace(c.Params("version"))

	if !h.idx.SetListed(id, version, listed) {
		return renderPackageNotFound(c)
	}

	h.logger.WithFields(logging.PackageFields(action, id, version)).Info("listed flag updated")
	return c.JSON(fiber.Map{
		"id":      id,
		"version": version,
		"listed":  listed,
	})
}

// handleRescan 全量重扫包根目录，用于带外投递的文件。
func (h *handlers) handleRescan(c fiber.Ctx) error {
	indexed, err := h.idx.Rebuild(h.files.Root(), h.logger)
	if err != nil {
		return h.renderInternal(c, "rescan", "", err)
	}

	packages, versions := h.idx.Counts()
	h.logger.WithFields(logging.BaseFields("rescan", h.files.Root())).
		WithField("indexed", indexed).Info("index rebuilt")

	return c.JSON(fiber.Map{
		"indexed":  indexed,
		"packages": packages,
		"versions": versions,
	})
}
