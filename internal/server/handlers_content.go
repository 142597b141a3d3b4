package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/nupoint/nupoint/internal/logging"
	"github.com/nupoint/nupoint/internal/store"
	"github.com/nupoint/nupoint/internal/streamgate"
)

// handleDownload 流式返回 nupkg。请求路径里的 id/version 是协议面的小写
// 形式，这里通过索引解析回真实的磁盘位置。整个字节流处于共享闸门的
// 保护之下，关停会等它完成。
func (h *handlers) handleDownload(c fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	version := strings.TrimSpace(c.Params("version"))
	filename := strings.TrimSpace(c.Params("filename"))

	entry, ok := h.idx.Entry(id, version)
	if !ok {
		return renderPackageNotFound(c)
	}

	expected := fmt.Sprintf("%s.%s.nupkg",
		strings.ToLower(entry.Metadata.ID), strings.ToLower(entry.Metadata.Version))
	if !strings.EqualFold(filename, expected) {
		return renderPackageNotFound(c)
	}

	rel := entry.Storage.Dir + "/" + entry.Storage.FileName
	return h.streamStoredFile(c, rel, "application/octet-stream", "download", entry.Metadata.ID)
}

// handleIcon 按扩展名优先级探测图标，老版本缺图标时回退到最新版本目录。
func (h *handlers) handleIcon(c fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	version := strings.TrimSpace(c.Params("version"))

	icon, ok := h.builder.ResolveIcon(c.Context(), h.files, id, version)
	if !ok {
		return renderPackageNotFound(c)
	}

	return h.streamStoredFile(c, icon.RelPath, icon.ContentType, "icon", id)
}

// streamStoredFile 在共享闸门持有下打开并分块发送文件。
// 释放函数通过 defer 保证在完成、出错或取消的每条路径上都执行。
func (h *handlers) streamStoredFile(c fiber.Ctx, relPath, contentType, action, packageID string) error {
	started := time.Now()
	requestID := RequestID(c)

	release, err := h.gate.Acquire(c.Context())
	if err != nil {
		if errors.Is(err, streamgate.ErrShuttingDown) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "server is shutting down",
			})
		}
		return h.renderInternal(c, action, packageID, err)
	}
	defer release()

	result, err := h.files.Open(c.Context(), relPath)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return renderPackageNotFound(c)
		}
		return h.renderInternal(c, action, packageID, err)
	}
	defer result.Reader.Close()

	c.Set("Content-Type", contentType)
	if result.Entry.SizeBytes > 0 {
		c.Response().Header.SetContentLength(int(result.Entry.SizeBytes))
	}
	c.Status(fiber.StatusOK)

	written, err := store.CopyWithContext(c.Context(), c.Response().BodyWriter(), result.Reader)

	fields := logging.RequestFields(action, requestID, packageID, fiber.StatusOK)
	fields["bytes"] = written
	fields["duration_ms"] = time.Since(started).Milliseconds()
	if err != nil {
		// 客户端取消或磁盘错误：响应已经开始，只能记录后放弃。
		h.logger.WithError(err).WithFields(fields).Warn("stream aborted")
		return nil
	}
	h.logger.WithFields(fields).Info("stream complete")
	return nil
}

// renderInternal 记录细节但只向客户端暴露笼统错误。
func (h *handlers) renderInternal(c fiber.Ctx, action, packageID string, err error) error {
	h.logger.WithError(err).WithFields(logrus.Fields{
		"action":     action,
		"package_id": packageID,
		"request_id": RequestID(c),
	}).Error("internal failure")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal server error",
	})
}
