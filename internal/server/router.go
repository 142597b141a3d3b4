package server

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nupoint/nupoint/internal/auth"
	"github.com/nupoint/nupoint/internal/baseurl"
	"github.com/nupoint/nupoint/internal/feed"
	"github.com/nupoint/nupoint/internal/index"
	"github.com/nupoint/nupoint/internal/publish"
	"github.com/nupoint/nupoint/internal/store"
	"github.com/nupoint/nupoint/internal/streamgate"
)

// AppOptions 聚合构建 Fiber 应用所需的全部依赖，全部由启动逻辑注入，
// 便于测试时替换为隔离实例。
type AppOptions struct {
	Logger    *logrus.Logger
	Index     *index.Index
	Files     store.Store
	Gate      *streamgate.Gate
	Resolver  *baseurl.Resolver
	Guard     *auth.Guard
	Publisher *publish.Publisher
}

const (
	contextKeyRequestID = "_nupoint_request_id"
	contextKeyResolved  = "_nupoint_resolved_url"

	apiKeyHeader = "X-NuGet-ApiKey"
)

// NewApp builds the Fiber application with request-context middleware and all
// protocol routes registered.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Index == nil {
		return nil, errors.New("metadata index is required")
	}
	if opts.Files == nil {
		return nil, errors.New("package store is required")
	}
	if opts.Gate == nil {
		return nil, errors.New("stream gate is required")
	}
	if opts.Resolver == nil {
		return nil, errors.New("url resolver is required")
	}
	if opts.Guard == nil {
		return nil, errors.New("auth guard is required")
	}
	if opts.Publisher == nil {
		return nil, errors.New("publisher is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		// nupkg 上传可能很大。
		BodyLimit: 256 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts))

	h := newHandlers(opts)
	registerRoutes(app, h)

	return app, nil
}

// requestContextMiddleware 负责生成请求 ID，并构造本次请求的 ResolvedUrl
// 快照，后续 handler 只读取 Locals，不再碰请求头。
func requestContextMiddleware(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		resolved := opts.Resolver.Resolve(requestInfoFromCtx(c))
		c.Locals(contextKeyResolved, resolved)

		// 无固定 URL 的部署下，把观测到的默认值同步给索引作参考。
		if !resolved.Fixed {
			opts.Index.UpdateBaseURL(resolved.Root())
		}

		return c.Next()
	}
}

// requestInfoFromCtx 抽取解析器需要的请求快照。
func requestInfoFromCtx(c fiber.Ctx) baseurl.RequestInfo {
	return baseurl.RequestInfo{
		Scheme:          c.Scheme(),
		Host:            getHostHeader(c),
		RemoteAddr:      c.IP(),
		Forwarded:       c.Get("Forwarded"),
		XForwardedFor:   c.Get("X-Forwarded-For"),
		XForwardedProto: c.Get("X-Forwarded-Proto"),
		XForwardedHost:  c.Get("X-Forwarded-Host"),
		XForwardedPort:  c.Get("X-Forwarded-Port"),
		XForwardedPath:  c.Get("X-Forwarded-Path"),
	}
}

func getHostHeader(c fiber.Ctx) string {
	if raw := c.Request().Header.Peek(fiber.HeaderHost); len(raw) > 0 {
		return strings.TrimSpace(string(raw))
	}
	return c.Hostname()
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

// resolvedURL 读取中间件写入的解析结果；缺失时退回索引的参考值。
func resolvedURL(c fiber.Ctx, idx *index.Index) baseurl.Resolved {
	if value := c.Locals(contextKeyResolved); value != nil {
		if resolved, ok := value.(baseurl.Resolved); ok {
			return resolved
		}
	}
	return baseurl.Resolved{BaseURL: idx.BaseURL()}
}

// handlers 捆绑全部端点实现与依赖。
type handlers struct {
	logger    *logrus.Logger
	idx       *index.Index
	files     store.Store
	gate      *streamgate.Gate
	builder   *feed.Builder
	guard     *auth.Guard
	publisher *publish.Publisher
	startedAt time.Time
}

func newHandlers(opts AppOptions) *handlers {
	return &handlers{
		logger:    opts.Logger,
		idx:       opts.Index,
		files:     opts.Files,
		gate:      opts.Gate,
		builder:   feed.NewBuilder(opts.Index),
		guard:     opts.Guard,
		publisher: opts.Publisher,
		startedAt: time.Now(),
	}
}
