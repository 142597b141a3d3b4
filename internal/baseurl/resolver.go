// Package baseurl computes the externally visible base URL and path prefix
// used to render every absolute link in protocol documents. An operator-fixed
// URL always wins and ignores request headers entirely; otherwise forwarded
// headers are honoured only when the request comes through a trusted proxy.
package baseurl

import (
	"net"
	"net/url"
	"strings"
)

// RequestInfo 是从 HTTP 请求中抽取的一次性快照，解析器只消费这些字段，
// 不直接触碰请求对象。
type RequestInfo struct {
	Scheme     string
	Host       string
	RemoteAddr string

	Forwarded       string
	XForwardedFor   string
	XForwardedProto string
	XForwardedHost  string
	XForwardedPort  string
	XForwardedPath  string
}

// Resolved 是解析结果；BaseURL 为 scheme://host[:port]（无尾斜杠），
// PathPrefix 为可选的挂载前缀。
type Resolved struct {
	BaseURL    string
	PathPrefix string
	Fixed      bool
}

// Root 返回用于拼接协议链接的完整前缀。
func (r Resolved) Root() string {
	return r.BaseURL + r.PathPrefix
}

// Resolver 在启动时构造一次，之后对每个请求复用同一信任判定。
type Resolver struct {
	fixedBase   string
	fixedPrefix string
	hasFixed    bool

	trustAll bool
	trusted  map[string]struct{}
}

// NewResolver 构造解析器。trustedProxies 为空表示信任所有来源
// （宽松部署下的显式 trust-all 策略）。
func NewResolver(fixedBaseURL string, trustedProxies []string) *Resolver {
	r := &Resolver{
		trusted: make(map[string]struct{}, len(trustedProxies)),
	}

	for _, proxy := range trustedProxies {
		trimmed := strings.TrimSpace(proxy)
		if trimmed != "" {
			r.trusted[trimmed] = struct{}{}
		}
	}
	r.trustAll = len(r.trusted) == 0

	if fixed := strings.TrimSpace(fixedBaseURL); fixed != "" {
		if parsed, err := url.Parse(fixed); err == nil && parsed.Host != "" {
			r.hasFixed = true
			r.fixedBase = parsed.Scheme + "://" + parsed.Host
			r.fixedPrefix = strings.TrimRight(parsed.Path, "/")
		}
	}

	return r
}

// HasFixedBaseURL 表示是否配置了硬覆盖。
func (r *Resolver) HasFixedBaseURL() bool {
	return r.hasFixed
}

// Resolve 按固定 URL → 信任的 forwarded 头 → 字面请求值的顺序解析。
// 任何头解析失败都降级为字面值，绝不报错。
func (r *Resolver) Resolve(req RequestInfo) Resolved {
	if r.hasFixed {
		return Resolved{
			BaseURL:    r.fixedBase,
			PathPrefix: r.fixedPrefix,
			Fixed:      true,
		}
	}

	scheme := req.Scheme
	if scheme == "" {
		scheme = "http"
	}
	host := req.Host
	port := ""
	prefix := ""

	if r.trustsPeer(req.RemoteAddr, req.XForwardedFor) {
		if fwd, ok := parseForwarded(req.Forwarded); ok {
			if fwd.proto != "" {
				scheme = fwd.proto
			}
			if fwd.host != "" {
				host = fwd.host
			}
			if fwd.port != "" {
				port = fwd.port
			}
		} else {
			if p := strings.TrimSpace(req.XForwardedProto); p != "" {
				scheme = p
			}
			if h := strings.TrimSpace(req.XForwardedHost); h != "" {
				host = h
			}
			if p := strings.TrimSpace(req.XForwardedPort); p != "" {
				port = p
			}
		}

		if p := strings.TrimSpace(req.XForwardedPath); p != "" {
			prefix = normalizePrefix(p)
		}
	}

	if port != "" && !hostHasPort(host) {
		host = host + ":" + port
	}

	return Resolved{
		BaseURL:    scheme + "://" + host,
		PathPrefix: prefix,
	}
}

// trustsPeer 是 URL 与路径前缀共用的唯一信任判定：直连对端地址或
// X-Forwarded-For 链上任意地址出现在白名单中即视为可信。
func (r *Resolver) trustsPeer(remoteAddr, forwardedFor string) bool {
	if r.trustAll {
		return true
	}

	if _, ok := r.trusted[peerIP(remoteAddr)]; ok {
		return true
	}

	for _, hop := range strings.Split(forwardedFor, ",") {
		hop = strings.TrimSpace(hop)
		if hop == "" {
			continue
		}
		if _, ok := r.trusted[hop]; ok {
			return true
		}
	}
	return false
}

// peerIP 去掉端口部分，返回纯 IP。
func peerIP(remoteAddr string) string {
	remoteAddr = strings.TrimSpace(remoteAddr)
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

// hostHasPort 判断 host 是否已携带端口，兼容 IPv6 字面量。
func hostHasPort(host string) bool {
	if strings.HasPrefix(host, "[") {
		return strings.Contains(host, "]:")
	}
	return strings.Contains(host, ":")
}

// normalizePrefix 保证前缀以 / 开头且无尾斜杠。
func normalizePrefix(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
