// Package auth is the admit/deny gate consulted by the protocol handlers.
// Credential material is limited to a single operator-configured API key;
// handlers never verify anything beyond what Guard exposes.
package auth

import "crypto/subtle"

// Scope 区分读端点与发布端点的准入要求。
type Scope string

const (
	ScopeRead    Scope = "read"
	ScopePublish Scope = "publish"
)

// Principal 描述一次请求携带的身份。
type Principal struct {
	Username string
	Role     string
}

// Guard 在启动时构造一次并注入所有 handler。
type Guard struct {
	apiKey      string
	requireRead bool
}

// NewGuard 构造准入闸门。apiKey 为空表示完全开放的部署。
func NewGuard(apiKey string, requireAuthForRead bool) *Guard {
	return &Guard{
		apiKey:      apiKey,
		requireRead: requireAuthForRead,
	}
}

// Required 返回指定范围是否需要出示密钥。
func (g *Guard) Required(scope Scope) bool {
	if g.apiKey == "" {
		return false
	}
	if scope == ScopePublish {
		return true
	}
	return g.requireRead
}

// Admit 判定携带的密钥是否满足范围要求。比较使用常量时间实现。
func (g *Guard) Admit(scope Scope, presentedKey string) bool {
	if !g.Required(scope) {
		return true
	}
	if presentedKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(g.apiKey), []byte(presentedKey)) == 1
}

// Principal 返回密钥对应的身份；不匹配时返回 nil。
func (g *Guard) Principal(presentedKey string) *Principal {
	if g.apiKey == "" || presentedKey == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(g.apiKey), []byte(presentedKey)) != 1 {
		return nil
	}
	return &Principal{Username: "api-key", Role: "publisher"}
}
