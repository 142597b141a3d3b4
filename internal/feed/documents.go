package feed

import "time"

// 协议文档的 @type 常量。客户端按字节匹配这些值，禁止改动。
const (
	ResourceTypeSearch       = "SearchQueryService"
	ResourceTypeRegistration = "RegistrationsBaseUrl"
	ResourceTypeContent      = "PackageBaseAddress/3.0.0"

	serviceIndexVersion = "3.0.0"
)

// ServiceIndex 是根发现文档，列举其余协议端点。
type ServiceIndex struct {
	Version   string     `json:"version"`
	Resources []Resource `json:"resources"`
}

// Resource 是服务索引中的单个端点描述。
type Resource struct {
	ID      string `json:"@id"`
	Type    string `json:"@type"`
	Comment string `json:"comment,omitempty"`
}

// SearchResponse 对应 /v3/search 输出。totalHits 统计过滤后、分页前的数量。
type SearchResponse struct {
	TotalHits int            `json:"totalHits"`
	Data      []SearchResult `json:"data"`
}

// SearchResult 用最新版本的展示字段描述一个匹配的包。
type SearchResult struct {
	ID           string          `json:"id"`
	Version      string          `json:"version"`
	Description  string          `json:"description,omitempty"`
	Authors      []string        `json:"authors"`
	Tags         []string        `json:"tags,omitempty"`
	IconURL      string          `json:"iconUrl,omitempty"`
	LicenseURL   string          `json:"licenseUrl,omitempty"`
	ProjectURL   string          `json:"projectUrl,omitempty"`
	Registration string          `json:"registration"`
	Versions     []SearchVersion `json:"versions"`
}

// SearchVersion 是搜索结果里每个已发布版本的条目。
type SearchVersion struct {
	ID      string `json:"@id"`
	Version string `json:"version"`
}

// RegistrationIndex 是单个包的注册文档；本实现始终只有一页。
type RegistrationIndex struct {
	ID    string             `json:"@id"`
	Count int                `json:"count"`
	Items []RegistrationPage `json:"items"`
}

// RegistrationPage 列举一段版本区间；lower/upper 取自索引序列的首尾。
type RegistrationPage struct {
	ID    string             `json:"@id"`
	Count int                `json:"count"`
	Lower string             `json:"lower"`
	Upper string             `json:"upper"`
	Items []RegistrationLeaf `json:"items"`
}

// RegistrationLeaf 绑定一个版本的目录条目与内容地址。
type RegistrationLeaf struct {
	ID             string       `json:"@id"`
	PackageContent string       `json:"packageContent"`
	CatalogEntry   CatalogEntry `json:"catalogEntry"`
}

// CatalogEntry 是注册文档内嵌的版本元数据。
type CatalogEntry struct {
	ID                string            `json:"id"`
	Version           string            `json:"version"`
	Authors           string            `json:"authors,omitempty"`
	Description       string            `json:"description,omitempty"`
	Tags              []string          `json:"tags,omitempty"`
	LicenseURL        string            `json:"licenseUrl,omitempty"`
	LicenseExpression string            `json:"licenseExpression,omitempty"`
	IconURL           string            `json:"iconUrl,omitempty"`
	ProjectURL        string            `json:"projectUrl,omitempty"`
	Published         time.Time         `json:"published"`
	Listed            bool              `json:"listed"`
	PackageContent    string            `json:"packageContent"`
	DependencyGroups  []DependencyGroup `json:"dependencyGroups,omitempty"`
}

// DependencyGroup/Dependency 是协议面的依赖分组编码。
type DependencyGroup struct {
	TargetFramework string       `json:"targetFramework,omitempty"`
	Dependencies    []Dependency `json:"dependencies,omitempty"`
}

type Dependency struct {
	ID      string `json:"id"`
	Range   string `json:"range,omitempty"`
	Exclude string `json:"exclude,omitempty"`
}

// VersionList 对应 PackageBaseAddress 的版本枚举文档。
type VersionList struct {
	Versions []string `json:"versions"`
}
