// Package feed renders the protocol documents (service index, search,
// registration, version list) from the metadata index. Absolute links are
// derived per request from the resolved base URL and are never persisted.
package feed

import (
	"fmt"
	"strings"

	"github.com/nupoint/nupoint/internal/index"
)

// Builder 将索引内容编码为协议文档。无内部状态，可并发使用。
type Builder struct {
	idx *index.Index
}

// NewBuilder 构造响应构建器。
func NewBuilder(idx *index.Index) *Builder {
	return &Builder{idx: idx}
}

// ServiceIndex 输出三条资源的根发现文档。
func (b *Builder) ServiceIndex(root string) ServiceIndex {
	return ServiceIndex{
		Version: serviceIndexVersion,
		Resources: []Resource{
			{
				ID:      root + "/v3/search",
				Type:    ResourceTypeSearch,
				Comment: "Filter and search for packages by keyword.",
			},
			{
				ID:      root + "/v3/registration/",
				Type:    ResourceTypeRegistration,
				Comment: "Get package metadata.",
			},
			{
				ID:      root + "/v3/package/",
				Type:    ResourceTypeContent,
				Comment: "Get package content (.nupkg).",
			},
		},
	}
}

// Search 对全部已索引 id 做线性过滤。query 以大小写不敏感子串匹配 id；
// id 不中时再以同样方式匹配任意版本的描述。totalHits 在分页前统计。
// 全部版本都被 unlist 的包不出现在结果里。
func (b *Builder) Search(root, query string, skip, take int) SearchResponse {
	query = strings.ToLower(strings.TrimSpace(query))

	var matched []string
	for _, id := range b.idx.AllPackageIDs() {
		if len(b.listedMetadata(id)) == 0 {
			continue
		}
		if b.matches(id, query) {
			matched = append(matched, id)
		}
	}

	totalHits := len(matched)

	if skip < 0 {
		skip = 0
	}
	if skip > len(matched) {
		skip = len(matched)
	}
	matched = matched[skip:]
	if take < 0 {
		take = 0
	}
	if take < len(matched) {
		matched = matched[:take]
	}

	data := make([]SearchResult, 0, len(matched))
	for _, id := range matched {
		if result, ok := b.searchResult(root, id); ok {
			data = append(data, result)
		}
	}

	return SearchResponse{TotalHits: totalHits, Data: data}
}

func (b *Builder) matches(id, query string) bool {
	if query == "" {
		return true
	}
	if strings.Contains(id, query) {
		return true
	}
	for _, meta := range b.idx.PackageMetadata(id) {
		if strings.Contains(strings.ToLower(meta.Description), query) {
			return true
		}
	}
	return false
}

// listedMetadata returns the listed versions of id, oldest first.
func (b *Builder) listedMetadata(id string) []index.PackageMetadata {
	var listed []index.PackageMetadata
	for _, meta := range b.idx.PackageMetadata(id) {
		if meta.Listed {
			listed = append(listed, meta)
		}
	}
	return listed
}

func (b *Builder) searchResult(root, id string) (SearchResult, bool) {
	metas := b.listedMetadata(id)
	if len(metas) == 0 {
		return SearchResult{}, false
	}
	// 展示字段取最新的仍在列版本。
	meta := metas[len(metas)-1]

	versions := make([]SearchVersion, 0, len(metas))
	for _, m := range metas {
		versions = append(versions, SearchVersion{
			ID:      registrationLeafURL(root, m.ID, m.Version),
			Version: m.Version,
		})
	}

	return SearchResult{
		ID:           meta.ID,
		Version:      meta.Version,
		Description:  meta.Description,
		Authors:      splitAuthors(meta.Authors),
		Tags:         meta.Tags,
		IconURL:      b.iconURL(root, meta),
		LicenseURL:   meta.LicenseURL,
		ProjectURL:   meta.ProjectURL,
		Registration: registrationIndexURL(root, meta.ID),
		Versions:     versions,
	}, true
}

// Registration 输出单页注册文档；未知包返回 false。
func (b *Builder) Registration(root, id string) (RegistrationIndex, bool) {
	metas := b.idx.PackageMetadata(id)
	if len(metas) == 0 {
		return RegistrationIndex{}, false
	}

	items := make([]RegistrationLeaf, 0, len(metas))
	for _, meta := range metas {
		items = append(items, RegistrationLeaf{
			ID:             registrationLeafURL(root, meta.ID, meta.Version),
			PackageContent: ContentURL(root, meta.ID, meta.Version),
			CatalogEntry:   b.catalogEntry(root, meta),
		})
	}

	page := RegistrationPage{
		ID:    registrationIndexURL(root, metas[0].ID),
		Count: len(items),
		Lower: metas[0].Version,
		Upper: metas[len(metas)-1].Version,
		Items: items,
	}

	return RegistrationIndex{
		ID:    registrationIndexURL(root, metas[0].ID),
		Count: 1,
		Items: []RegistrationPage{page},
	}, true
}

// Versions 输出 PackageBaseAddress 的版本枚举，版本串按协议约定转小写。
func (b *Builder) Versions(id string) (VersionList, bool) {
	metas := b.idx.PackageMetadata(id)
	if len(metas) == 0 {
		return VersionList{}, false
	}

	versions := make([]string, 0, len(metas))
	for _, meta := range metas {
		versions = append(versions, strings.ToLower(meta.Version))
	}
	return VersionList{Versions: versions}, true
}

func (b *Builder) catalogEntry(root string, meta index.PackageMetadata) CatalogEntry {
	entry := CatalogEntry{
		ID:                meta.ID,
		Version:           meta.Version,
		Authors:           meta.Authors,
		Description:       meta.Description,
		Tags:              meta.Tags,
		LicenseURL:        meta.LicenseURL,
		LicenseExpression: meta.LicenseExpression,
		IconURL:           b.iconURL(root, meta),
		ProjectURL:        meta.ProjectURL,
		Published:         meta.Published,
		Listed:            meta.Listed,
		PackageContent:    ContentURL(root, meta.ID, meta.Version),
	}

	for _, group := range meta.DependencyGroups {
		encoded := DependencyGroup{TargetFramework: group.TargetFramework}
		for _, dep := range group.Dependencies {
			encoded.Dependencies = append(encoded.Dependencies, Dependency{
				ID:      dep.ID,
				Range:   dep.VersionRange,
				Exclude: dep.Exclude,
			})
		}
		entry.DependencyGroups = append(entry.DependencyGroups, encoded)
	}

	return entry
}

// iconURL 优先包内图标（由本服务回源），其次 manifest 声明的远程地址。
func (b *Builder) iconURL(root string, meta index.PackageMetadata) string {
	if meta.IconPath != "" {
		return fmt.Sprintf("%s/v3/package/%s/%s/icon",
			root, strings.ToLower(meta.ID), strings.ToLower(meta.Version))
	}
	return meta.IconURL
}

// ContentURL 构造下载地址；id 与 version 段按协议约定一律小写。
func ContentURL(root, id, version string) string {
	lowerID := strings.ToLower(id)
	lowerVersion := strings.ToLower(version)
	return fmt.Sprintf("%s/v3/package/%s/%s/%s.%s.nupkg",
		root, lowerID, lowerVersion, lowerID, lowerVersion)
}

func registrationIndexURL(root, id string) string {
	return fmt.Sprintf("%s/v3/registration/%s/index.json", root, strings.ToLower(id))
}

func registrationLeafURL(root, id, version string) string {
	return fmt.Sprintf("%s/v3/registration/%s/%s.json",
		root, strings.ToLower(id), strings.ToLower(version))
}

// splitAuthors 把逗号分隔的作者串拆为协议要求的数组。
func splitAuthors(raw string) []string {
	parts := strings.Split(raw, ",")
	authors := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			authors = append(authors, trimmed)
		}
	}
	return authors
}
