// Package index maintains the in-memory directory of published packages. It
// is a pure cache derived from the on-disk package tree: it is rebuilt from a
// full scan at startup, mutated only after a publish has durably written its
// files, and cleared at shutdown. Entries are keyed by lower-cased package id
// while the stored metadata keeps the original casing for protocol output.
package index

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nupoint/nupoint/internal/nuspec"
)

// ErrInvalidEntry 表示条目缺少 id 或 version，无法入库。
var ErrInvalidEntry = errors.New("package entry requires id and version")

// PackageMetadata 是协议层可见的包元数据，id/version 保留发布时的原始大小写。
type PackageMetadata struct {
	ID                string
	Version           string
	Authors           string
	Description       string
	Tags              []string
	LicenseURL        string
	LicenseExpression string
	IconPath          string
	IconURL           string
	ProjectURL        string
	DependencyGroups  []nuspec.DependencyGroup
	Published         time.Time
	Listed            bool
}

// Storage 记录条目真实的磁盘位置；目录/文件名大小写可能与协议面的小写形式不同。
type Storage struct {
	// Dir 是相对包根目录的 "{id}/{version}" 路径，保留原始大小写。
	Dir string
	// FileName 是 nupkg 文件名。
	FileName string
}

// PackageEntry 将元数据与磁盘位置绑定为索引的基本单元。
type PackageEntry struct {
	Storage  Storage
	Metadata PackageMetadata
}

// Index 按小写 id 维护版本升序的条目序列。
//
// 读写都持锁：不同于单线程协作式运行时，Go 的 handler 并发执行，
// 锁保证任何读者只会看到完整的旧状态或完整的新状态。
type Index struct {
	mu       sync.RWMutex
	packages map[string][]*PackageEntry

	// baseURL 是请求侧告知的默认 Base URL，仅在未配置固定 URL 时作为
	// 最后的兜底参考；绝对 URL 永远在响应时计算，不落入元数据。
	baseURL string
}

// New 构造空索引；内容通过 Rebuild 或 AddPackage 填充。
func New() *Index {
	return &Index{
		packages: make(map[string][]*PackageEntry),
	}
}

// AddPackage 将 (id, version) 条目插入或替换到正确的排序位置。
// 调用方必须保证对应文件已经落盘。
func (ix *Index) AddPackage(meta PackageMetadata, storage Storage) error {
	id := strings.TrimSpace(meta.ID)
	version := strings.TrimSpace(meta.Version)
	if id == "" || version == "" {
		return ErrInvalidEntry
	}

	entry := &PackageEntry{Storage: storage, Metadata: meta}
	key := strings.ToLower(id)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	entries := ix.packages[key]
	for i, existing := range entries {
		if strings.EqualFold(existing.Metadata.Version, version) {
			entries[i] = entry
			return nil
		}
	}

	entries = append(entries, entry)
	sort.SliceStable(entries, func(i, j int) bool {
		return CompareVersions(entries[i].Metadata.Version, entries[j].Metadata.Version) < 0
	})
	ix.packages[key] = entries
	return nil
}

// AllPackageIDs 返回当前已索引的小写 id 集合（排序后），便于确定性遍历。
func (ix *Index) AllPackageIDs() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	ids := make([]string, 0, len(ix.packages))
	for id := range ix.packages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PackageMetadata 按版本升序返回某个包的全部元数据；未知包返回空切片。
// 查找对大小写不敏感，返回值保留存储时的原始大小写。
func (ix *Index) PackageMetadata(id string) []PackageMetadata {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	entries := ix.packages[strings.ToLower(strings.TrimSpace(id))]
	result := make([]PackageMetadata, 0, len(entries))
	for _, entry := range entries {
		result = append(result, entry.Metadata)
	}
	return result
}

// Entry 以大小写不敏感方式精确匹配 (id, version)。
func (ix *Index) Entry(id, version string) (PackageEntry, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	entries := ix.packages[strings.ToLower(strings.TrimSpace(id))]
	for _, entry := range entries {
		if strings.EqualFold(entry.Metadata.Version, strings.TrimSpace(version)) {
			return *entry, true
		}
	}
	return PackageEntry{}, false
}

// LatestEntry 返回版本序列的最后一个元素，即最新版本。
func (ix *Index) LatestEntry(id string) (PackageEntry, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	entries := ix.packages[strings.ToLower(strings.TrimSpace(id))]
	if len(entries) == 0 {
		return PackageEntry{}, false
	}
	return *entries[len(entries)-1], true
}

// SetListed 调整某个版本的可见性标记，返回是否找到条目。
func (ix *Index) SetListed(id, version string, listed bool) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	entries := ix.packages[strings.ToLower(strings.TrimSpace(id))]
	for _, entry := range entries {
		if strings.EqualFold(entry.Metadata.Version, strings.TrimSpace(version)) {
			entry.Metadata.Listed = listed
			return true
		}
	}
	return false
}

// UpdateBaseURL 记录请求侧观测到的默认 Base URL。索引不会把它写入元数据，
// 仅作为无固定 URL 部署下的参考值。
func (ix *Index) UpdateBaseURL(url string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.baseURL = strings.TrimRight(strings.TrimSpace(url), "/")
}

// BaseURL 返回最近一次 UpdateBaseURL 记录的值。
func (ix *Index) BaseURL() string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.baseURL
}

// Counts 返回包与版本总数，供诊断接口使用。
func (ix *Index) Counts() (packages int, versions int) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	packages = len(ix.packages)
	for _, entries := range ix.packages {
		versions += len(entries)
	}
	return packages, versions
}

// Clear 清空索引；只应在进程关停且流协调器确认无在途读取后调用。
func (ix *Index) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.packages = make(map[string][]*PackageEntry)
}

// replaceAll 原子替换全部内容，由 Rebuild 在扫描完成后调用，
// 保证并发读者看不到半成品索引。
func (ix *Index) replaceAll(packages map[string][]*PackageEntry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.packages = packages
}
