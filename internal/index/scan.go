package index

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nupoint/nupoint/internal/nuspec"
)

// Rebuild 对包根目录做全量扫描并原子替换索引内容。目录布局约定为
// {root}/{id}/{version}/，其中包含一个 .nupkg 与一个 .nuspec。
// 单个包解析失败只记日志并跳过，部分可用优于整体失败。
func (ix *Index) Rebuild(packagesRoot string, logger *logrus.Logger) (int, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	rootEntries, err := os.ReadDir(packagesRoot)
	if err != nil {
		if os.IsNotExist(err) {
			// 空仓库是合法的初始状态。
			ix.replaceAll(make(map[string][]*PackageEntry))
			return 0, nil
		}
		return 0, fmt.Errorf("read packages root: %w", err)
	}

	packages := make(map[string][]*PackageEntry)
	indexed := 0

	for _, idEntry := range rootEntries {
		if !idEntry.IsDir() {
			continue
		}
		idDir := filepath.Join(packagesRoot, idEntry.Name())

		versionEntries, err := os.ReadDir(idDir)
		if err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"action":     "index_scan",
				"package_id": idEntry.Name(),
			}).Warn("skip unreadable package directory")
			continue
		}

		for _, versionEntry := range versionEntries {
			if !versionEntry.IsDir() {
				continue
			}
			versionDir := filepath.Join(idDir, versionEntry.Name())

			entry, err := scanVersionDir(versionDir, idEntry.Name(), versionEntry.Name())
			if err != nil {
				logger.WithError(err).WithFields(logrus.Fields{
					"action":     "index_scan",
					"package_id": idEntry.Name(),
					"version":    versionEntry.Name(),
				}).Warn("skip malformed package version")
				continue
			}

			key := strings.ToLower(entry.Metadata.ID)
			packages[key] = insertSorted(packages[key], entry)
			indexed++
		}
	}

	ix.replaceAll(packages)
	return indexed, nil
}

// scanVersionDir 读取单个版本目录，要求同时存在 nuspec 与 nupkg。
func scanVersionDir(dir, dirID, dirVersion string) (*PackageEntry, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read version dir: %w", err)
	}

	var nuspecName, nupkgName string
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		name := file.Name()
		switch {
		case strings.HasSuffix(strings.ToLower(name), ".nuspec"):
			nuspecName = name
		case strings.HasSuffix(strings.ToLower(name), ".nupkg"):
			nupkgName = name
		}
	}
	if nuspecName == "" {
		return nil, fmt.Errorf("no nuspec in %s", dir)
	}
	if nupkgName == "" {
		return nil, fmt.Errorf("no nupkg in %s", dir)
	}

	f, err := os.Open(filepath.Join(dir, nuspecName))
	if err != nil {
		return nil, fmt.Errorf("open nuspec: %w", err)
	}
	defer f.Close()

	manifest, err := nuspec.Parse(f)
	if err != nil {
		return nil, err
	}

	published := time.Now().UTC()
	if info, err := os.Stat(filepath.Join(dir, nupkgName)); err == nil {
		published = info.ModTime().UTC()
	}

	meta := MetadataFromManifest(manifest, published)
	storage := Storage{
		Dir:      path.Join(dirID, dirVersion),
		FileName: nupkgName,
	}
	return &PackageEntry{Storage: storage, Metadata: meta}, nil
}

// MetadataFromManifest 把 nuspec manifest 转换为索引元数据；新条目默认可见。
func MetadataFromManifest(m *nuspec.Manifest, published time.Time) PackageMetadata {
	return PackageMetadata{
		ID:                m.ID,
		Version:           m.Version,
		Authors:           m.Authors,
		Description:       m.Description,
		Tags:              m.Tags,
		LicenseURL:        m.LicenseURL,
		LicenseExpression: m.LicenseExpression,
		IconPath:          m.IconPath,
		IconURL:           m.IconURL,
		ProjectURL:        m.ProjectURL,
		DependencyGroups:  m.DependencyGroups,
		Published:         published,
		Listed:            true,
	}
}

// insertSorted 在保持版本升序的前提下插入条目，重复版本时后扫描到的覆盖先前的。
func insertSorted(entries []*PackageEntry, entry *PackageEntry) []*PackageEntry {
	for i, existing := range entries {
		if strings.EqualFold(existing.Metadata.Version, entry.Metadata.Version) {
			entries[i] = entry
			return entries
		}
	}

	pos := len(entries)
	for i, existing := range entries {
		if CompareVersions(entry.Metadata.Version, existing.Metadata.Version) < 0 {
			pos = i
			break
		}
	}

	entries = append(entries, nil)
	copy(entries[pos+1:], entries[pos:])
	entries[pos] = entry
	return entries
}
