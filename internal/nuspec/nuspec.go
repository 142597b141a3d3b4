// Package nuspec parses the XML manifest embedded in NuGet packages. Only the
// metadata consumed by the feed endpoints is modelled; unknown elements are
// skipped by the decoder. The parser is shared by the startup disk scan and
// the publish path so both produce identical metadata records.
package nuspec

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMissingID/ErrMissingVersion 表示 manifest 缺少必填字段。
var (
	ErrMissingID      = errors.New("nuspec manifest has no id")
	ErrMissingVersion = errors.New("nuspec manifest has no version")
)

// Dependency 描述单个依赖项；VersionRange 保留 nuspec 原始区间写法。
type Dependency struct {
	ID           string
	VersionRange string
	Exclude      string
}

// DependencyGroup 按目标框架聚合依赖；TargetFramework 为空表示无框架限定。
type DependencyGroup struct {
	TargetFramework string
	Dependencies    []Dependency
}

// Manifest is the parsed, protocol-agnostic view of a .nuspec file.
type Manifest struct {
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
	DependencyGroups  []DependencyGroup
}

type manifestXML struct {
	XMLName  xml.Name    `xml:"package"`
	Metadata metadataXML `xml:"metadata"`
}

type metadataXML struct {
	ID           string          `xml:"id"`
	Version      string          `xml:"version"`
	Authors      string          `xml:"authors"`
	Description  string          `xml:"description"`
	Tags         string          `xml:"tags"`
	LicenseURL   string          `xml:"licenseUrl"`
	License      licenseXML      `xml:"license"`
	Icon         string          `xml:"icon"`
	IconURL      string          `xml:"iconUrl"`
	ProjectURL   string          `xml:"projectUrl"`
	Dependencies dependenciesXML `xml:"dependencies"`
}

type licenseXML struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type dependenciesXML struct {
	Groups []groupXML      `xml:"group"`
	Flat   []dependencyXML `xml:"dependency"`
}

type groupXML struct {
	TargetFramework string          `xml:"targetFramework,attr"`
	Dependencies    []dependencyXML `xml:"dependency"`
}

type dependencyXML struct {
	ID      string `xml:"id,attr"`
	Version string `xml:"version,attr"`
	Exclude string `xml:"exclude,attr"`
}

// Parse 解析 nuspec 内容；id/version 缺失视为不可用 manifest。
func Parse(r io.Reader) (*Manifest, error) {
	var raw manifestXML
	decoder := xml.NewDecoder(r)
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode nuspec: %w", err)
	}

	meta := raw.Metadata
	id := strings.TrimSpace(meta.ID)
	version := strings.TrimSpace(meta.Version)
	if id == "" {
		return nil, ErrMissingID
	}
	if version == "" {
		return nil, ErrMissingVersion
	}

	m := &Manifest{
		ID:          id,
		Version:     version,
		Authors:     strings.TrimSpace(meta.Authors),
		Description: strings.TrimSpace(meta.Description),
		Tags:        splitTags(meta.Tags),
		LicenseURL:  strings.TrimSpace(meta.LicenseURL),
		IconPath:    strings.TrimSpace(meta.Icon),
		IconURL:     strings.TrimSpace(meta.IconURL),
		ProjectURL:  strings.TrimSpace(meta.ProjectURL),
	}

	if strings.EqualFold(meta.License.Type, "expression") {
		m.LicenseExpression = strings.TrimSpace(meta.License.Value)
	}

	m.DependencyGroups = buildDependencyGroups(meta.Dependencies)
	return m, nil
}

// splitTags 保留 nuspec 中空白分隔的标签顺序。
func splitTags(raw string) []string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// buildDependencyGroups 将 group 形式与旧式扁平列表统一为分组结构，
// 扁平列表折叠为一个无 targetFramework 的组。
func buildDependencyGroups(deps dependenciesXML) []DependencyGroup {
	var groups []DependencyGroup

	for _, g := range deps.Groups {
		group := DependencyGroup{
			TargetFramework: strings.TrimSpace(g.TargetFramework),
		}
		for _, d := range g.Dependencies {
			group.Dependencies = append(group.Dependencies, convertDependency(d))
		}
		groups = append(groups, group)
	}

	if len(deps.Flat) > 0 {
		group := DependencyGroup{}
		for _, d := range deps.Flat {
			group.Dependencies = append(group.Dependencies, convertDependency(d))
		}
		groups = append(groups, group)
	}

	return groups
}

func convertDependency(d dependencyXML) Dependency {
	return Dependency{
		ID:           strings.TrimSpace(d.ID),
		VersionRange: strings.TrimSpace(d.Version),
		Exclude:      strings.TrimSpace(d.Exclude),
	}
}
