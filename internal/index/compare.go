package index

import (
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CompareVersions 按语义化版本比较两个版本串，返回 -1/0/1。
// 双方都能被 semver 解析时以 semver 语义为准（含预发布规则）；
// 否则退化为数字分段比较，最后退化为大小写不敏感的字符串比较，
// 保证四段式等非严格 semver 的 NuGet 版本仍有稳定全序。
func CompareVersions(a, b string) int {
	av, aErr := semver.NewVersion(strings.TrimSpace(a))
	bv, bErr := semver.NewVersion(strings.TrimSpace(b))
	if aErr == nil && bErr == nil {
		return av.Compare(bv)
	}
	return compareDotted(strings.TrimSpace(a), strings.TrimSpace(b))
}

func compareDotted(a, b string) int {
	aCore, aPre := splitPrerelease(a)
	bCore, bPre := splitPrerelease(b)

	aParts := strings.Split(aCore, ".")
	bParts := strings.Split(bCore, ".")
	limit := len(aParts)
	if len(bParts) > limit {
		limit = len(bParts)
	}

	for i := 0; i < limit; i++ {
		var aSeg, bSeg string
		if i < len(aParts) {
			aSeg = aParts[i]
		}
		if i < len(bParts) {
			bSeg = bParts[i]
		}
		if cmp := compareSegment(aSeg, bSeg); cmp != 0 {
			return cmp
		}
	}

	// 核心段相同时，带预发布后缀的版本排在前面。
	switch {
	case aPre == bPre:
		return 0
	case aPre == "":
		return 1
	case bPre == "":
		return -1
	default:
		return strings.Compare(strings.ToLower(aPre), strings.ToLower(bPre))
	}
}

func splitPrerelease(v string) (core, pre string) {
	if idx := strings.IndexAny(v, "-+"); idx >= 0 {
		return v[:idx], v[idx+1:]
	}
	return v, ""
}

func compareSegment(a, b string) int {
	aNum, aErr := strconv.Atoi(a)
	bNum, bErr := strconv.Atoi(b)
	if aErr == nil && bErr == nil {
		switch {
		case aNum < bNum:
			return -1
		case aNum > bNum:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}
