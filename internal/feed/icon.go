package feed

import (
	"context"
	"errors"
	"path"

	"github.com/nupoint/nupoint/internal/store"
)

// iconExtensions 按固定优先级探测版本目录下的图标文件。
var iconExtensions = []string{"png", "jpg", "jpeg", "gif", "svg"}

var iconContentTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"svg":  "image/svg+xml",
}

// Icon 描述一次成功的图标解析。
type Icon struct {
	RelPath     string
	ContentType string
}

// ResolveIcon 在请求版本的存储目录中探测图标；全部落空时改查最新版本目录
// （老版本往往早于图标支持），仍未命中返回 false。
func (b *Builder) ResolveIcon(ctx context.Context, files store.Store, id, version string) (Icon, bool) {
	entry, ok := b.idx.Entry(id, version)
	if !ok {
		return Icon{}, false
	}

	if icon, ok := probeIconDir(ctx, files, entry.Storage.Dir); ok {
		return icon, true
	}

	latest, ok := b.idx.LatestEntry(id)
	if !ok || latest.Storage.Dir == entry.Storage.Dir {
		return Icon{}, false
	}
	return probeIconDir(ctx, files, latest.Storage.Dir)
}

func probeIconDir(ctx context.Context, files store.Store, dir string) (Icon, bool) {
	for _, ext := range iconExtensions {
		rel := path.Join(dir, "icon."+ext)
		if _, err := files.Stat(ctx, rel); err == nil {
			return Icon{RelPath: rel, ContentType: iconContentTypes[ext]}, true
		} else if !errors.Is(err, store.ErrNotFound) {
			return Icon{}, false
		}
	}
	return Icon{}, false
}
