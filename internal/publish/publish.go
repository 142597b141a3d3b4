// Package publish unpacks uploaded nupkg archives, validates their manifest
// and hands the result to the package store and the metadata index. Disk
// writes complete (and fsync) before the index learns about the new version,
// so concurrent readers observe either the fully-old or fully-new state.
package publish

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nupoint/nupoint/internal/index"
	"github.com/nupoint/nupoint/internal/logging"
	"github.com/nupoint/nupoint/internal/nuspec"
	"github.com/nupoint/nupoint/internal/store"
)

var (
	// ErrInvalidPackage 表示上传内容不是可用的 nupkg。
	ErrInvalidPackage = errors.New("invalid package upload")
	// ErrDuplicate 表示 (id, version) 已存在。
	ErrDuplicate = errors.New("package version already exists")
)

// Publisher 负责发布流程的编排，启动时构造一次。
type Publisher struct {
	files  store.Store
	idx    *index.Index
	logger *logrus.Logger
	now    func() time.Time
}

// NewPublisher 构造发布器，默认时钟为 time.Now。
func NewPublisher(files store.Store, idx *index.Index, logger *logrus.Logger) *Publisher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Publisher{
		files:  files,
		idx:    idx,
		logger: logger,
		now:    time.Now,
	}
}

// Publish 处理一次上传：解包 → 校验 → 落盘 → 更新索引。
// 返回写入后的索引条目；任何落盘失败都会清理已写入的版本目录。
func (p *Publisher) Publish(ctx context.Context, nupkg []byte) (index.PackageEntry, error) {
	manifest, nuspecRaw, err := extractManifest(nupkg)
	if err != nil {
		return index.PackageEntry{}, err
	}

	if err := validateIdentity(manifest.ID, manifest.Version); err != nil {
		return index.PackageEntry{}, err
	}

	if _, exists := p.idx.Entry(manifest.ID, manifest.Version); exists {
		return index.PackageEntry{}, fmt.Errorf("%w: %s %s", ErrDuplicate, manifest.ID, manifest.Version)
	}

	dir := path.Join(manifest.ID, manifest.Version)
	fileName := fmt.Sprintf("%s.%s.nupkg", manifest.ID, manifest.Version)
	published := p.now().UTC()
	opts := store.PutOptions{ModTime: published}

	if _, err := p.files.WriteFile(ctx, path.Join(dir, fileName), bytes.NewReader(nupkg), opts); err != nil {
		return index.PackageEntry{}, p.abort(ctx, dir, fmt.Errorf("write nupkg: %w", err))
	}
	if _, err := p.files.WriteFile(ctx, path.Join(dir, manifest.ID+".nuspec"), bytes.NewReader(nuspecRaw), opts); err != nil {
		return index.PackageEntry{}, p.abort(ctx, dir, fmt.Errorf("write nuspec: %w", err))
	}

	if manifest.IconPath != "" {
		if err := p.extractIcon(ctx, nupkg, manifest.IconPath, dir, opts); err != nil {
			// 图标缺失不致命：包本体已经完整。
			p.logger.WithError(err).
				WithFields(logging.PackageFields("publish_icon", manifest.ID, manifest.Version)).
				Warn("icon extraction failed")
		}
	}

	meta := index.MetadataFromManifest(manifest, published)
	storage := index.Storage{Dir: dir, FileName: fileName}
	if err := p.idx.AddPackage(meta, storage); err != nil {
		return index.PackageEntry{}, p.abort(ctx, dir, err)
	}

	p.logger.WithFields(logging.PackageFields("publish", manifest.ID, manifest.Version)).
		Info("package published")

	return index.PackageEntry{Storage: storage, Metadata: meta}, nil
}

// abort 清理半成品目录，保证失败的发布不会留下可被扫描的残骸。
func (p *Publisher) abort(ctx context.Context, dir string, cause error) error {
	if err := p.files.RemoveDir(ctx, dir); err != nil {
		p.logger.WithError(err).WithField("dir", dir).Warn("publish cleanup failed")
	}
	return cause
}

// extractManifest 在 zip 中定位 .nuspec（约定位于包根）并解析。
func extractManifest(nupkg []byte) (*nuspec.Manifest, []byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(nupkg), int64(len(nupkg)))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: not a zip archive", ErrInvalidPackage)
	}

	for _, file := range reader.File {
		if strings.Contains(file.Name, "/") {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(file.Name), ".nuspec") {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: open nuspec: %v", ErrInvalidPackage, err)
		}
		var buf bytes.Buffer
		_, copyErr := buf.ReadFrom(rc)
		rc.Close()
		if copyErr != nil {
			return nil, nil, fmt.Errorf("%w: read nuspec: %v", ErrInvalidPackage, copyErr)
		}

		manifest, err := nuspec.Parse(bytes.NewReader(buf.Bytes()))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidPackage, err)
		}
		return manifest, buf.Bytes(), nil
	}

	return nil, nil, fmt.Errorf("%w: no nuspec found", ErrInvalidPackage)
}

// extractIcon 从 zip 中取出 manifest 声明的图标并写为 icon.{ext}。
func (p *Publisher) extractIcon(ctx context.Context, nupkg []byte, iconPath, dir string, opts store.PutOptions) error {
	reader, err := zip.NewReader(bytes.NewReader(nupkg), int64(len(nupkg)))
	if err != nil {
		return err
	}

	normalized := strings.ReplaceAll(iconPath, "\\", "/")
	for _, file := range reader.File {
		if !strings.EqualFold(file.Name, normalized) {
			continue
		}

		ext := strings.ToLower(strings.TrimPrefix(path.Ext(file.Name), "."))
		if ext == "" {
			return fmt.Errorf("icon %s has no extension", file.Name)
		}

		rc, err := file.Open()
		if err != nil {
			return err
		}
		defer rc.Close()

		_, err = p.files.WriteFile(ctx, path.Join(dir, "icon."+ext), rc, opts)
		return err
	}

	return fmt.Errorf("icon %s not present in archive", iconPath)
}

// validateIdentity 拒绝空值以及会破坏磁盘布局的 id/version。
func validateIdentity(id, version string) error {
	if id == "" || version == "" {
		return fmt.Errorf("%w: empty id or version", ErrInvalidPackage)
	}
	for _, part := range []string{id, version} {
		if strings.ContainsAny(part, "/\\") || part == "." || part == ".." {
			return fmt.Errorf("%w: unsafe id or version", ErrInvalidPackage)
		}
	}
	return nil
}
