package store

import (
	"context"
	"errors"
	"io"
	"time"
)

// Store 负责管理包文件的磁盘读写。磁盘布局遵循：
//
//	<PackagesRoot>/<id>/<version>/<id>.<version>.nupkg
//	<PackagesRoot>/<id>/<version>/<id>.nuspec
//	<PackagesRoot>/<id>/<version>/icon.<ext>      # 可选
//
// 目录与文件名保留发布时的原始大小写；协议面的小写形式由索引解析回来。
type Store interface {
	// Open 返回一个可流式读取的文件。不存在时返回 ErrNotFound。
	Open(ctx context.Context, relPath string) (*ReadResult, error)

	// Stat 返回文件信息而不打开正文。
	Stat(ctx context.Context, relPath string) (*Entry, error)

	// WriteFile 将内容写入相对路径。实现需通过临时文件 + fsync + rename
	// 保证写入原子且落盘，失败时清理临时文件。发布路径依赖这一点：
	// 文件必须先持久化，随后才允许进入索引。
	WriteFile(ctx context.Context, relPath string, body io.Reader, opts PutOptions) (*Entry, error)

	// RemoveDir 删除一个相对目录及其内容，用于发布失败后的清理。
	RemoveDir(ctx context.Context, relDir string) error

	// Root 返回包根目录的绝对路径，供启动扫描复用。
	Root() string
}

// PutOptions 控制写入过程中的可选属性。
type PutOptions struct {
	ModTime time.Time
}

// Entry 表示一次命中结果，包含绝对文件路径及文件信息。
type Entry struct {
	FilePath  string
	SizeBytes int64
	ModTime   time.Time
}

// ReadResult 组合 Entry 与正文 Reader，便于 handler 直接流式返回。
type ReadResult struct {
	Entry  Entry
	Reader io.ReadSeekCloser
}

// ErrNotFound 表示目标文件不存在。
var ErrNotFound = errors.New("package file not found")
