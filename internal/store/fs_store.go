package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// NewStore 以 packagesRoot 为根目录构建文件存储，整个进程复用一份实例。
func NewStore(packagesRoot string) (Store, error) {
	if packagesRoot == "" {
		return nil, errors.New("packages root required")
	}

	abs, err := filepath.Abs(packagesRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve packages root: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create packages root: %w", err)
	}

	return &fileStore{basePath: abs}, nil
}

type fileStore struct {
	basePath string
}

func (s *fileStore) Root() string {
	return s.basePath
}

func (s *fileStore) Open(ctx context.Context, relPath string) (*ReadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry, err := s.Stat(ctx, relPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(entry.FilePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &ReadResult{Entry: *entry, Reader: f}, nil
}

func (s *fileStore) Stat(ctx context.Context, relPath string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filePath, err := s.entryPath(relPath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	return &Entry{
		FilePath:  filePath,
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
	}, nil
}

func (s *fileStore) WriteFile(ctx context.Context, relPath string, body io.Reader, opts PutOptions) (*Entry, error) {
	filePath, err := s.entryPath(relPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, err
	}

	tempFile, err := os.CreateTemp(filepath.Dir(filePath), ".pkg-*")
	if err != nil {
		return nil, err
	}
	tempName := tempFile.Name()

	written, err := copyWithContext(ctx, tempFile, body)
	if err == nil {
		// rename 前必须 fsync：索引只收录已持久化的文件。
		err = tempFile.Sync()
	}
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return nil, err
	}

	if err := os.Rename(tempName, filePath); err != nil {
		os.Remove(tempName)
		return nil, err
	}

	modTime := opts.ModTime
	if modTime.IsZero() {
		modTime = time.Now().UTC()
	}
	if err := os.Chtimes(filePath, modTime, modTime); err != nil {
		return nil, err
	}

	return &Entry{
		FilePath:  filePath,
		SizeBytes: written,
		ModTime:   modTime,
	}, nil
}

func (s *fileStore) RemoveDir(ctx context.Context, relDir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dirPath, err := s.entryPath(relDir)
	if err != nil {
		return err
	}
	if dirPath == s.basePath {
		return errors.New("refusing to remove packages root")
	}
	if err := os.RemoveAll(dirPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// entryPath 将 URL 风格的相对路径映射到根目录下，并防止路径穿越。
func (s *fileStore) entryPath(relPath string) (string, error) {
	rel := path.Clean("/" + strings.TrimSpace(relPath))
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" || rel == "." {
		return "", errors.New("invalid package path")
	}

	filePath := filepath.Join(s.basePath, filepath.FromSlash(rel))
	if filePath != s.basePath && !strings.HasPrefix(filePath, s.basePath+string(os.PathSeparator)) {
		return "", errors.New("invalid package path")
	}
	return filePath, nil
}

// copyWithContext 以 32KiB 为单位搬运数据，每个块边界检查一次取消信号。
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}

// CopyWithContext 暴露同一个分块拷贝循环给流式下载 handler 使用，
// 保证取消信号在一个块间隔内被观察到。
func CopyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	return copyWithContext(ctx, dst, src)
}
