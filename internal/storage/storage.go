package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotExist 表示目标对象不存在。
var ErrNotExist = errors.New("storage: object does not exist")

// Writer 定义对象存储写接口，支持流式写入。
type Writer interface {
	Write(ctx context.Context, key string, r io.Reader) (Location, error)
}

// Reader 定义对象存储读接口，支持流式读取。
type Reader interface {
	Read(ctx context.Context, key string) (io.ReadCloser, error)
}

// Deleter 删除单个对象。对象不存在时不返回错误。
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

// Lister 列出目录下的直接子文件，返回形如 "dir/name" 的相对 key。
// 目录不存在时返回空列表。
type Lister interface {
	List(ctx context.Context, dir string) ([]string, error)
}

// Storage 组合了读写、删除和列举能力的完整存储接口。
type Storage interface {
	Writer
	Reader
	Deleter
	Lister
	Exists(ctx context.Context, key string) (bool, error)
}

// Location 描述已经写入对象的可访问信息。
type Location struct {
	Path string
	URL  string
}
