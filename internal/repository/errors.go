package repository

import "errors"

var (
	// ErrNotFound 表示目标记录不存在。
	ErrNotFound = errors.New("repository: record not found")
	// ErrConflict 表示写入违反了外键或唯一约束，例如引用的相册已被并发删除。
	ErrConflict = errors.New("repository: constraint violation")
)
