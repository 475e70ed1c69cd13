package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"gallery/internal/repository"
	"gallery/internal/storage"
)

// DeleteEvent 描述一条已删除的记录及其占用的存储文件。
type DeleteEvent struct {
	Type  string
	ID    int64
	Files []string
}

// DeleteHook 在记录删除之后被同步调用。
type DeleteHook interface {
	AfterDelete(ctx context.Context, ev DeleteEvent) error
}

// DeleteHookFunc 让普通函数满足 DeleteHook。
type DeleteHookFunc func(ctx context.Context, ev DeleteEvent) error

func (f DeleteHookFunc) AfterDelete(ctx context.Context, ev DeleteEvent) error {
	return f(ctx, ev)
}

// Hooks 按注册顺序依次执行，某个 hook 失败不会阻止后续 hook。
type Hooks []DeleteHook

func (h Hooks) Fire(ctx context.Context, logger *slog.Logger, ev DeleteEvent) error {
	var errs []error
	for _, hook := range h {
		if err := hook.AfterDelete(ctx, ev); err != nil {
			logger.Warn("delete hook failed", "type", ev.Type, "id", ev.ID, "error", err)
			deleteHookFailures.Inc()
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FileJanitor 删除记录引用的存储文件。
type FileJanitor struct {
	store  storage.Deleter
	logger *slog.Logger
}

func NewFileJanitor(store storage.Deleter, logger *slog.Logger) *FileJanitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileJanitor{store: store, logger: logger}
}

func (j *FileJanitor) AfterDelete(ctx context.Context, ev DeleteEvent) error {
	var errs []error
	for _, key := range ev.Files {
		if key == "" {
			continue
		}
		if err := j.store.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
			continue
		}
		j.logger.Debug("file removed", "type", ev.Type, "id", ev.ID, "key", key)
	}
	return errors.Join(errs...)
}

// ActionPruner 删除 target 或 action_object 指向已删除记录的动态。
type ActionPruner struct {
	repo repository.ActionRepository
}

func NewActionPruner(repo repository.ActionRepository) *ActionPruner {
	return &ActionPruner{repo: repo}
}

func (p *ActionPruner) AfterDelete(ctx context.Context, ev DeleteEvent) error {
	if _, err := p.repo.DeleteByObject(ctx, ev.Type, strconv.FormatInt(ev.ID, 10)); err != nil {
		return fmt.Errorf("prune actions for %s %d: %w", ev.Type, ev.ID, err)
	}
	return nil
}
