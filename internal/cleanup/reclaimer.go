// Package cleanup 删除存储中已没有任何记录引用的孤儿文件。
//
// 每个 Target 绑定一个记录字段和一个存储目录。Reclaimer 假定该目录只存放
// 这一字段的文件；目录里的其他文件会被当作孤儿永久删除。运行期间不要有上传。
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gallery/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var filesDeleted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gallery_cleanup_files_deleted_total",
		Help: "Orphaned files removed from storage, by target",
	},
	[]string{"target"},
)

// ReferenceFunc 返回某个记录字段当前引用的全部文件 key。
type ReferenceFunc func(ctx context.Context) ([]string, error)

// Target 描述一次清理的范围：哪个字段的引用集合对应哪个目录。
type Target struct {
	Name       string
	Directory  string
	References ReferenceFunc
}

// Store 是清理需要的存储能力。
type Store interface {
	storage.Lister
	storage.Deleter
}

// Options 控制清理行为。
type Options struct {
	Verbose bool // 逐个记录被删除的路径
	DryRun  bool // 只统计不删除
}

// TargetReport 是单个 Target 的结果。
type TargetReport struct {
	Name    string   `json:"name"`
	Orphans []string `json:"orphans"`
	Deleted int      `json:"deleted"`
	Failed  int      `json:"failed"`
}

// Report 汇总一次运行的结果。
type Report struct {
	Targets []TargetReport `json:"targets"`
	Deleted int            `json:"deleted"`
	Failed  int            `json:"failed"`
}

// Reclaimer 计算 presence − reference 并删除差集。
type Reclaimer struct {
	store  Store
	logger *slog.Logger
	opts   Options
}

func NewReclaimer(store Store, logger *slog.Logger, opts Options) *Reclaimer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reclaimer{store: store, logger: logger, opts: opts}
}

// Run 依次处理每个 Target。单个文件删除失败只记录并继续，
// 所有失败在结束时合并返回；读取引用集合或目录失败则跳过该 Target。
func (r *Reclaimer) Run(ctx context.Context, targets ...Target) (Report, error) {
	var (
		report Report
		errs   []error
	)

	for _, target := range targets {
		tr, err := r.runTarget(ctx, target)
		report.Targets = append(report.Targets, tr)
		report.Deleted += tr.Deleted
		report.Failed += tr.Failed
		if err != nil {
			errs = append(errs, err)
		}
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
	}

	return report, errors.Join(errs...)
}

func (r *Reclaimer) runTarget(ctx context.Context, target Target) (TargetReport, error) {
	tr := TargetReport{Name: target.Name, Orphans: []string{}}
	if target.References == nil {
		return tr, fmt.Errorf("cleanup %s: no reference source", target.Name)
	}

	referenced, err := target.References(ctx)
	if err != nil {
		return tr, fmt.Errorf("cleanup %s: load references: %w", target.Name, err)
	}
	present, err := r.store.List(ctx, target.Directory)
	if err != nil {
		return tr, fmt.Errorf("cleanup %s: list %s: %w", target.Name, target.Directory, err)
	}

	tr.Orphans = Orphans(present, referenced)
	r.logger.Info("deleting orphaned files",
		slog.String("target", target.Name),
		slog.String("directory", target.Directory),
		slog.Int("count", len(tr.Orphans)),
		slog.Bool("dry_run", r.opts.DryRun),
	)
	if r.opts.DryRun {
		return tr, nil
	}

	var errs []error
	for _, key := range tr.Orphans {
		if err := ctx.Err(); err != nil {
			return tr, errors.Join(append(errs, err)...)
		}
		if r.opts.Verbose {
			r.logger.Info("delete", slog.String("target", target.Name), slog.String("path", key))
		}
		if err := r.store.Delete(ctx, key); err != nil {
			tr.Failed++
			r.logger.Error("delete orphaned file failed", slog.String("path", key), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
			continue
		}
		tr.Deleted++
		filesDeleted.WithLabelValues(target.Name).Inc()
	}

	return tr, errors.Join(errs...)
}

// Orphans 返回 present 中未出现在 referenced 里的 key，保持 present 的顺序。
func Orphans(present, referenced []string) []string {
	refs := make(map[string]struct{}, len(referenced))
	for _, key := range referenced {
		refs[key] = struct{}{}
	}

	out := []string{}
	seen := make(map[string]struct{}, len(present))
	for _, key := range present {
		if _, ok := refs[key]; ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
