package service

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"gallery/internal/pagination"
	"gallery/internal/repository"
)

// 动态流中对象的类型标识。
const (
	TypePhoto    = "photo"
	TypeAlbum    = "album"
	TypeLocation = "location"
	TypePerson   = "person"
)

func PhotoRef(p *repository.Photo) *repository.ObjectRef {
	return &repository.ObjectRef{Type: TypePhoto, ID: strconv.FormatInt(p.ID, 10), Label: p.Name}
}

func AlbumRef(a *repository.Album) *repository.ObjectRef {
	return &repository.ObjectRef{Type: TypeAlbum, ID: strconv.FormatInt(a.ID, 10), Label: a.Name}
}

func LocationRef(l *repository.Location) *repository.ObjectRef {
	return &repository.ObjectRef{Type: TypeLocation, ID: strconv.FormatInt(l.ID, 10), Label: l.Name}
}

func PersonRef(p *repository.Person) *repository.ObjectRef {
	return &repository.ObjectRef{Type: TypePerson, ID: strconv.FormatInt(p.ID, 10), Label: p.Name}
}

// ActionOption 为动态补充 target、action_object 或连接词。
type ActionOption func(*repository.Action)

func WithTarget(ref *repository.ObjectRef) ActionOption {
	return func(a *repository.Action) { a.Target = ref }
}

func WithObject(ref *repository.ObjectRef) ActionOption {
	return func(a *repository.Action) { a.ActionObject = ref }
}

func WithJoin(join string) ActionOption {
	return func(a *repository.Action) { a.Join = join }
}

// StreamService 记录并列出用户动态。
type StreamService struct {
	repo   repository.ActionRepository
	page   pagination.Options
	logger *slog.Logger
	now    func() time.Time
}

func NewStreamService(repo repository.ActionRepository, page pagination.Options, logger *slog.Logger) *StreamService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamService{repo: repo, page: page, logger: logger, now: time.Now}
}

// Send 记录一条动态。写入失败只记录日志，不影响主流程。
func (s *StreamService) Send(ctx context.Context, actor, verb string, opts ...ActionOption) {
	if s == nil || s.repo == nil {
		return
	}
	action := &repository.Action{
		Timestamp: s.now().UTC(),
		Actor:     actor,
		Verb:      verb,
	}
	for _, opt := range opts {
		opt(action)
	}
	if action.Actor == "" {
		action.Actor = "anonymous"
	}
	if _, err := s.repo.Create(ctx, action); err != nil {
		s.logger.Error("record action failed", "verb", verb, "error", err)
	}
}

// List 按时间倒序分页列出动态。
func (s *StreamService) List(ctx context.Context, query url.Values) (*pagination.Page, []repository.Action, error) {
	if s == nil || s.repo == nil {
		return nil, nil, notInitialized("stream")
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, nil, err
	}
	page, params, err := paginate(total, query, s.page)
	if err != nil {
		return nil, nil, err
	}
	actions, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, nil, err
	}
	return page, actions, nil
}
