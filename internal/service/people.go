package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"gallery/internal/pagination"
	"gallery/internal/repository"
)

// PersonService 管理可被标记的人物。删除人物时只移除标记，照片保留。
type PersonService struct {
	repo   repository.PersonRepository
	photos *PhotoService
	stream *StreamService
	hooks  Hooks
	page   pagination.Options
	logger *slog.Logger
}

func NewPersonService(
	repo repository.PersonRepository,
	photos *PhotoService,
	stream *StreamService,
	hooks Hooks,
	page pagination.Options,
	logger *slog.Logger,
) *PersonService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersonService{repo: repo, photos: photos, stream: stream, hooks: hooks, page: page, logger: logger}
}

func (s *PersonService) Create(ctx context.Context, actor, name string) (*repository.Person, error) {
	if s == nil || s.repo == nil {
		return nil, notInitialized("person")
	}
	name = strings.TrimSpace(name)
	if err := validateStruct(nameInput{Name: name}); err != nil {
		return nil, err
	}
	person, err := s.repo.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	s.stream.Send(ctx, actor, "added the person", WithTarget(PersonRef(person)))
	return person, nil
}

func (s *PersonService) Get(ctx context.Context, id int64) (*repository.Person, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *PersonService) Rename(ctx context.Context, actor string, id int64, name string) (*repository.Person, error) {
	name = strings.TrimSpace(name)
	if err := validateStruct(nameInput{Name: name}); err != nil {
		return nil, err
	}
	if err := s.repo.Rename(ctx, id, name); err != nil {
		return nil, err
	}
	person, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.stream.Send(ctx, actor, "renamed the person", WithTarget(PersonRef(person)))
	return person, nil
}

func (s *PersonService) List(ctx context.Context, query url.Values) (*pagination.Page, []repository.Person, error) {
	if s == nil || s.repo == nil {
		return nil, nil, notInitialized("person")
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, nil, err
	}
	page, params, err := paginate(total, query, s.page)
	if err != nil {
		return nil, nil, err
	}
	people, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, nil, err
	}
	return page, people, nil
}

// Photos 分页列出标记了该人物的照片。
func (s *PersonService) Photos(ctx context.Context, id int64, query url.Values) (*repository.Person, *pagination.Page, []repository.Photo, error) {
	person, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	page, photos, err := s.photos.List(ctx, personFilter(id), query)
	if err != nil {
		return nil, nil, nil, err
	}
	return person, page, photos, nil
}

func (s *PersonService) Cover(ctx context.Context, id int64) (*repository.Photo, error) {
	return s.photos.Cover(ctx, personFilter(id))
}

func (s *PersonService) Delete(ctx context.Context, actor string, id int64) error {
	person, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	_ = s.hooks.Fire(ctx, s.logger, DeleteEvent{Type: TypePerson, ID: id})
	s.stream.Send(ctx, actor, fmt.Sprintf("removed the person %s", person.Name))
	return nil
}

func personFilter(id int64) repository.PhotoFilter {
	return repository.PhotoFilter{PersonIDs: []int64{id}}
}
