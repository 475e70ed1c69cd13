// Package memory 提供进程内的仓储实现，用于开发模式（DB_DRIVER=memory）和测试。
// 级联规则与数据库外键一致：删除相册删除其照片，删除地点只置空相册的 location_id。
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gallery/internal/repository"
)

// Store 是进程内的数据库，各仓储共享同一份数据。
type Store struct {
	mu        sync.Mutex
	nextID    int64
	locations map[int64]repository.Location
	albums    map[int64]repository.Album
	people    map[int64]repository.Person
	photos    map[int64]repository.Photo
	thumbs    map[int64]repository.Thumbnail
	actions   []repository.Action
}

// New 创建一个空的内存库。
func New() *Store {
	return &Store{
		locations: map[int64]repository.Location{},
		albums:    map[int64]repository.Album{},
		people:    map[int64]repository.Person{},
		photos:    map[int64]repository.Photo{},
		thumbs:    map[int64]repository.Thumbnail{},
	}
}

// 以下 check 方法在持有锁时调用，对应数据库的外键约束。
func (db *Store) checkAlbum(id int64) error {
	if _, ok := db.albums[id]; !ok {
		return fmt.Errorf("%w: album %d does not exist", repository.ErrConflict, id)
	}
	return nil
}

func (db *Store) checkLocation(id *int64) error {
	if id == nil {
		return nil
	}
	if _, ok := db.locations[*id]; !ok {
		return fmt.Errorf("%w: location %d does not exist", repository.ErrConflict, *id)
	}
	return nil
}

func (db *Store) checkPeople(ids []int64) error {
	for _, id := range ids {
		if _, ok := db.people[id]; !ok {
			return fmt.Errorf("%w: person %d does not exist", repository.ErrConflict, id)
		}
	}
	return nil
}

func (db *Store) Locations() repository.LocationRepository { return locationRepo{db} }
func (db *Store) People() repository.PersonRepository { return personRepo{db} }
func (db *Store) Albums() repository.AlbumRepository { return albumRepo{db} }
func (db *Store) Photos() repository.PhotoRepository { return photoRepo{db} }
func (db *Store) Thumbnails() repository.ThumbnailRepository { return thumbnailRepo{db} }
func (db *Store) Actions() repository.ActionRepository { return actionRepo{db} }

func (db *Store) id() int64 {
	db.nextID++
	return db.nextID
}

func window[T any](items []T, params repository.ListParams) []T {
	if params.Offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if params.Limit > 0 && params.Offset+params.Limit < end {
		end = params.Offset + params.Limit
	}
	return items[params.Offset:end]
}

// locations

type locationRepo struct{ db *Store }

func (r locationRepo) Create(ctx context.Context, name string) (*repository.Location, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	loc := repository.Location{ID: r.db.id(), Name: name, CreatedAt: time.Now()}
	r.db.locations[loc.ID] = loc
	return &loc, nil
}

func (r locationRepo) GetByID(ctx context.Context, id int64) (*repository.Location, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	loc, ok := r.db.locations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &loc, nil
}

func (r locationRepo) List(ctx context.Context, params repository.ListParams) ([]repository.Location, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]repository.Location, 0, len(r.db.locations))
	for _, loc := range r.db.locations {
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return window(out, params), nil
}

func (r locationRepo) Count(ctx context.Context) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return len(r.db.locations), nil
}

func (r locationRepo) Rename(ctx context.Context, id int64, name string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	loc, ok := r.db.locations[id]
	if !ok {
		return repository.ErrNotFound
	}
	loc.Name = name
	r.db.locations[id] = loc
	return nil
}

func (r locationRepo) Delete(ctx context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.locations[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.db.locations, id)
	for aid, album := range r.db.albums {
		if album.LocationID != nil && *album.LocationID == id {
			album.LocationID = nil
			r.db.albums[aid] = album
		}
	}
	return nil
}

// people

type personRepo struct{ db *Store }

func (r personRepo) Create(ctx context.Context, name string) (*repository.Person, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p := repository.Person{ID: r.db.id(), Name: name, CreatedAt: time.Now()}
	r.db.people[p.ID] = p
	return &p, nil
}

func (r personRepo) GetByID(ctx context.Context, id int64) (*repository.Person, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.people[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r personRepo) List(ctx context.Context, params repository.ListParams) ([]repository.Person, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]repository.Person, 0, len(r.db.people))
	for _, p := range r.db.people {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return window(out, params), nil
}

func (r personRepo) Count(ctx context.Context) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return len(r.db.people), nil
}

func (r personRepo) Rename(ctx context.Context, id int64, name string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.people[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Name = name
	r.db.people[id] = p
	return nil
}

func (r personRepo) Delete(ctx context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.people[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.db.people, id)
	for pid, photo := range r.db.photos {
		kept := photo.PersonIDs[:0:0]
		for _, tagged := range photo.PersonIDs {
			if tagged != id {
				kept = append(kept, tagged)
			}
		}
		photo.PersonIDs = kept
		r.db.photos[pid] = photo
	}
	return nil
}

// albums

type albumRepo struct{ db *Store }

func (r albumRepo) Create(ctx context.Context, album *repository.Album) (*repository.Album, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.checkLocation(album.LocationID); err != nil {
		return nil, err
	}
	a := *album
	a.ID = r.db.id()
	a.CreatedAt = time.Now()
	r.db.albums[a.ID] = a
	return &a, nil
}

func (r albumRepo) GetByID(ctx context.Context, id int64) (*repository.Album, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.albums[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r albumRepo) filtered(filter repository.AlbumFilter) []repository.Album {
	out := []repository.Album{}
	for _, a := range r.db.albums {
		if filter.LocationID != nil && (a.LocationID == nil || *a.LocationID != *filter.LocationID) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r albumRepo) List(ctx context.Context, filter repository.AlbumFilter, params repository.ListParams) ([]repository.Album, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return window(r.filtered(filter), params), nil
}

func (r albumRepo) Count(ctx context.Context, filter repository.AlbumFilter) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return len(r.filtered(filter)), nil
}

func (r albumRepo) Update(ctx context.Context, album *repository.Album) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.albums[album.ID]; !ok {
		return repository.ErrNotFound
	}
	if err := r.db.checkLocation(album.LocationID); err != nil {
		return err
	}
	r.db.albums[album.ID] = *album
	return nil
}

func (r albumRepo) Delete(ctx context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.albums[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.db.albums, id)
	for pid, photo := range r.db.photos {
		if photo.AlbumID == id {
			r.db.deletePhotoLocked(pid)
		}
	}
	return nil
}

// photos

type photoRepo struct{ db *Store }

func (db *Store) deletePhotoLocked(id int64) {
	delete(db.photos, id)
	for tid, thumb := range db.thumbs {
		if thumb.PhotoID == id {
			delete(db.thumbs, tid)
		}
	}
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (db *Store) matches(photo repository.Photo, filter repository.PhotoFilter) bool {
	album := db.albums[photo.AlbumID]
	if q := strings.ToLower(filter.Query); q != "" {
		if !strings.Contains(strings.ToLower(photo.Name), q) && !strings.Contains(strings.ToLower(album.Name), q) {
			return false
		}
	}
	if len(filter.AlbumIDs) > 0 && !containsID(filter.AlbumIDs, photo.AlbumID) {
		return false
	}
	if len(filter.PersonIDs) > 0 {
		found := false
		for _, pid := range photo.PersonIDs {
			if containsID(filter.PersonIDs, pid) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(filter.LocationIDs) > 0 && (album.LocationID == nil || !containsID(filter.LocationIDs, *album.LocationID)) {
		return false
	}
	return true
}

func (r photoRepo) filtered(filter repository.PhotoFilter) []repository.Photo {
	out := []repository.Photo{}
	for _, p := range r.db.photos {
		if r.db.matches(p, filter) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r photoRepo) Create(ctx context.Context, photo *repository.Photo) (*repository.Photo, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.checkAlbum(photo.AlbumID); err != nil {
		return nil, err
	}
	if err := r.db.checkPeople(photo.PersonIDs); err != nil {
		return nil, err
	}
	p := *photo
	p.ID = r.db.id()
	p.CreatedAt = time.Now()
	r.db.photos[p.ID] = p
	return &p, nil
}

func (r photoRepo) GetByID(ctx context.Context, id int64) (*repository.Photo, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.photos[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r photoRepo) List(ctx context.Context, filter repository.PhotoFilter, params repository.ListParams) ([]repository.Photo, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return window(r.filtered(filter), params), nil
}

func (r photoRepo) Count(ctx context.Context, filter repository.PhotoFilter) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return len(r.filtered(filter)), nil
}

func (r photoRepo) IDsByName(ctx context.Context, filter repository.PhotoFilter) ([]int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	ids := []int64{}
	for _, p := range r.filtered(filter) {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func (r photoRepo) update(id int64, fn func(*repository.Photo) error) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.photos[id]
	if !ok {
		return repository.ErrNotFound
	}
	if err := fn(&p); err != nil {
		return err
	}
	r.db.photos[id] = p
	return nil
}

func (r photoRepo) Rename(ctx context.Context, id int64, name string) error {
	return r.update(id, func(p *repository.Photo) error {
		p.Name = name
		return nil
	})
}

func (r photoRepo) Move(ctx context.Context, id, albumID int64) error {
	return r.update(id, func(p *repository.Photo) error {
		if err := r.db.checkAlbum(albumID); err != nil {
			return err
		}
		p.AlbumID = albumID
		return nil
	})
}

func (r photoRepo) MoveAll(ctx context.Context, fromAlbumID, toAlbumID int64) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.checkAlbum(toAlbumID); err != nil {
		return 0, err
	}
	n := 0
	for id, p := range r.db.photos {
		if p.AlbumID == fromAlbumID {
			p.AlbumID = toAlbumID
			r.db.photos[id] = p
			n++
		}
	}
	return n, nil
}

func (r photoRepo) SetPeople(ctx context.Context, id int64, personIDs []int64) error {
	return r.update(id, func(p *repository.Photo) error {
		if err := r.db.checkPeople(personIDs); err != nil {
			return err
		}
		p.PersonIDs = append([]int64(nil), personIDs...)
		return nil
	})
}

func (r photoRepo) Delete(ctx context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.photos[id]; !ok {
		return repository.ErrNotFound
	}
	r.db.deletePhotoLocked(id)
	return nil
}

func (r photoRepo) FilePaths(ctx context.Context) ([]string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []string{}
	for _, p := range r.db.photos {
		out = append(out, p.File)
	}
	sort.Strings(out)
	return out, nil
}

// thumbnails

type thumbnailRepo struct{ db *Store }

func (r thumbnailRepo) Create(ctx context.Context, thumb *repository.Thumbnail) (*repository.Thumbnail, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, existing := range r.db.thumbs {
		if existing.PhotoID == thumb.PhotoID && existing.Size == thumb.Size {
			existing.File = thumb.File
			r.db.thumbs[id] = existing
			return &existing, nil
		}
	}
	t := *thumb
	t.ID = r.db.id()
	r.db.thumbs[t.ID] = t
	return &t, nil
}

func (r thumbnailRepo) GetByPhotoAndSize(ctx context.Context, photoID int64, size string) (*repository.Thumbnail, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, t := range r.db.thumbs {
		if t.PhotoID == photoID && t.Size == size {
			return &t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r thumbnailRepo) ListByPhoto(ctx context.Context, photoID int64) ([]repository.Thumbnail, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []repository.Thumbnail{}
	for _, t := range r.db.thumbs {
		if t.PhotoID == photoID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Size < out[j].Size })
	return out, nil
}

func (r thumbnailRepo) FilePaths(ctx context.Context) ([]string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []string{}
	for _, t := range r.db.thumbs {
		out = append(out, t.File)
	}
	sort.Strings(out)
	return out, nil
}

// actions

type actionRepo struct{ db *Store }

func (r actionRepo) Create(ctx context.Context, action *repository.Action) (*repository.Action, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a := *action
	a.ID = r.db.id()
	r.db.actions = append(r.db.actions, a)
	return &a, nil
}

func (r actionRepo) List(ctx context.Context, params repository.ListParams) ([]repository.Action, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]repository.Action, len(r.db.actions))
	for i, a := range r.db.actions {
		out[len(out)-1-i] = a
	}
	return window(out, params), nil
}

func (r actionRepo) Count(ctx context.Context) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return len(r.db.actions), nil
}

func (r actionRepo) DeleteByObject(ctx context.Context, objectType, objectID string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	refers := func(ref *repository.ObjectRef) bool {
		return ref != nil && ref.Type == objectType && ref.ID == objectID
	}
	kept := r.db.actions[:0]
	var n int64
	for _, a := range r.db.actions {
		if refers(a.Target) || refers(a.ActionObject) {
			n++
			continue
		}
		kept = append(kept, a)
	}
	r.db.actions = kept
	return n, nil
}
