package repository

import (
	"context"
	"fmt"
	"time"
)

// Location 是一组相册所在的地点。
type Location struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Album 是照片的容器，可选归属某个地点。
type Album struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Month      *int      `json:"month,omitempty"`
	Year       *int      `json:"year,omitempty"`
	LocationID *int64    `json:"location_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

var monthNames = [...]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// DateDisplay 返回 "December 2013"、"December"、"2013" 或空字符串。
func (a Album) DateDisplay() string {
	var month string
	if a.Month != nil && *a.Month >= 1 && *a.Month <= 12 {
		month = monthNames[*a.Month-1]
	}
	switch {
	case month != "" && a.Year != nil:
		return fmt.Sprintf("%s %d", month, *a.Year)
	case month != "":
		return month
	case a.Year != nil:
		return fmt.Sprintf("%d", *a.Year)
	default:
		return ""
	}
}

// Person 是可以被标记在照片上的人。
type Person struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Photo 是一张上传的照片，File 为存储 key。
type Photo struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	File      string    `json:"file"`
	AlbumID   int64     `json:"album_id"`
	PersonIDs []int64   `json:"person_ids,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Thumbnail 是照片在某个尺寸下的派生图，(PhotoID, Size) 唯一。
type Thumbnail struct {
	ID      int64  `json:"id"`
	PhotoID int64  `json:"photo_id"`
	Size    string `json:"size"`
	File    string `json:"file"`
}

// ObjectRef 指向动态流中的任意对象。
type ObjectRef struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Action 记录用户做过的一件事：<actor> <verb> [<object> [<join>]] [<target>]。
type Action struct {
	ID           int64      `json:"id"`
	Timestamp    time.Time  `json:"timestamp"`
	Actor        string     `json:"actor"`
	Verb         string     `json:"verb"`
	Join         string     `json:"join,omitempty"`
	Target       *ObjectRef `json:"target,omitempty"`
	ActionObject *ObjectRef `json:"action_object,omitempty"`
}

func (a Action) String() string {
	switch {
	case a.Target != nil && a.ActionObject != nil:
		return fmt.Sprintf("%s %s %s %s %s", a.Actor, a.Verb, a.ActionObject.Label, a.Join, a.Target.Label)
	case a.Target != nil:
		return fmt.Sprintf("%s %s %s", a.Actor, a.Verb, a.Target.Label)
	case a.ActionObject != nil:
		return fmt.Sprintf("%s %s %s", a.Actor, a.Verb, a.ActionObject.Label)
	default:
		return fmt.Sprintf("%s %s", a.Actor, a.Verb)
	}
}

// ListParams 用于分页检索。
type ListParams struct {
	Limit  int
	Offset int
}

// AlbumFilter 限定相册列表范围。
type AlbumFilter struct {
	LocationID *int64
}

// PhotoFilter 对应搜索参数：q 匹配照片名或相册名，其余为 ID 集合。
type PhotoFilter struct {
	Query       string
	AlbumIDs    []int64
	PersonIDs   []int64
	LocationIDs []int64
}

type LocationRepository interface {
	Create(ctx context.Context, name string) (*Location, error)
	GetByID(ctx context.Context, id int64) (*Location, error)
	List(ctx context.Context, params ListParams) ([]Location, error)
	Count(ctx context.Context) (int, error)
	Rename(ctx context.Context, id int64, name string) error
	Delete(ctx context.Context, id int64) error
}

type AlbumRepository interface {
	Create(ctx context.Context, album *Album) (*Album, error)
	GetByID(ctx context.Context, id int64) (*Album, error)
	List(ctx context.Context, filter AlbumFilter, params ListParams) ([]Album, error)
	Count(ctx context.Context, filter AlbumFilter) (int, error)
	Update(ctx context.Context, album *Album) error
	Delete(ctx context.Context, id int64) error
}

type PersonRepository interface {
	Create(ctx context.Context, name string) (*Person, error)
	GetByID(ctx context.Context, id int64) (*Person, error)
	List(ctx context.Context, params ListParams) ([]Person, error)
	Count(ctx context.Context) (int, error)
	Rename(ctx context.Context, id int64, name string) error
	Delete(ctx context.Context, id int64) error
}

type PhotoRepository interface {
	Create(ctx context.Context, photo *Photo) (*Photo, error)
	GetByID(ctx context.Context, id int64) (*Photo, error)
	List(ctx context.Context, filter PhotoFilter, params ListParams) ([]Photo, error)
	Count(ctx context.Context, filter PhotoFilter) (int, error)
	// IDsByName 返回按名称排序的全部照片 ID，用于计算上一张/下一张。
	IDsByName(ctx context.Context, filter PhotoFilter) ([]int64, error)
	Rename(ctx context.Context, id int64, name string) error
	Move(ctx context.Context, id, albumID int64) error
	MoveAll(ctx context.Context, fromAlbumID, toAlbumID int64) (int, error)
	SetPeople(ctx context.Context, id int64, personIDs []int64) error
	Delete(ctx context.Context, id int64) error
	FilePaths(ctx context.Context) ([]string, error)
}

type ThumbnailRepository interface {
	Create(ctx context.Context, thumb *Thumbnail) (*Thumbnail, error)
	GetByPhotoAndSize(ctx context.Context, photoID int64, size string) (*Thumbnail, error)
	ListByPhoto(ctx context.Context, photoID int64) ([]Thumbnail, error)
	FilePaths(ctx context.Context) ([]string, error)
}

type ActionRepository interface {
	Create(ctx context.Context, action *Action) (*Action, error)
	List(ctx context.Context, params ListParams) ([]Action, error)
	Count(ctx context.Context) (int, error)
	// DeleteByObject 删除 target 或 action_object 指向该对象的全部动态。
	DeleteByObject(ctx context.Context, objectType, objectID string) (int64, error)
}
