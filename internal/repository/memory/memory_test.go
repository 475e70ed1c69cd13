package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gallery/internal/repository"
)

func TestStore_AlbumDeleteCascades(t *testing.T) {
	ctx := context.Background()
	db := New()

	album, err := db.Albums().Create(ctx, &repository.Album{Name: "Summer"})
	require.NoError(t, err)
	photo, err := db.Photos().Create(ctx, &repository.Photo{Name: "beach", File: "photos/photo/a.jpg", AlbumID: album.ID})
	require.NoError(t, err)
	_, err = db.Thumbnails().Create(ctx, &repository.Thumbnail{PhotoID: photo.ID, Size: "thumb", File: "photos/thumbnail/a.jpg"})
	require.NoError(t, err)

	require.NoError(t, db.Albums().Delete(ctx, album.ID))

	_, err = db.Photos().GetByID(ctx, photo.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	thumbs, err := db.Thumbnails().FilePaths(ctx)
	require.NoError(t, err)
	assert.Empty(t, thumbs)
}

func TestStore_LocationDeleteKeepsAlbums(t *testing.T) {
	ctx := context.Background()
	db := New()

	loc, err := db.Locations().Create(ctx, "Coast")
	require.NoError(t, err)
	album, err := db.Albums().Create(ctx, &repository.Album{Name: "Summer", LocationID: &loc.ID})
	require.NoError(t, err)

	require.NoError(t, db.Locations().Delete(ctx, loc.ID))

	got, err := db.Albums().GetByID(ctx, album.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LocationID)
}

func TestStore_PersonDeleteRemovesTags(t *testing.T) {
	ctx := context.Background()
	db := New()

	album, _ := db.Albums().Create(ctx, &repository.Album{Name: "Summer"})
	ann, _ := db.People().Create(ctx, "Ann")
	bob, _ := db.People().Create(ctx, "Bob")
	photo, _ := db.Photos().Create(ctx, &repository.Photo{Name: "beach", AlbumID: album.ID})
	require.NoError(t, db.Photos().SetPeople(ctx, photo.ID, []int64{ann.ID, bob.ID}))

	require.NoError(t, db.People().Delete(ctx, ann.ID))

	got, err := db.Photos().GetByID(ctx, photo.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{bob.ID}, got.PersonIDs)
}

func TestStore_PhotoFilter(t *testing.T) {
	ctx := context.Background()
	db := New()

	loc, _ := db.Locations().Create(ctx, "Coast")
	summer, _ := db.Albums().Create(ctx, &repository.Album{Name: "Summer", LocationID: &loc.ID})
	winter, _ := db.Albums().Create(ctx, &repository.Album{Name: "Winter"})
	b, _ := db.Photos().Create(ctx, &repository.Photo{Name: "b", AlbumID: summer.ID})
	a, _ := db.Photos().Create(ctx, &repository.Photo{Name: "a", AlbumID: summer.ID})
	snow, _ := db.Photos().Create(ctx, &repository.Photo{Name: "snow", AlbumID: winter.ID})

	ids, err := db.Photos().IDsByName(ctx, repository.PhotoFilter{LocationIDs: []int64{loc.ID}})
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID, b.ID}, ids)

	// q 同时匹配相册名
	ids, err = db.Photos().IDsByName(ctx, repository.PhotoFilter{Query: "WINT"})
	require.NoError(t, err)
	assert.Equal(t, []int64{snow.ID}, ids)

	page, err := db.Photos().List(ctx, repository.PhotoFilter{}, repository.ListParams{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "snow", page[0].Name)
}

func TestStore_ActionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := New()
	album := &repository.ObjectRef{Type: "album", ID: "1", Label: "Summer"}

	_, _ = db.Actions().Create(ctx, &repository.Action{Actor: "tim", Verb: "created the album", Target: album})
	_, _ = db.Actions().Create(ctx, &repository.Action{Actor: "tim", Verb: "edited the album", Target: album})
	_, _ = db.Actions().Create(ctx, &repository.Action{Actor: "tim", Verb: "logged in"})

	actions, err := db.Actions().List(ctx, repository.ListParams{Limit: 10})
	require.NoError(t, err)
	require.Len(t, actions, 3)
	assert.Equal(t, "logged in", actions[0].Verb)

	n, err := db.Actions().DeleteByObject(ctx, "album", "1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	count, _ := db.Actions().Count(ctx)
	assert.Equal(t, 1, count)
}

func TestStore_RejectsMissingReferences(t *testing.T) {
	db := New()
	ctx := context.Background()

	album, err := db.Albums().Create(ctx, &repository.Album{Name: "Summer"})
	require.NoError(t, err)
	photo, err := db.Photos().Create(ctx, &repository.Photo{Name: "beach", AlbumID: album.ID})
	require.NoError(t, err)

	_, err = db.Photos().Create(ctx, &repository.Photo{Name: "lost", AlbumID: 999})
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.ErrorIs(t, db.Photos().Move(ctx, photo.ID, 12345), repository.ErrConflict)
	_, err = db.Photos().MoveAll(ctx, album.ID, 12345)
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.ErrorIs(t, db.Photos().SetPeople(ctx, photo.ID, []int64{77}), repository.ErrConflict)

	missing := int64(55)
	_, err = db.Albums().Create(ctx, &repository.Album{Name: "Winter", LocationID: &missing})
	assert.ErrorIs(t, err, repository.ErrConflict)
	album.LocationID = &missing
	assert.ErrorIs(t, db.Albums().Update(ctx, album), repository.ErrConflict)

	got, err := db.Photos().GetByID(ctx, photo.ID)
	require.NoError(t, err)
	assert.Equal(t, album.ID, got.AlbumID)
	assert.Empty(t, got.PersonIDs)
	count, err := db.Photos().Count(ctx, repository.PhotoFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
