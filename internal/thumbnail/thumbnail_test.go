package thumbnail

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"testing"

	"gallery/internal/storage/local"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGeometry(t *testing.T) {
	geo, err := ParseGeometry("200x200-fit")
	require.NoError(t, err)
	assert.Equal(t, Geometry{Width: 200, Height: 200, Mode: ModeFit}, geo)
	assert.Equal(t, "200x200-fit", geo.String())

	geo, err = ParseGeometry("1024x768-crop")
	require.NoError(t, err)
	assert.Equal(t, ModeCrop, geo.Mode)

	for _, bad := range []string{"", "200x200", "200-fit", "0x200-fit", "axb-fit", "200x200-stretch", "-1x5-crop"} {
		_, err := ParseGeometry(bad)
		assert.Error(t, err, bad)
	}
}

func TestDerivedKey_IsDeterministic(t *testing.T) {
	geo := Geometry{Width: 200, Height: 200, Mode: ModeCrop}
	a := DerivedKey("photos/photo/abc.JPG", geo, "photos/thumbnail")
	b := DerivedKey("photos/photo/abc.JPG", geo, "photos/thumbnail")
	assert.Equal(t, a, b)
	assert.Equal(t, "photos/thumbnail/abc_200x200-crop.jpg", a)

	other := DerivedKey("photos/photo/abc.JPG", Geometry{Width: 1024, Height: 1024, Mode: ModeFit}, "photos/thumbnail")
	assert.NotEqual(t, a, other)
}

func writeTestImage(t *testing.T, store *local.Store, key string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	_, err := store.Write(context.Background(), key, &buf)
	require.NoError(t, err)
}

func readSize(t *testing.T, store *local.Store, key string) (int, int) {
	t.Helper()
	rc, err := store.Read(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	img, err := imaging.Decode(rc)
	require.NoError(t, err)
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

func TestGenerator_Generate(t *testing.T) {
	store := local.New(t.TempDir(), "")
	writeTestImage(t, store, "photos/photo/wide.png", 400, 200)
	gen := NewGenerator(store, "photos/thumbnail", nil)

	key, err := gen.Generate(context.Background(), "photos/photo/wide.png", Geometry{Width: 100, Height: 100, Mode: ModeFit})
	require.NoError(t, err)
	assert.Equal(t, "photos/thumbnail/wide_100x100-fit.png", key)
	w, h := readSize(t, store, key)
	assert.Equal(t, 100, w)
	assert.Equal(t, 50, h)

	key, err = gen.Generate(context.Background(), "photos/photo/wide.png", Geometry{Width: 100, Height: 100, Mode: ModeCrop})
	require.NoError(t, err)
	w, h = readSize(t, store, key)
	assert.Equal(t, 100, w)
	assert.Equal(t, 100, h)
}

func TestGenerator_GenerateMissingSource(t *testing.T) {
	gen := NewGenerator(local.New(t.TempDir(), ""), "photos/thumbnail", nil)
	_, err := gen.Generate(context.Background(), "photos/photo/missing.jpg", Geometry{Width: 10, Height: 10, Mode: ModeFit})
	assert.Error(t, err)
}

func TestGenerator_Rotate(t *testing.T) {
	store := local.New(t.TempDir(), "")
	writeTestImage(t, store, "photos/photo/wide.png", 40, 20)
	gen := NewGenerator(store, "photos/thumbnail", nil)

	require.NoError(t, gen.Rotate(context.Background(), "photos/photo/wide.png"))
	w, h := readSize(t, store, "photos/photo/wide.png")
	assert.Equal(t, 20, w)
	assert.Equal(t, 40, h)
}
