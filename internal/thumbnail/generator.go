package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"

	"gallery/internal/storage"

	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	thumbnailsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_thumbnails_generated_total",
			Help: "Number of thumbnails rendered, by geometry",
		},
		[]string{"geometry"},
	)

	imagesRotated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gallery_images_rotated_total",
		Help: "Number of stored images rotated in place",
	})
)

// Store 是生成器需要的存储能力。
type Store interface {
	storage.Reader
	storage.Writer
}

// Generator 从存储读取原图并写回派生图。
type Generator struct {
	store  Store
	dir    string
	logger *slog.Logger
}

// NewGenerator 创建生成器，派生文件写入 dir 目录。
func NewGenerator(store Store, dir string, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{store: store, dir: dir, logger: logger}
}

// Dir 返回派生文件所在目录。
func (g *Generator) Dir() string {
	return g.dir
}

// Generate 渲染 sourceKey 在指定尺寸下的缩略图，返回派生文件的 key。
func (g *Generator) Generate(ctx context.Context, sourceKey string, geo Geometry) (string, error) {
	src, err := g.load(ctx, sourceKey)
	if err != nil {
		return "", err
	}

	dst := Resize(src, geo)
	key := DerivedKey(sourceKey, geo, g.dir)
	if err := g.save(ctx, key, dst); err != nil {
		return "", err
	}

	thumbnailsGenerated.WithLabelValues(geo.String()).Inc()
	g.logger.Debug("thumbnail generated",
		slog.String("source", sourceKey),
		slog.String("geometry", geo.String()),
		slog.String("key", key),
	)
	return key, nil
}

// Rotate 将存储中的图片顺时针旋转 90 度并原地覆盖。
func (g *Generator) Rotate(ctx context.Context, key string) error {
	img, err := g.load(ctx, key)
	if err != nil {
		return err
	}
	if err := g.save(ctx, key, imaging.Rotate270(img)); err != nil {
		return err
	}
	imagesRotated.Inc()
	return nil
}

// Resize 按几何参数缩放图片。
func Resize(img image.Image, geo Geometry) image.Image {
	if geo.Mode == ModeCrop {
		return imaging.Fill(img, geo.Width, geo.Height, imaging.Center, imaging.Lanczos)
	}
	return imaging.Fit(img, geo.Width, geo.Height, imaging.Lanczos)
}

func (g *Generator) load(ctx context.Context, key string) (image.Image, error) {
	rc, err := g.store.Read(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", key, err)
	}
	defer rc.Close()

	img, err := imaging.Decode(rc, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", key, err)
	}
	return img, nil
}

func (g *Generator) save(ctx context.Context, key string, img image.Image) error {
	format, err := imaging.FormatFromFilename(key)
	if err != nil {
		// raw 等无法直接编码的格式统一输出 JPEG
		format = imaging.JPEG
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(90)); err != nil {
		return fmt.Errorf("encode image %s: %w", key, err)
	}
	if _, err := g.store.Write(ctx, key, &buf); err != nil {
		return fmt.Errorf("write image %s: %w", key, err)
	}
	return nil
}
