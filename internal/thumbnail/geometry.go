package thumbnail

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// Mode 决定缩放方式。
type Mode string

const (
	// ModeFit 等比缩放到目标框以内。
	ModeFit Mode = "fit"
	// ModeCrop 等比缩放填满目标框后居中裁剪。
	ModeCrop Mode = "crop"
)

// Geometry 表示 "WxH-mode" 形式的目标尺寸，例如 "200x200-crop"。
type Geometry struct {
	Width  int
	Height int
	Mode   Mode
}

// ParseGeometry 解析 "200x200-fit" 这类字符串。
func ParseGeometry(raw string) (Geometry, error) {
	dims, mode, ok := strings.Cut(strings.TrimSpace(raw), "-")
	if !ok {
		return Geometry{}, fmt.Errorf("invalid geometry %q: missing mode", raw)
	}

	w, h, ok := strings.Cut(dims, "x")
	if !ok {
		return Geometry{}, fmt.Errorf("invalid geometry %q: expected WxH", raw)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return Geometry{}, fmt.Errorf("invalid geometry %q: bad width", raw)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return Geometry{}, fmt.Errorf("invalid geometry %q: bad height", raw)
	}

	switch Mode(mode) {
	case ModeFit, ModeCrop:
	default:
		return Geometry{}, fmt.Errorf("invalid geometry %q: unknown mode %q", raw, mode)
	}

	return Geometry{Width: width, Height: height, Mode: Mode(mode)}, nil
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d-%s", g.Width, g.Height, g.Mode)
}

// DerivedKey 根据源文件 key 和尺寸生成确定的缩略图 key。
// 同一源文件、同一尺寸总是得到相同的 key。
func DerivedKey(sourceKey string, g Geometry, dir string) string {
	base := path.Base(sourceKey)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return path.Join(dir, fmt.Sprintf("%s_%s%s", stem, g, strings.ToLower(ext)))
}
