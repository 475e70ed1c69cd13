// Package pagination 将有序集合切分为固定大小的页，并生成保留其他查询参数的上一页/下一页链接。
package pagination

import (
	"errors"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// DefaultPageParam 是页码使用的查询参数名。
const DefaultPageParam = "p"

// ErrPageNotFound 表示请求的页码超出范围，HTTP 层映射为 404。
var ErrPageNotFound = errors.New("pagination: page not found")

// Options 控制分页行为。
type Options struct {
	PageSize            int
	PageParam           string
	AllowEmptyFirstPage bool
}

// Page 描述当前页以及相邻页的链接信息。
type Page struct {
	Number        int    `json:"number"`
	Size          int    `json:"size"`
	TotalItems    int    `json:"total_items"`
	TotalPages    int    `json:"total_pages"`
	HasPrevious   bool   `json:"has_previous"`
	HasNext       bool   `json:"has_next"`
	PreviousQuery string `json:"previous_query,omitempty"`
	NextQuery     string `json:"next_query,omitempty"`
}

// New 根据总条目数和请求参数计算页描述。
// 页码缺失、非数字或小于 1 时按第 1 页处理。
func New(total int, query url.Values, opts Options) (*Page, error) {
	if opts.PageSize <= 0 {
		return nil, errors.New("pagination: page size must be positive")
	}
	if total < 0 {
		total = 0
	}
	param := opts.PageParam
	if param == "" {
		param = DefaultPageParam
	}

	number := ParseNumber(query.Get(param))
	pages := TotalPages(total, opts.PageSize)

	if number > pages {
		if !(number == 1 && total == 0 && opts.AllowEmptyFirstPage) {
			return nil, ErrPageNotFound
		}
	}

	p := &Page{
		Number:     number,
		Size:       opts.PageSize,
		TotalItems: total,
		TotalPages: pages,
	}
	if number > 1 {
		p.HasPrevious = true
		p.PreviousQuery = buildQuery(query, param, number-1)
	}
	if number < pages {
		p.HasNext = true
		p.NextQuery = buildQuery(query, param, number+1)
	}
	return p, nil
}

// ParseNumber 解析页码，非数字或小于 1 视为第 1 页。
// 超出 int 范围的正数返回 math.MaxInt，由 New 判定为页不存在。
func ParseNumber(raw string) int {
	raw = strings.TrimSpace(raw)
	n, err := strconv.Atoi(raw)
	if errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(raw, "-") {
		return math.MaxInt
	}
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// TotalPages 向上取整计算总页数。
func TotalPages(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// Offset 返回当前页首条记录的偏移量。
func (p *Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// Limit 返回每页条目数。
func (p *Page) Limit() int {
	return p.Size
}

// Slice 截取 items 中属于当前页的部分，保持原有顺序。
func Slice[T any](items []T, p *Page) []T {
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// Paginate 对内存中的集合分页。
func Paginate[T any](items []T, query url.Values, opts Options) (*Page, []T, error) {
	p, err := New(len(items), query, opts)
	if err != nil {
		return nil, nil, err
	}
	return p, Slice(items, p), nil
}

// buildQuery 把页码参数放在最前，其余参数按键名排序原样保留。
func buildQuery(query url.Values, param string, number int) string {
	rest := make(url.Values, len(query))
	for key, values := range query {
		if key == param {
			continue
		}
		rest[key] = append([]string(nil), values...)
	}

	head := url.QueryEscape(param) + "=" + strconv.Itoa(number)
	if encoded := rest.Encode(); encoded != "" {
		return head + "&" + encoded
	}
	return head
}
