package cleanup

import (
	"fmt"
	"sort"
	"strings"
)

// Spec 是配置中声明的 (记录类型, 字段, 目录) 三元组。
type Spec struct {
	Model     string
	Field     string
	Directory string
}

func (s Spec) key() string {
	return strings.ToLower(s.Model) + "." + strings.ToLower(s.Field)
}

// Registry 把 "model.field" 映射到对应的引用集合来源。
type Registry map[string]ReferenceFunc

// Resolve 将配置里的三元组转换为可执行的 Target。
// 未注册的字段或空目录视为配置错误。
func (reg Registry) Resolve(specs []Spec) ([]Target, error) {
	targets := make([]Target, 0, len(specs))
	for _, spec := range specs {
		if strings.TrimSpace(spec.Directory) == "" {
			return nil, fmt.Errorf("cleanup target %s: directory is required", spec.key())
		}
		refs, ok := reg[spec.key()]
		if !ok {
			return nil, fmt.Errorf("cleanup target %s: unknown field (known: %s)", spec.key(), strings.Join(reg.names(), ", "))
		}
		targets = append(targets, Target{
			Name:       spec.key(),
			Directory:  spec.Directory,
			References: refs,
		})
	}
	return targets, nil
}

func (reg Registry) names() []string {
	names := make([]string, 0, len(reg))
	for name := range reg {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
