package fonts

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

var builtin = map[string][]byte{
	"go/regular":    goregular.TTF,
	"go/bold":       gobold.TTF,
	"go/italic":     goitalic.TTF,
	"go/bolditalic": gobolditalic.TTF,
	"go/mono":       gomono.TTF,
}

// Default 是找不到主题字体时使用的字体。
const Default = "go/regular"

// Load 返回内置字体的字节数据，path 可写为 "embed:go/bold" 或直接 "go/bold"。
func Load(path string) ([]byte, error) {
	key := strings.ToLower(strings.TrimPrefix(path, "embed:"))
	data, ok := builtin[key]
	if !ok {
		return nil, fmt.Errorf("内置字体 %s 不存在", path)
	}
	return data, nil
}

// Names 列出可用的内置字体。
func Names() []string {
	out := make([]string, 0, len(builtin))
	for k := range builtin {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
