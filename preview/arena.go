package preview

import (
	"image"

	"github.com/ByLCY/offerpress/offer"
)

// Arena 保存一份文档汇合后的栅格化结果，由 Collect 一次性填充，之后只读。
type Arena struct {
	keys     []string
	bitmaps  map[string]image.Image
	degraded []Degraded
}

func newArena(items []offer.LineItem) *Arena {
	return &Arena{
		keys:    ItemKeys(items),
		bitmaps: make(map[string]image.Image, len(items)),
	}
}

// Len 返回条目数量。
func (a *Arena) Len() int {
	if a == nil {
		return 0
	}
	return len(a.keys)
}

// Key 返回第 i 个条目的键。
func (a *Arena) Key(i int) string {
	if a == nil || i < 0 || i >= len(a.keys) {
		return ""
	}
	return a.keys[i]
}

// Get 按键查找位图。
func (a *Arena) Get(key string) (image.Image, bool) {
	if a == nil {
		return nil, false
	}
	img, ok := a.bitmaps[key]
	return img, ok
}

// At 返回第 i 个条目的位图，降级时为 nil。
func (a *Arena) At(i int) image.Image {
	img, _ := a.Get(a.Key(i))
	return img
}

// Degraded 按输入顺序列出没有预览的条目。
func (a *Arena) Degraded() []Degraded {
	if a == nil {
		return nil
	}
	return a.degraded
}
