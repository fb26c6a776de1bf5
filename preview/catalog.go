package preview

import "sort"

// ViewBox 是目录路径所在正方形坐标系的边长，Y 轴向下。
const ViewBox = 100.0

// WindowType 是窗型目录中的一项。
type WindowType struct {
	Key   string
	Label string
	// Path 是 ViewBox×ViewBox 正方形内窗框的 SVG 路径。
	Path string
}

// 外框 + 内框，所有类型共用。
const framePath = "M0 0H100V100H0Z M6 6H94V94H6Z"

var catalog = map[string]WindowType{
	"design1":     {Key: "design1", Label: "Design 1", Path: framePath + " M50 6V94"},
	"design2":     {Key: "design2", Label: "Design 2", Path: framePath + " M6 30H94 M50 30V94"},
	"single_hung": {Key: "single_hung", Label: "Single Hung", Path: framePath + " M6 50H94"},
	"double_hung": {Key: "double_hung", Label: "Double Hung", Path: framePath + " M6 48H94 M6 52H94"},
	"casement":    {Key: "casement", Label: "Casement", Path: framePath + " M94 6L6 50L94 94"},
	"awning":      {Key: "awning", Label: "Awning", Path: framePath + " M6 94L50 6L94 94"},
	"hopper":      {Key: "hopper", Label: "Hopper", Path: framePath + " M6 6L50 94L94 6"},
	"sliding":     {Key: "sliding", Label: "Sliding", Path: framePath + " M48 6V94 M52 6V94"},
	"fixed":       {Key: "fixed", Label: "Fixed", Path: framePath},
	"bay":         {Key: "bay", Label: "Bay", Path: framePath + " M30 6V94 M70 6V94"},
	"bow":         {Key: "bow", Label: "Bow", Path: framePath + " M25 6V94 M50 6V94 M75 6V94"},
	"picture":     {Key: "picture", Label: "Picture", Path: framePath + " M14 14H86V86H14Z"},
}

// LookupWindowType 按 key 查找目录项。
func LookupWindowType(key string) (WindowType, bool) {
	wt, ok := catalog[key]
	return wt, ok
}

// WindowTypes 按 key 排序返回整个目录。
func WindowTypes() []WindowType {
	out := make([]WindowType, 0, len(catalog))
	for _, wt := range catalog {
		out = append(out, wt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
