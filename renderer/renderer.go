package renderer

import "github.com/ByLCY/offerpress/layout"

// Renderer 将布局结果输出为最终文件，例如 PDF。
// Render 返回生成的二进制数据以及可能的错误。
type Renderer interface {
	Render(result *layout.Result) ([]byte, error)
}

// Engine 同时负责测量文本与输出文件；排版与渲染必须使用同一套字体度量。
type Engine interface {
	Renderer
	layout.Typesetter
}
