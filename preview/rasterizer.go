// Package preview 把报价条目转换成固定尺寸的预览位图。
//
// 栅格化是渲染中唯一的并发步骤：Collect 为每个条目发起一次请求，全部返回后
// 按条目 id 存入 Arena。失败、空结果、panic 或超时都降级为无预览，不会让渲染失败。
package preview

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ByLCY/offerpress/offer"
)

var (
	// ErrNoBitmap 表示后端既没有返回位图也没有返回错误。
	ErrNoBitmap = errors.New("preview: rasterizer returned no bitmap")
	// ErrTimeout 表示后端未能按时返回。
	ErrTimeout = errors.New("preview: rasterizer timed out")
	// ErrNoRasterizer 表示未配置后端，所有条目都会记录该错误。
	ErrNoRasterizer = errors.New("preview: no rasterizer configured")
)

// DefaultTimeout 是未设置 Options.Timeout 时单次请求的上限。
const DefaultTimeout = 5 * time.Second

// Rasterizer 将条目图形转换为位图，返回 nil 位图表示没有预览。
type Rasterizer interface {
	Rasterize(ctx context.Context, item offer.LineItem) (image.Image, error)
}

// RasterizerFunc 将普通函数适配为 Rasterizer。
type RasterizerFunc func(ctx context.Context, item offer.LineItem) (image.Image, error)

func (f RasterizerFunc) Rasterize(ctx context.Context, item offer.LineItem) (image.Image, error) {
	return f(ctx, item)
}

// Options 限定并发请求。
type Options struct {
	// Timeout 作用于单次请求，<= 0 时使用 DefaultTimeout。
	Timeout time.Duration
	// Concurrency 限制同时进行的请求数，<= 0 表示不限。
	Concurrency int
	Logger      *zap.Logger
}

// Degraded 记录一个没有预览的条目。
type Degraded struct {
	Index int
	Key   string
	Err   error
}

func (d Degraded) Error() string {
	return fmt.Sprintf("preview %s (line %d): %v", d.Key, d.Index+1, d.Err)
}

func (d Degraded) Unwrap() error { return d.Err }

type outcome struct {
	img image.Image
	err error
}

// Collect 并发栅格化所有条目并按输入顺序汇合结果。它不返回错误，失败项见 Arena.Degraded。
func Collect(ctx context.Context, items []offer.LineItem, r Rasterizer, opts Options) *Arena {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	arena := newArena(items)
	results := make([]outcome, len(items))

	if r == nil {
		for i := range results {
			results[i].err = ErrNoRasterizer
		}
	} else {
		// 单个失败不能取消其它请求，因此不使用 errgroup.WithContext。
		var g errgroup.Group
		if opts.Concurrency > 0 {
			g.SetLimit(opts.Concurrency)
		}
		for i := range items {
			g.Go(func() error {
				img, err := rasterizeOne(ctx, r, items[i], opts.Timeout)
				results[i] = outcome{img: img, err: err}
				return nil
			})
		}
		_ = g.Wait()
	}

	for i, res := range results {
		key := arena.keys[i]
		if res.err == nil && res.img == nil {
			res.err = ErrNoBitmap
		}
		if res.err != nil {
			arena.degraded = append(arena.degraded, Degraded{Index: i, Key: key, Err: res.err})
			log.Warn("preview degraded",
				zap.Int("line", i+1),
				zap.String("key", key),
				zap.Error(res.err))
			continue
		}
		arena.bitmaps[key] = res.img
	}
	return arena
}

func rasterizeOne(ctx context.Context, r Rasterizer, item offer.LineItem, timeout time.Duration) (image.Image, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("preview: rasterizer panic: %v", p)}
			}
		}()
		img, err := r.Rasterize(ctx, item)
		done <- outcome{img: img, err: err}
	}()
	select {
	case res := <-done:
		return res.img, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	}
}

// ItemKeys 计算每个条目在 Arena 中的键：优先用 id，id 为空或重复时用 "line-<n>"。
func ItemKeys(items []offer.LineItem) []string {
	keys := make([]string, len(items))
	seen := make(map[string]bool, len(items))
	for i, it := range items {
		key := it.ID
		if key == "" || seen[key] {
			key = "line-" + strconv.Itoa(i+1)
			for seen[key] {
				key += "'"
			}
		}
		seen[key] = true
		keys[i] = key
	}
	return keys
}
