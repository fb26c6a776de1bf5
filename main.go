package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/ByLCY/offerpress/builder"
	"github.com/ByLCY/offerpress/config"
	"github.com/ByLCY/offerpress/httpapi"
	"github.com/ByLCY/offerpress/layout"
	"github.com/ByLCY/offerpress/logging"
	"github.com/ByLCY/offerpress/notify"
	"github.com/ByLCY/offerpress/offer"
	"github.com/ByLCY/offerpress/preview"
	canvasrenderer "github.com/ByLCY/offerpress/renderer/canvas"
	"github.com/ByLCY/offerpress/store"
	"github.com/ByLCY/offerpress/theme"
)

func main() {
	input := flag.String("in", "", "报价单 JSON 文件路径")
	output := flag.String("out", "output/offer.pdf", "PDF 输出路径")
	themePath := flag.String("theme", "", "主题文件路径（覆盖 OFFERPRESS_THEME_PATH）")
	debug := flag.String("debug", "", "布局调试 JSON 输出路径")
	serve := flag.Bool("serve", false, "启动 HTTP 服务")
	worker := flag.Bool("worker", false, "启动通知任务 worker")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if *themePath != "" {
		cfg.ThemePath = *themePath
	}
	log, err := logging.New(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *worker:
		err = runWorker(ctx, cfg, log)
	case *serve:
		err = runServer(ctx, cfg, log)
	case *input != "":
		err = run(ctx, cfg, log, *input, *output, *debug)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal("offerpress failed", zap.Error(err))
	}
}

// run 串联读取、构建与写出，供命令行使用。
func run(ctx context.Context, cfg *config.Config, log *zap.Logger, inputPath, outputPath, debugPath string) error {
	b, err := newBuilder(cfg, log)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("无法打开报价单文件 %s: %w", inputPath, err)
	}
	doc, err := offer.DecodeDocument(data)
	if err != nil {
		return fmt.Errorf("解析报价单失败: %w", err)
	}
	art, err := b.Build(ctx, doc)
	if err != nil {
		return fmt.Errorf("生成报价单失败: %w", err)
	}
	if debugPath != "" {
		if err := layout.WriteDebugJSON(art.Layout, debugPath); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	if err := os.WriteFile(outputPath, art.PDF, 0o644); err != nil {
		return fmt.Errorf("写入 PDF 失败: %w", err)
	}
	log.Info("已生成 PDF",
		zap.String("path", outputPath),
		zap.Int("pages", len(art.Pages)),
		zap.Int("degraded", len(art.Degraded)))
	return nil
}

func newBuilder(cfg *config.Config, log *zap.Logger) (*builder.Builder, error) {
	var (
		th  *layout.Theme
		err error
	)
	baseDir := cfg.FontDir
	if cfg.ThemePath != "" {
		th, err = theme.LoadFile(cfg.ThemePath)
		if baseDir == "" {
			baseDir = filepath.Dir(cfg.ThemePath)
		}
	} else {
		th, err = theme.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("加载主题失败: %w", err)
	}
	return builder.New(builder.Options{
		Theme:           th,
		Engine:          canvasrenderer.NewRenderer(baseDir),
		Rasterizer:      preview.NewWindowRasterizer(cfg.PreviewPx),
		RasterTimeout:   cfg.RasterTimeout,
		Concurrency:     cfg.RasterConcurrency,
		SoftPageLimit:   cfg.SoftPageLimit,
		Company:         cfg.CompanyProfile(),
		DefaultCurrency: cfg.DefaultCurrency,
		DefaultLocale:   cfg.DefaultLocale,
		Logger:          log,
	})
}

// openStore 按配置选择快照存储；返回的 closer 释放连接。
func openStore(ctx context.Context, cfg *config.Config) (store.SnapshotStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreRedis:
		client, err := store.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return store.NewRedis(client, cfg.RedisTTL), func() { _ = client.Close() }, nil
	case config.StorePostgres:
		pool, err := store.ConnectPostgres(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, err
		}
		pg := store.NewPostgres(pool)
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pg, pool.Close, nil
	default:
		return store.NewMemory(), func() {}, nil
	}
}

func openNotifier(cfg *config.Config, log *zap.Logger) (notify.Notifier, func()) {
	if cfg.NotifyDriver != config.NotifyAsynq {
		return notify.Noop{}, func() {}
	}
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	return notify.NewAsynqNotifier(client, log), func() { _ = client.Close() }
}

func runServer(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	b, err := newBuilder(cfg, log)
	if err != nil {
		return err
	}
	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("连接快照存储失败: %w", err)
	}
	defer closeStore()
	notifier, closeNotifier := openNotifier(cfg, log)
	defer closeNotifier()

	handler := httpapi.NewRouter(httpapi.Config{
		Builder:        b,
		Publisher:      &builder.Publisher{Store: st, Notifier: notifier, Logger: log},
		Store:          st,
		Logger:         log,
		RequestTimeout: cfg.AppRequestTimeout,
		RateLimit:      cfg.RateLimit,
		Production:     cfg.IsProduction(),
	})
	srv := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      handler,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.AppAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

// runWorker 消费 offer:send 任务；投递由外部协作方负责，这里只记录。
func runWorker(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, asynq.Config{
		Concurrency: 4,
		Queues:      map[string]int{notify.QueueDefault: 1},
	})
	mux := asynq.NewServeMux()
	h := &notify.Handler{Log: log}
	h.Register(mux)
	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("启动 worker 失败: %w", err)
	}
	<-ctx.Done()
	srv.Shutdown()
	return nil
}
