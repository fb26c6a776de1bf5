// Package httpapi exposes the builder over HTTP: render, totals, publish and
// snapshot lookups.
package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"
	"go.uber.org/zap"

	"github.com/ByLCY/offerpress/builder"
	"github.com/ByLCY/offerpress/offer"
	"github.com/ByLCY/offerpress/store"
)

const defaultMaxBody = 4 << 20

// Config aggregates the dependencies of the router.
type Config struct {
	Builder   *builder.Builder
	Publisher *builder.Publisher
	// Store backs the snapshot lookups; usually the publisher's store.
	Store  store.SnapshotStore
	Logger *zap.Logger

	RequestTimeout time.Duration
	RateLimit      int
	RateWindow     time.Duration
	MaxBodyBytes   int64
	Production     bool
	Now            func() time.Time
}

type server struct {
	cfg Config
	log *zap.Logger
}

// NewRouter installs the middleware chain and routes.
func NewRouter(cfg Config) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 60
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBody
	}
	s := &server{cfg: cfg, log: cfg.Logger}

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'",
		SSLRedirect:           cfg.Production,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})

	r := chi.NewRouter()
	r.Use(
		middleware.RealIP,
		middleware.RequestID,
		s.requestLogger,
		middleware.Recoverer,
		middleware.Timeout(cfg.RequestTimeout),
		secureMiddleware.Handler,
		httprate.Limit(cfg.RateLimit, cfg.RateWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
				Problem(w, http.StatusTooManyRequests, "Too Many Requests", "")
			}),
		),
	)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/offers", func(r chi.Router) {
		r.Post("/render", s.handleRender)
		r.Post("/totals", s.handleTotals)
		r.Post("/publish", s.handlePublish)
		r.Get("/{id}", s.handleGet)
		r.Post("/{id}/viewed", s.handleViewed)
	})
	return r
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func (s *server) decodeDocument(w http.ResponseWriter, r *http.Request) (*offer.Document, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	var doc offer.Document
	if err := DecodeJSON(r, &doc); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Problem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", err.Error())
			return nil, false
		}
		Problem(w, http.StatusBadRequest, "Bad Request", "请求体不是合法的报价单 JSON: "+err.Error())
		return nil, false
	}
	return &doc, true
}

func (s *server) handleRender(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.decodeDocument(w, r)
	if !ok {
		return
	}
	art, err := s.cfg.Builder.Build(r.Context(), doc)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("X-Offer-Pages", strconv.Itoa(len(art.Pages)))
	w.Header().Set("X-Offer-Degraded", strconv.Itoa(len(art.Degraded)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(art.PDF)
}

func (s *server) handleTotals(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.decodeDocument(w, r)
	if !ok {
		return
	}
	totals, err := s.cfg.Builder.Totals(doc)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, totals)
}

type publishResponse struct {
	OfferID      string       `json:"offerId,omitempty"`
	Status       offer.Status `json:"status"`
	Pages        int          `json:"pages"`
	Degraded     int          `json:"degraded"`
	PersistError string       `json:"persistError,omitempty"`
	NotifyError  string       `json:"notifyError,omitempty"`
	PDF          []byte       `json:"pdf"`
}

// handlePublish 渲染并发布；持久化或通知失败时仍返回已生成的 PDF。
func (s *server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Publisher == nil {
		Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "publishing is not configured")
		return
	}
	doc, ok := s.decodeDocument(w, r)
	if !ok {
		return
	}
	art, err := s.cfg.Builder.Build(r.Context(), doc)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	report := s.cfg.Publisher.Publish(r.Context(), art)
	resp := publishResponse{
		OfferID:  report.OfferID,
		Status:   art.Snapshot.Status,
		Pages:    len(art.Pages),
		Degraded: len(art.Degraded),
		PDF:      art.PDF,
	}
	if report.PersistErr != nil {
		resp.PersistError = report.PersistErr.Error()
	}
	if report.NotifyErr != nil {
		resp.NotifyError = report.NotifyErr.Error()
	}
	status := http.StatusCreated
	if !report.OK() {
		status = http.StatusMultiStatus
	}
	JSON(w, status, resp)
}

func (s *server) handleGet(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "no snapshot store configured")
		return
	}
	snap, err := s.cfg.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, snap)
}

func (s *server) handleViewed(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "no snapshot store configured")
		return
	}
	snap, err := s.cfg.Store.MarkViewed(r.Context(), chi.URLParam(r, "id"), s.cfg.Now())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, snap)
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if !errors.Is(err, offer.ErrValidation) && !errors.Is(err, store.ErrNotFound) {
		s.log.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	RespondError(w, err)
}
