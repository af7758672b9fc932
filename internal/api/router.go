package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// NewRouter собирает маршруты. metrics == nil — без /metrics.
func NewRouter(s *Server, metrics http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log))

	r.GET("/api/meta", MetaListHandler(s))
	r.GET("/api/meta/:entity", MetaEntityHandler(s))
	r.GET("/api/meta/catalogs", MetaCatalogListHandler(s))
	r.GET("/api/meta/catalogs/:name", MetaCatalogHandler(s))
	r.POST("/api/admin/reload", AdminReloadHandler(s))

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/:entity", CreateHandler(s))
		apiGroup.GET("/:entity/:id", GetOneHandler(s))
		apiGroup.PUT("/:entity/:id", UpdateHandler(s))
		apiGroup.PATCH("/:entity/:id", UpdatePartialHandler(s))
		apiGroup.DELETE("/:entity/:id", DeleteHandler(s))
	}

	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}
	return r
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// Run обслуживает addr до отмены ctx, затем плавно останавливается.
func Run(ctx context.Context, addr string, h http.Handler, log *slog.Logger) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
