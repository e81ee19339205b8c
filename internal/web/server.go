// Package web is the local HTTP shell over the storefront views. Every
// response is JSON and carries the notices raised while serving it;
// navigation is expressed as 303 redirects.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"teakspice-storefront/internal/app"
	"teakspice-storefront/internal/apperr"
	"teakspice-storefront/internal/notice"
	"teakspice-storefront/internal/router"
)

type Server struct {
	app    *app.Application
	log    *zap.Logger
	engine *gin.Engine
}

func New(a *app.Application) *Server {
	s := &Server{app: a, log: a.Logger().Named("web")}
	s.engine = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog)

	cfg := s.app.Config().Server
	corsCfg := cors.DefaultConfig()
	if len(cfg.AllowOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.AllowOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	r.Use(cors.New(corsCfg))

	r.GET("/nav", s.nav)
	r.GET("/", s.gate(router.ViewHome), s.home)
	r.POST("/login", s.login)
	r.POST("/register", s.register)
	r.POST("/logout", s.logout)
	r.POST("/cart/add/:id", s.addToCart)

	c := r.Group("/cart", s.gate(router.ViewCart))
	{
		c.GET("", s.showCart)
		c.POST("/:id/increment", s.changeQuantity(1))
		c.POST("/:id/decrement", s.changeQuantity(-1))
		c.DELETE("/:id", s.removeLine)
		c.POST("/order", s.placeOrder)
	}

	o := r.Group("/order", s.gate(router.ViewOrders))
	{
		o.GET("", s.showOrders)
		o.POST("/select/:id", s.selectOrder)
		o.DELETE("/select/:id", s.deselectOrder)
		o.POST("/pay", s.pay)
	}
	r.GET("/success", s.gate(router.ViewSuccess), s.success)

	a := r.Group("/admin", s.gate(router.ViewAdmin))
	{
		a.GET("", s.showAdmin)
		a.PUT("/draft", s.setDraft)
		a.POST("/products", s.submitDraft)
		a.POST("/products/:id/edit", s.startEdit)
		a.POST("/cancel", s.cancelEdit)
		a.DELETE("/products/:id", s.deleteProduct)
		a.PUT("/orders/:id", s.setOrderStatus)
	}

	if cfg.Metrics {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.app.Registry(), promhttp.HandlerOpts{})))
	}
	return r
}

func (s *Server) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.log.Debug("request",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("took", time.Since(start)),
	)
}

// gate resolves view for the current role and redirects when it is not
// allowed there.
func (s *Server) gate(view router.View) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := router.Resolve(string(view), s.app.Session.CurrentRole())
		if d.Redirect {
			s.redirect(c, d.View)
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) drain() []notice.Notice {
	out := s.app.Notices.Drain()
	if out == nil {
		out = []notice.Notice{}
	}
	return out
}

func (s *Server) render(c *gin.Context, view router.View, data any) {
	c.JSON(http.StatusOK, gin.H{"view": view, "data": data, "notices": s.drain()})
}

func (s *Server) redirect(c *gin.Context, to router.View) {
	s.redirectURL(c, string(to))
}

func (s *Server) redirectURL(c *gin.Context, location string) {
	c.Header("Location", location)
	c.JSON(http.StatusSeeOther, gin.H{"redirect": location, "notices": s.drain()})
}

func (s *Server) fail(c *gin.Context, err error) {
	c.JSON(statusOf(err), gin.H{"error": err.Error(), "notices": s.drain()})
}

func statusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindAuth:
		return http.StatusUnauthorized
	case apperr.KindNetwork, apperr.KindServer:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Serve runs h on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
