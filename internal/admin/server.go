package admin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/nicolas-rempulski/h-ubu/internal/contract"
	"github.com/nicolas-rempulski/h-ubu/internal/hub"
	"github.com/nicolas-rempulski/h-ubu/internal/observability"
	"github.com/nicolas-rempulski/h-ubu/internal/registry"
	"github.com/nicolas-rempulski/h-ubu/internal/soc"
)

// Name is the default component name of the admin server.
const Name = "admin"

const (
	defaultReadHeaderTimeout = 5 * time.Second
	shutdownTimeout          = 5 * time.Second
)

type ComponentInfo struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
}

type ServiceInfo struct {
	ID         int64          `json:"id"`
	Contract   string         `json:"contract"`
	Publisher  string         `json:"publisher"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Server is a hub component serving a read-only JSON view of its hub.
// Handlers only read the snapshot refreshed on Start and on service events.
type Server struct {
	hub.Base

	owner             *hub.Hub
	addr              string
	origins           []string
	readHeaderTimeout time.Duration

	router     *gin.Engine
	httpServer *http.Server
	boundAddr  string
	listener   *registry.ServiceListener

	mu         sync.RWMutex
	started    time.Time
	components []ComponentInfo
	services   []ServiceInfo
}

func NewServer() *Server {
	return &Server{
		Base:              hub.NewBase(Name),
		readHeaderTimeout: defaultReadHeaderTimeout,
	}
}

// Configure reads addr, cors_origins and read_header_timeout.
func (s *Server) Configure(h *hub.Hub, cfg hub.Config) error {
	s.owner = h
	s.addr, _ = cfg.String("addr")
	s.origins = cfg.Strings("cors_origins")
	if raw, ok := cfg.String("read_header_timeout"); ok {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return hub.InvalidComponent("configure admin", "read_header_timeout must be a positive duration", hub.Fields{
				"read_header_timeout": raw,
			})
		}
		s.readHeaderTimeout = d
	}
	s.router = s.buildRouter()
	return nil
}

// HTTPRouter exposes the router, mostly for httptest.
func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// Addr is the bound listen address while serving.
func (s *Server) Addr() string {
	return s.boundAddr
}

func (s *Server) Start() error {
	if s.owner == nil {
		return hub.InvalidOperation("start admin", "component is not configured", nil)
	}
	ext, ok := s.owner.Extension(soc.Name).(*soc.Extension)
	if !ok {
		return hub.InvalidOperation("start admin", "service registry unavailable", hub.Fields{"hub": s.owner.Name()})
	}
	if s.listener == nil {
		l, err := ext.RegisterServiceListener(registry.ListenerConfig{
			Listener: registry.ListenerFunc(func(registry.Event) {
				s.Refresh()
			}),
		})
		if err != nil {
			return err
		}
		s.listener = l
	}
	s.mu.Lock()
	s.started = time.Now()
	s.mu.Unlock()
	s.Refresh()

	if s.addr == "" || s.httpServer != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("admin listen %s: %w", s.addr, err)
	}
	s.boundAddr = ln.Addr().String()
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.readHeaderTimeout,
	}
	srv := s.httpServer
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", s.boundAddr).Msg("admin server stopped")
		}
	}()
	log.Info().Str("hub", s.owner.Name()).Str("addr", s.boundAddr).Msg("admin server listening")
	return nil
}

func (s *Server) Stop() error {
	if s.listener != nil {
		if ext, ok := s.owner.Extension(soc.Name).(*soc.Extension); ok {
			ext.UnregisterServiceListener(s.listener)
		}
		s.listener = nil
	}
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)
	s.httpServer = nil
	s.boundAddr = ""
	if err != nil {
		return fmt.Errorf("admin shutdown: %w", err)
	}
	return nil
}

// Refresh rebuilds the snapshot from the hub. It must run on the goroutine
// driving the hub.
func (s *Server) Refresh() {
	if s.owner == nil {
		return
	}
	components := make([]ComponentInfo, 0)
	for i, c := range s.owner.GetComponents() {
		components = append(components, ComponentInfo{Name: s.owner.NameOf(c), Index: i})
	}
	services := make([]ServiceInfo, 0)
	if ext, ok := s.owner.Extension(soc.Name).(*soc.Extension); ok {
		for _, ref := range ext.GetServiceReferences(nil, nil) {
			services = append(services, s.serviceInfo(ref))
		}
	}
	s.mu.Lock()
	s.components = components
	s.services = services
	s.mu.Unlock()
}

func (s *Server) Components() []ComponentInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.components)
}

func (s *Server) Services() []ServiceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.services)
}

func (s *Server) uptime() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.started.IsZero() {
		return ""
	}
	return time.Since(s.started).String()
}

func (s *Server) serviceInfo(ref *registry.Reference) ServiceInfo {
	info := ServiceInfo{ID: ref.ID()}
	if c := ref.Contract(); c != nil {
		info.Contract = c.Name()
	}
	if pub := ref.Publisher(); pub != nil {
		info.Publisher = s.owner.NameOf(pub)
		if info.Publisher == "" {
			info.Publisher = pub.Name()
		}
	}
	for k, v := range ref.Properties() {
		switch k {
		case registry.PropContract, registry.PropPublisher, registry.PropID:
			continue
		}
		if info.Properties == nil {
			info.Properties = map[string]any{}
		}
		info.Properties[k] = jsonValue(v)
	}
	return info
}

// jsonValue keeps scalars and renders everything else as text.
func jsonValue(v any) any {
	switch contract.KindOf(v) {
	case contract.KindNull:
		return nil
	case contract.KindBoolean, contract.KindNumber, contract.KindString, contract.KindDate:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (s *Server) buildRouter() *gin.Engine {
	observability.RegisterMetrics()
	hubName := s.owner.Name()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger, hubName))
	r.Use(observability.RequestMetricsMiddleware(hubName))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(s.origins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"hub":    hubName,
			"uptime": s.uptime(),
		})
	})
	r.GET("/components", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"components": s.Components()})
	})
	r.GET("/services", func(c *gin.Context) {
		services := s.Services()
		if name := strings.TrimSpace(c.Query("contract")); name != "" {
			services = slices.DeleteFunc(services, func(si ServiceInfo) bool { return si.Contract != name })
		}
		c.JSON(http.StatusOK, gin.H{"services": services})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
