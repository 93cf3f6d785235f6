// Package web exposes the node over HTTP: a JSON API, a websocket frame
// ingest, the preview frame and prometheus metrics.
package web

import (
	"FrameAnnotator/annotator"
	iface "FrameAnnotator/interface"
	"FrameAnnotator/logger"
	"FrameAnnotator/monitor"
	"FrameAnnotator/node"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxFrameBytes = 20 * 1024 * 1024

type Server struct {
	node *node.Node
	mon  *monitor.Monitor
	log  *zap.Logger

	router      *gin.Engine
	idleTimeout time.Duration

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

type Option func(*Server)

func WithMonitor(m *monitor.Monitor) Option {
	return func(s *Server) { s.mon = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithIdleTimeout closes websocket connections that stay silent longer than d.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) { s.idleTimeout = d }
}

func New(n *node.Node, opts ...Option) *Server {
	s := &Server{
		node:        n,
		idleTimeout: time.Minute,
		shutdown:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Log()
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/api/status", func(c *gin.Context) {
		s.mon.Request("http")
		c.JSON(http.StatusOK, gin.H{"data": s.node.Status()})
	})
	r.POST("/api/frames", s.postFrame)
	r.GET("/api/preview", s.getPreview)
	r.POST("/api/shutdown", s.postShutdown)
	r.GET("/ws", s.serveWS)
	if s.mon != nil {
		r.GET("/metrics", gin.WrapH(s.mon.Handler()))
	}
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// ShutdownRequested is closed after POST /api/shutdown has been served.
func (s *Server) ShutdownRequested() <-chan struct{} { return s.shutdown }

// Start serves on port in the background. Stop it with (*http.Server).Shutdown.
func (s *Server) Start(port int) *http.Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		s.log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Failed to serve HTTP", zap.Error(err))
		}
	}()
	return srv
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// frameMessage reads the request body as a node message. Raw bodies are
// taken as the payload; JSON bodies are decoded as a message envelope.
func frameMessage(c *gin.Context) (iface.Message, error) {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var msg iface.Message
		if err := c.ShouldBindJSON(&msg); err != nil {
			return msg, err
		}
		if msg.Payload == nil {
			return msg, errors.New("payload is required")
		}
		return msg, nil
	}
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxFrameBytes+1))
	if err != nil {
		return iface.Message{}, err
	}
	if len(data) > maxFrameBytes {
		return iface.Message{}, fmt.Errorf("frame exceeds %d bytes", maxFrameBytes)
	}
	return iface.Message{ID: c.GetHeader("X-Message-Id"), Payload: data}, nil
}

func (s *Server) postFrame(c *gin.Context) {
	s.mon.Request("http")
	msg, err := frameMessage(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	res, err := s.node.Input(c.Request.Context(), msg)
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"_msgid": msg.ID, "error": err.Error()})
		return
	}
	code := http.StatusOK
	if res.Dropped {
		code = http.StatusAccepted
	}
	c.JSON(code, gin.H{"_msgid": msg.ID, "data": res})
}

func (s *Server) getPreview(c *gin.Context) {
	s.mon.Request("http")
	data, err := s.node.Preview()
	switch {
	case errors.Is(err, node.ErrDisplayDisabled):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
	default:
		c.Header("Cache-Control", "no-store")
		c.Data(http.StatusOK, "image/jpeg", data)
	}
}

// postShutdown closes the node, which emits the final frame to the sinks,
// and then signals ShutdownRequested.
func (s *Server) postShutdown(c *gin.Context) {
	s.mon.Request("http")
	defer s.shutdownOnce.Do(func() {
		s.log.Warn("Shutdown requested over HTTP")
		close(s.shutdown)
	})
	msg, err := s.node.Close(c.Request.Context())
	data, ok := msg.Payload.([]byte)
	if err != nil && !ok {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	resp := gin.H{"_msgid": msg.ID, "bytes": len(data)}
	if err != nil {
		resp["warning"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, annotator.ErrDecode):
		return http.StatusBadRequest
	case errors.Is(err, annotator.ErrNoFrame), errors.Is(err, annotator.ErrClosed):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
