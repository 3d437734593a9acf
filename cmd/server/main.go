package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"branchchat/internal/adapter"
	"branchchat/internal/archive"
	"branchchat/internal/chat"
	"branchchat/internal/session"
	"branchchat/pkg/config"
	pkgerrors "branchchat/pkg/errors"
	"branchchat/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting topic graph chat server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize dependencies
	llm := adapter.NewChatAdapter(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.ModelID, cfg.ClassifierModelID, cfg.MaxRetries)
	orch := chat.NewOrchestrator(llm, llm)
	sessions := session.NewManager()

	// Optional Neo4j mirror
	if cfg.MirrorEnabled() {
		driver, err := neo4j.NewDriverWithContext(
			cfg.Neo4jURI,
			neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
		)
		if err != nil {
			log.Fatal("Failed to create Neo4j driver", zap.Error(err))
		}
		if err := driver.VerifyConnectivity(context.Background()); err != nil {
			log.Fatal("Failed to verify Neo4j connectivity", zap.Error(err))
		}
		mirror := archive.NewRepository(driver)
		defer mirror.Close()
		orch.SetMirror(mirror)
		log.Info("Neo4j graph mirror enabled", zap.String("uri", cfg.Neo4jURI))
	}

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(log, sessions, orch)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server exited with error", zap.Error(err))
		return
	}
	log.Info("Server exited")
}

// turnRunner is the slice of the orchestrator the HTTP layer needs
type turnRunner interface {
	HandleTurn(ctx context.Context, sess *session.Session, userText string) (*chat.TurnOutcome, error)
}

// newRouter wires all routes. Split out of main so handler tests can run it
// with a stub turn runner.
func newRouter(log *zap.Logger, sessions *session.Manager, runner turnRunner) *gin.Engine {
	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		// Create session
		api.POST("/sessions", func(c *gin.Context) {
			sess := sessions.Create()
			c.JSON(http.StatusCreated, gin.H{"session_id": sess.ID})
		})

		// Run one conversational turn
		api.POST("/sessions/:id/chat", func(c *gin.Context) {
			sess, err := sessions.Get(c.Param("id"))
			if err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
				return
			}

			var req struct {
				Message string `json:"message" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			outcome, err := runner.HandleTurn(c.Request.Context(), sess, req.Message)
			if err != nil {
				if pkgerrors.IsGatewayError(err) {
					log.Error("Oracle call failed, turn abandoned", zap.Error(err))
					c.JSON(http.StatusBadGateway, gin.H{"error": "Upstream model call failed"})
					return
				}
				log.Error("Failed to handle turn", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process message"})
				return
			}

			c.JSON(http.StatusOK, gin.H{
				"message":  outcome.Message,
				"keyword":  outcome.Keyword,
				"node_id":  outcome.NodeID,
				"new_node": outcome.NewNode,
			})
		})

		// Graph snapshot
		api.GET("/sessions/:id/graph", func(c *gin.Context) {
			sess, err := sessions.Get(c.Param("id"))
			if err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"nodes": sess.Graph()})
		})

		// Turn log snapshot
		api.GET("/sessions/:id/turns", func(c *gin.Context) {
			sess, err := sessions.Get(c.Param("id"))
			if err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"turns": sess.Turns()})
		})

		// Set context-mode flags (owned by the UI layer)
		api.PUT("/sessions/:id/context", func(c *gin.Context) {
			sess, err := sessions.Get(c.Param("id"))
			if err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
				return
			}

			var req struct {
				Enabled           bool     `json:"enabled"`
				ActiveTurnNumbers []int    `json:"active_turn_numbers"`
				ActiveNodeIDs     []string `json:"active_node_ids"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			flags := session.ContextFlags{
				Enabled:           req.Enabled,
				ActiveTurnNumbers: make(map[int]bool, len(req.ActiveTurnNumbers)),
				ActiveNodeIDs:     make(map[string]bool, len(req.ActiveNodeIDs)),
			}
			for _, n := range req.ActiveTurnNumbers {
				flags.ActiveTurnNumbers[n] = true
			}
			for _, id := range req.ActiveNodeIDs {
				flags.ActiveNodeIDs[id] = true
			}
			sess.SetFlags(flags)

			c.JSON(http.StatusOK, gin.H{"status": "updated"})
		})

		// Drop session
		api.DELETE("/sessions/:id", func(c *gin.Context) {
			if !sessions.Delete(c.Param("id")) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "deleted"})
		})
	}

	return router
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
