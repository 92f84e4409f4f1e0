// Package api serves a read-only HTTP surface over the assistant's stores.
// Mutation stays behind the chat confirmation handshake; the API only
// observes.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/nvasko/adjutant/internal/audit"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	DB    *gorm.DB
	Audit *audit.Logger
	Addr  string // defaults to ":8420"
	Out   io.Writer
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	router, err := NewRouter(opts.DB, opts.Audit)
	if err != nil {
		return err
	}

	addr := opts.Addr
	if addr == "" {
		addr = ":8420"
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API listening on %s\n", addr)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// NewRouter builds the Gin router with all read-only routes registered.
func NewRouter(db *gorm.DB, auditLog *audit.Logger) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("api: db is required")
	}
	if auditLog == nil {
		return nil, fmt.Errorf("api: audit logger is required")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", handleHealth(db))
	router.GET("/api/audit", handleAudit(auditLog))
	router.GET("/api/actions", handleActions(db))
	router.GET("/api/conversations/:user", handleConversations(db))

	return router, nil
}

func handleHealth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.Ping()
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func handleAudit(auditLog *audit.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
				return
			}
			limit = n
		}

		entries, err := auditLog.Recent(audit.Query{
			UserID: c.Query("user"),
			Kind:   c.Query("kind"),
			Limit:  limit,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	}
}

func handleActions(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		actions, err := PendingActions(db, c.Query("user"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"actions": actions})
	}
}

func handleConversations(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		threads, err := UserThreads(db, c.Param("user"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"threads": threads})
	}
}
