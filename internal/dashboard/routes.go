package dashboard

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zulandar/inspectyard/internal/inspection"
	"github.com/zulandar/inspectyard/internal/watchdog"
	"gorm.io/gorm"
)

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/healthz", handleHealthz(opts.DB))

	api := router.Group("/api")
	api.GET("/jobs", handleJobList(opts.DB))
	api.GET("/jobs/:id", handleJobDetail(opts.DB))
	api.GET("/jobs/:id/notes", handleJobNotes(opts.DB))
	api.GET("/watchdog/runs", handleRuns(opts.DB))
	api.GET("/events", handleSSE(opts.DB))
	if opts.Runner != nil {
		api.POST("/watchdog/scan", handleScan(opts.Runner))
	}

	if opts.Registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))
	}
}

func handleHealthz(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// handleScan runs one watchdog pass and returns its report. A scan that
// could not list inspections answers 500 with the same body.
func handleScan(runner *watchdog.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := runner.RunOnce(c.Request.Context(), watchdog.TriggerHTTP)
		status := http.StatusOK
		if !report.Success {
			status = http.StatusInternalServerError
		}
		c.JSON(status, report)
	}
}

func handleJobList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := queryInt(c, "limit", 50)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		jobs, err := inspection.List(db, inspection.ListFilters{
			Status:    c.Query("status"),
			VehicleID: c.Query("vehicle_id"),
			Limit:     limit,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		rows := make([]JobRow, len(jobs))
		for i, j := range jobs {
			rows[i] = jobRow(j)
		}
		c.JSON(http.StatusOK, gin.H{"jobs": rows})
	}
}

func handleJobDetail(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := inspection.Get(db, c.Param("id"))
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, jobDetail(job))
	}
}

func handleJobNotes(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		notes, err := JobNotes(db, c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"notes": notes})
	}
}

func handleRuns(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := queryInt(c, "limit", 20)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		runs, err := RecentRuns(db, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": runs})
	}
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return n, nil
}

func statusFor(err error) int {
	if errors.Is(err, inspection.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
