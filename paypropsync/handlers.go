package paypropsync

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"bitbucket.org/oakcrm/lettings_backend/config"
	"bitbucket.org/oakcrm/lettings_backend/models"
	"bitbucket.org/oakcrm/lettings_backend/utils"
)

const importLockType = "PayPropSyncLock"

// RegisterRoutes mounts the sync endpoints on the given group.
func RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/sync", TriggerSyncHandler())
	group.GET("/sync/runs", SyncHistoryHandler())
	group.GET("/sync/runs/:id", SyncRunDetailHandler())
	group.POST("/categories/refresh", RefreshCategoriesHandler())
	group.GET("/categories/stats", CategoryStatsHandler())
	group.GET("/properties", PropertiesHandler())
	group.GET("/leases", LeasesHandler())
	group.GET("/leases/:id", LeaseDetailHandler())
}

type triggerSyncRequest struct {
	FromDate string `json:"from_date"`
	ToDate   string `json:"to_date"`
}

// TriggerSyncHandler starts an import run for the caller's agency.
// Runs are serialized per agency with a distributed lock; a second
// trigger while one is in flight gets a 409.
func TriggerSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		agencyId, err := resolveAgencyId(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		// An empty body means "default window".
		var req triggerSyncRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		from, to, err := resolveWindow(req)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx := utils.SetAgencyIdInContext(context.Background(), agencyId)
		release, err := utils.AgencyLock(ctx, agencyId, importLockType, "paypropsync", "TriggerSyncHandler")
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}

		runner, err := NewRunner(ctx, agencyId)
		if err != nil {
			release()
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}

		go func() {
			defer release()
			if _, err := runner.Execute(ctx, models.SyncTriggeredManual, from, to); err != nil {
				config.LogError(config.GetLogger(), "paypropsync", "TriggerSyncHandler",
					"import run aborted", agencyId, err)
			}
		}()

		c.JSON(http.StatusAccepted, gin.H{
			"status":    "accepted",
			"agency_id": agencyId,
			"from_date": from.Format("2006-01-02"),
			"to_date":   to.Format("2006-01-02"),
		})
	}
}

// resolveWindow defaults to the trailing 30 days when the request
// does not name a range.
func resolveWindow(req triggerSyncRequest) (time.Time, time.Time, error) {
	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now
	var err error
	if req.FromDate != "" {
		if from, err = utils.ParseDate(req.FromDate); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if req.ToDate != "" {
		if to, err = utils.ParseDate(req.ToDate); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("to_date is before from_date")
	}
	return from, to, nil
}

func SyncHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		agencyId, err := resolveAgencyId(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		limit := 20
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}
		runs, err := models.NewGormStores().RecentSyncRuns(c.Request.Context(), agencyId, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load sync history"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": runs})
	}
}

func SyncRunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		agencyId, err := resolveAgencyId(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}
		run, syncErrors, err := models.NewGormStores().SyncRunById(c.Request.Context(), agencyId, uint(id))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load sync run"})
			return
		}
		if run == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "sync run not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"run": run, "errors": syncErrors})
	}
}

// RefreshCategoriesHandler clears the classifier cache so the next
// classification reloads the mapping table.
func RefreshCategoriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		agencyId, err := resolveAgencyId(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		classifierForAgency(agencyId).Refresh()
		utils.InvalidateCache("CategoryStats:" + agencyId)
		c.JSON(http.StatusOK, gin.H{"status": "refreshed"})
	}
}

func CategoryStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		agencyId, err := resolveAgencyId(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		stats, err := utils.FetchCached(c.Request.Context(), "CategoryStats:"+agencyId, func() (map[string]int, error) {
			return classifierForAgency(agencyId).Stats(c.Request.Context()), nil
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load category stats"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"buckets": stats})
	}
}

func resolveAgencyId(c *gin.Context) (string, error) {
	if agencyId, ok := utils.GetAgencyIdFromContext(c.Request.Context()); ok && agencyId != "" {
		return agencyId, nil
	}
	agencyId := strings.TrimSpace(c.GetHeader("X-Agency-Id"))
	if agencyId == "" {
		return "", errors.New("missing agency id")
	}
	return agencyId, nil
}
