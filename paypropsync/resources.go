package paypropsync

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bitbucket.org/oakcrm/lettings_backend/models"
	"bitbucket.org/oakcrm/lettings_backend/utils"
)

// Read endpoints over the synced data, for the CRM front end.

func PropertiesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		agencyId, err := resolveAgencyId(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ctx := c.Request.Context()
		properties, err := utils.FetchAllModelsWhere[models.Property](ctx,
			"agency_id = ?", []interface{}{agencyId})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load properties"})
			return
		}
		total, err := utils.ResourceCountWhere[models.Property](ctx, "agency_id = ?", agencyId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not count properties"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"properties": properties, "total": total})
	}
}

func LeasesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		agencyId, err := resolveAgencyId(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		leases, err := utils.FetchAllModelsWhere[models.Lease](c.Request.Context(),
			"agency_id = ?", []interface{}{agencyId}, "Property", "Tenant")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load leases"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"leases": leases})
	}
}

func LeaseDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		agencyId, err := resolveAgencyId(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lease id"})
			return
		}
		lease, err := utils.FetchSingleModel[models.Lease](c.Request.Context(), id, "Property", "Tenant")
		if errors.Is(err, utils.ErrorRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "lease not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load lease"})
			return
		}
		if lease.AgencyId != agencyId {
			c.JSON(http.StatusNotFound, gin.H{"error": "lease not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"lease": lease})
	}
}
