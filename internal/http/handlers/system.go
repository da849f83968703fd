package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	intconfig "settlement/internal/config"
)

func (a API) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "settlement service running"})
}

func (a API) DBCheck(c *gin.Context) {
	if a.DB == nil {
		respondError(c, http.StatusInternalServerError, "db_unavailable", "database is not connected", nil)
		return
	}
	if err := intconfig.Ping(c.Request.Context(), a.DB); err != nil {
		respondError(c, http.StatusInternalServerError, "db_unavailable", "database ping failed: "+err.Error(), nil)
		return
	}
	var count int
	if err := a.DB.QueryRowContext(c.Request.Context(), "SELECT COUNT(*) FROM payment_transactions").Scan(&count); err != nil {
		respondError(c, http.StatusInternalServerError, "db_query_failed", "query failed: "+err.Error(), nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "database OK", "transactions_in_db": count})
}
