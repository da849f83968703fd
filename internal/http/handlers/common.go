package handlers

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"settlement/internal/http/middleware"
	"settlement/internal/services"
)

// API holds what the settlement endpoints need.
type API struct {
	Settlement services.SettlementService
	Docs       services.DocsService
	DB         *sql.DB
}

func (a API) settlement(c *gin.Context) services.SettlementService {
	return a.Settlement.WithRequestID(middleware.GetRequestID(c))
}

func (a API) docs(c *gin.Context) services.DocsService {
	d := a.Docs
	d.RequestID = middleware.GetRequestID(c)
	return d
}

// BindJSONOrError ensures body is present and parsable.
func BindJSONOrError[T any](c *gin.Context, dst *T) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		respondError(c, http.StatusBadRequest, "empty_body", "request body is required", nil)
		return false
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_payload", "invalid request payload", err.Error())
		return false
	}
	return true
}

// pathParam returns the trimmed :name parameter or writes a 400.
func pathParam(c *gin.Context, name string) (string, bool) {
	v := strings.TrimSpace(c.Param(name))
	if v == "" {
		respondError(c, http.StatusBadRequest, "invalid_"+name, name+" is required", nil)
		return "", false
	}
	return v, true
}

func queryInt(c *gin.Context, key string) (int, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		respondError(c, http.StatusBadRequest, "invalid_query", key+" must be a non-negative integer", nil)
		return 0, false
	}
	return n, true
}

func sendPDF(c *gin.Context, body []byte, filename string) {
	c.Header("Content-Disposition", `inline; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", body)
}
