package httpapi

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/genovault/genovault/internal/server/models"
)

type fileResponse struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	MediaType string    `json:"media_type"`
	SizeBytes int64     `json:"size_bytes"`
	LedgerRef string    `json:"ledger_ref"`
	CreatedAt time.Time `json:"created_at"`
}

func toFileResponse(r *models.FileRecord) fileResponse {
	return fileResponse{
		ID:        r.ID,
		Filename:  r.Filename,
		MediaType: r.MediaType,
		SizeBytes: r.SizeBytes,
		LedgerRef: r.LedgerRef,
		CreatedAt: r.CreatedAt,
	}
}

type grantResponse struct {
	ID          string     `json:"id"`
	FileID      string     `json:"file_id"`
	GrantorID   string     `json:"grantor_id"`
	GranteeID   string     `json:"grantee_id"`
	AccessLevel string     `json:"access_level"`
	Status      string     `json:"status"`
	ExpiresAt   time.Time  `json:"expires_at"`
	CreatedAt   time.Time  `json:"created_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

func toGrantResponse(g *models.Grant) grantResponse {
	return grantResponse{
		ID:          g.ID,
		FileID:      g.FileID,
		GrantorID:   g.GrantorID,
		GranteeID:   g.GranteeID,
		AccessLevel: g.AccessLevel,
		Status:      g.Status,
		ExpiresAt:   g.ExpiresAt,
		CreatedAt:   g.CreatedAt,
		RevokedAt:   g.RevokedAt,
	}
}

func (a *API) uploadFile(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided"})
		return
	}
	defer file.Close()

	// Size validation happens in the service against the configured cap; the
	// reader is bounded one byte past it so an oversized body still maps to
	// the taxonomy instead of exhausting memory.
	content, err := io.ReadAll(io.LimitReader(file, a.config.MaxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}

	mediaType := c.PostForm("media_type")
	if mediaType == "" {
		mediaType = header.Header.Get("Content-Type")
	}

	record, err := a.ingest.Upload(c.Request.Context(), principal(c), header.Filename, mediaType, content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toFileResponse(record))
}

func (a *API) listFiles(c *gin.Context) {
	records, err := a.files.List(c.Request.Context(), principal(c))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]fileResponse, 0, len(records))
	for _, r := range records {
		out = append(out, toFileResponse(r))
	}
	c.JSON(http.StatusOK, gin.H{"files": out})
}

func (a *API) getFile(c *gin.Context) {
	record, err := a.files.Get(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toFileResponse(record))
}

func (a *API) deleteFile(c *gin.Context) {
	if err := a.files.Delete(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) downloadFile(c *gin.Context) {
	res, err := a.retrieve.Download(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	// Decrypted health data must never land in a shared cache.
	c.Header("Cache-Control", "no-store")
	c.Header("Content-Disposition", `attachment; filename="`+res.Filename+`"`)
	c.Data(http.StatusOK, res.MediaType, res.Data)
}

func (a *API) reanchorFile(c *gin.Context) {
	record, err := a.ingest.Reanchor(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toFileResponse(record))
}

type createGrantRequest struct {
	GranteeID   string     `json:"grantee_id" binding:"required"`
	AccessLevel string     `json:"access_level"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

func (a *API) createGrant(c *gin.Context) {
	var req createGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	grant, err := a.grants.Grant(c.Request.Context(), c.Param("id"), principal(c),
		req.GranteeID, req.AccessLevel, req.ExpiresAt)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toGrantResponse(grant))
}

func (a *API) listFileGrants(c *gin.Context) {
	grants, err := a.grants.ListForFile(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]grantResponse, 0, len(grants))
	for _, g := range grants {
		out = append(out, toGrantResponse(g))
	}
	c.JSON(http.StatusOK, gin.H{"grants": out})
}

func (a *API) revokeGrant(c *gin.Context) {
	reason := c.Query("reason")
	if reason == "" {
		reason = "revoked by owner"
	}
	err := a.grants.Revoke(c.Request.Context(), c.Param("id"), principal(c),
		c.Param("granteeID"), reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) listHeldGrants(c *gin.Context) {
	grants, err := a.grants.ListForGrantee(c.Request.Context(), principal(c))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]grantResponse, 0, len(grants))
	for _, g := range grants {
		out = append(out, toGrantResponse(g))
	}
	c.JSON(http.StatusOK, gin.H{"grants": out})
}

func (a *API) analyticsSummary(c *gin.Context) {
	sum, err := a.analytics.Summarize(c.Request.Context(), principal(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

type auditResponse struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	FileID    string    `json:"file_id,omitempty"`
	Outcome   string    `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (a *API) auditTrail(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	entries, err := a.analytics.AuditTrail(c.Request.Context(), principal(c), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]auditResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditResponse{
			ID:        e.ID,
			Action:    e.Action,
			FileID:    e.FileID,
			Outcome:   e.Outcome,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"entries": out})
}
