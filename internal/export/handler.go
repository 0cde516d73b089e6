package export

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hpcadmin/server/internal/httpx"
	"github.com/hpcadmin/server/pkg/response"
)

// Handler serves GET /export.
type Handler struct {
	src Source
	now func() time.Time
}

// NewHandler creates an export handler reading from src.
func NewHandler(src Source) *Handler {
	return &Handler{src: src, now: time.Now}
}

// Register mounts the export route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/export", h.Get)
}

// Get handles GET /export.
func (h *Handler) Get(c *gin.Context) {
	snap, err := Build(c.Request.Context(), h.src, h.now())
	if err != nil {
		httpx.Error(c, err)
		return
	}
	response.OK(c, snap)
}
