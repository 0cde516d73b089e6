package pirgs

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/hpcadmin/server/internal/directory"
	"github.com/hpcadmin/server/internal/httpx"
	"github.com/hpcadmin/server/internal/models"
	"github.com/hpcadmin/server/pkg/response"
)

// Handler handles pirg and pirg membership endpoints.
type Handler struct {
	svc *directory.Service
}

// NewHandler creates a pirgs handler.
func NewHandler(svc *directory.Service) *Handler {
	return &Handler{svc: svc}
}

// CreatePirgRequest is the body for POST /pirgs.
type CreatePirgRequest struct {
	Name     string  `json:"name" binding:"required"`
	OwnerID  int64   `json:"owner_id"`
	AdminIDs []int64 `json:"admin_ids"`
	UserIDs  []int64 `json:"user_ids"`
}

// Register mounts the pirg routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/pirgs", h.List)
	r.POST("/pirgs", h.Create)
	r.GET("/pirgs/:name", h.Get)
	r.POST("/pirgs/:name/users", h.AddUser)
	r.DELETE("/pirgs/:name/users/:user_id", h.RemoveUser)
	r.POST("/pirgs/:name/admins", h.AddAdmin)
	r.DELETE("/pirgs/:name/admins/:user_id", h.RemoveAdmin)
}

// List handles GET /pirgs.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.ListPirgDetails(c.Request.Context())
	if err != nil {
		httpx.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Create handles POST /pirgs.
func (h *Handler) Create(c *gin.Context) {
	var body CreatePirgRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "name required")
		return
	}
	pirg, err := h.svc.CreatePirg(c.Request.Context(), directory.NewPirg{
		Name:     body.Name,
		OwnerID:  body.OwnerID,
		AdminIDs: body.AdminIDs,
		UserIDs:  body.UserIDs,
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	response.Created(c, pirg)
}

// Get handles GET /pirgs/:name.
func (h *Handler) Get(c *gin.Context) {
	pirg, ok := httpx.PirgParam(c, h.svc)
	if !ok {
		return
	}
	detail, err := h.svc.ResolvePirg(c.Request.Context(), pirg)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	response.OK(c, detail)
}

type membershipFunc func(ctx context.Context, pirg *models.Pirg, user *models.User) (*models.PirgDetail, error)

// fromBody runs op with the pirg from the path and the user from the body.
func (h *Handler) fromBody(op membershipFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		pirg, ok := httpx.PirgParam(c, h.svc)
		if !ok {
			return
		}
		user, ok := httpx.UserBody(c, h.svc)
		if !ok {
			return
		}
		h.apply(c, op, pirg, user)
	}
}

// fromPath runs op with the pirg and the :user_id from the path.
func (h *Handler) fromPath(op membershipFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		pirg, ok := httpx.PirgParam(c, h.svc)
		if !ok {
			return
		}
		user, ok := httpx.UserParam(c, h.svc, "user_id")
		if !ok {
			return
		}
		h.apply(c, op, pirg, user)
	}
}

func (h *Handler) apply(c *gin.Context, op membershipFunc, pirg *models.Pirg, user *models.User) {
	detail, err := op(c.Request.Context(), pirg, user)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// AddUser handles POST /pirgs/:name/users.
func (h *Handler) AddUser(c *gin.Context) { h.fromBody(h.svc.AddUserToPirg)(c) }

// RemoveUser handles DELETE /pirgs/:name/users/:user_id.
func (h *Handler) RemoveUser(c *gin.Context) { h.fromPath(h.svc.RemoveUserFromPirg)(c) }

// AddAdmin handles POST /pirgs/:name/admins.
func (h *Handler) AddAdmin(c *gin.Context) { h.fromBody(h.svc.AddAdminToPirg)(c) }

// RemoveAdmin handles DELETE /pirgs/:name/admins/:user_id.
func (h *Handler) RemoveAdmin(c *gin.Context) { h.fromPath(h.svc.RemoveAdminFromPirg)(c) }
