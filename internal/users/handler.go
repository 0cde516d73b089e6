package users

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hpcadmin/server/internal/directory"
	"github.com/hpcadmin/server/internal/httpx"
	"github.com/hpcadmin/server/internal/models"
	"github.com/hpcadmin/server/pkg/response"
)

// Handler handles user HTTP endpoints.
type Handler struct {
	svc *directory.Service
}

// NewHandler creates a users handler.
func NewHandler(svc *directory.Service) *Handler {
	return &Handler{svc: svc}
}

// CreateUserRequest is the body for POST /users.
type CreateUserRequest struct {
	Username  string `json:"username" binding:"required"`
	Firstname string `json:"firstname" binding:"required"`
	Lastname  string `json:"lastname" binding:"required"`
	Email     string `json:"email" binding:"required"`
	IsPI      bool   `json:"is_pi"`
	SponsorID *int64 `json:"sponsor_id"`
}

// Register mounts the user routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/users", h.List)
	r.POST("/users", h.Create)
	r.GET("/users/:ref", h.Get)
}

// List handles GET /users.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.ListUserDetails(c.Request.Context())
	if err != nil {
		httpx.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Create handles POST /users.
func (h *Handler) Create(c *gin.Context) {
	var body CreateUserRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "username, firstname, lastname and email required")
		return
	}
	user, err := h.svc.CreateUser(c.Request.Context(), directory.NewUser{
		Username:  body.Username,
		Firstname: body.Firstname,
		Lastname:  body.Lastname,
		Email:     body.Email,
		IsPI:      body.IsPI,
		SponsorID: body.SponsorID,
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	response.Created(c, user)
}

// Get handles GET /users/:ref. A numeric ref is an id, anything else a
// username.
func (h *Handler) Get(c *gin.Context) {
	ref := c.Param("ref")
	var (
		user *models.User
		err  error
	)
	if id, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil {
		user, err = h.svc.GetUserByID(c.Request.Context(), id)
	} else {
		user, err = h.svc.GetUserByUsername(c.Request.Context(), ref)
	}
	if err != nil {
		httpx.Error(c, err)
		return
	}
	if user == nil {
		httpx.Error(c, &directory.NotFoundError{Kind: directory.KindUser, Key: ref})
		return
	}
	detail, err := h.svc.ResolveUser(c.Request.Context(), user)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	response.OK(c, detail)
}
