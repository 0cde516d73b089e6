// Package httpx holds the helpers shared by the directory HTTP handlers:
// error mapping, path parameter parsing and entity resolution.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hpcadmin/server/internal/directory"
	"github.com/hpcadmin/server/internal/models"
	"github.com/hpcadmin/server/pkg/response"
)

// Error writes err with the status of its domain type: validation 400,
// not found and invalid reference 404, already exists 409, anything else 500.
func Error(c *gin.Context, err error) {
	var (
		ve *directory.ValidationError
		ie *directory.InvalidReferenceError
		nf *directory.NotFoundError
		ae *directory.AlreadyExistsError
	)
	switch {
	case errors.As(err, &ve):
		response.BadRequest(c, ve.Error())
	case errors.As(err, &ie):
		response.NotFound(c, ie.Error())
	case errors.As(err, &nf):
		response.NotFound(c, nf.Error())
	case errors.As(err, &ae):
		response.Conflict(c, ae.Error())
	case errors.Is(err, context.Canceled):
		_ = c.Error(err)
		response.ServiceUnavailable(c, "request canceled")
	default:
		_ = c.Error(err)
		response.Internal(c, "internal error")
	}
}

// ParseID reads a positive int64 path parameter. On failure it writes a 400
// and returns false.
func ParseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return id, true
}

// UserByID resolves id or writes the error response.
func UserByID(c *gin.Context, svc *directory.Service, id int64) (*models.User, bool) {
	u, err := svc.GetUserByID(c.Request.Context(), id)
	if err != nil {
		Error(c, err)
		return nil, false
	}
	if u == nil {
		Error(c, &directory.NotFoundError{Kind: directory.KindUser, Key: strconv.FormatInt(id, 10)})
		return nil, false
	}
	return u, true
}

// UserParam resolves the user named by a numeric path parameter.
func UserParam(c *gin.Context, svc *directory.Service, name string) (*models.User, bool) {
	id, ok := ParseID(c, name)
	if !ok {
		return nil, false
	}
	return UserByID(c, svc, id)
}

// PirgParam resolves the pirg named by the :name path parameter.
func PirgParam(c *gin.Context, svc *directory.Service) (*models.Pirg, bool) {
	name := c.Param("name")
	p, err := svc.GetPirgByName(c.Request.Context(), name)
	if err != nil {
		Error(c, err)
		return nil, false
	}
	if p == nil {
		Error(c, &directory.NotFoundError{Kind: directory.KindPirg, Key: name})
		return nil, false
	}
	return p, true
}

// GroupParam resolves :group_id within pirg. A group of another pirg is
// reported as not found.
func GroupParam(c *gin.Context, svc *directory.Service, pirg *models.Pirg) (*models.Group, bool) {
	id, ok := ParseID(c, "group_id")
	if !ok {
		return nil, false
	}
	g, err := svc.GetGroupByID(c.Request.Context(), id)
	if err != nil {
		Error(c, err)
		return nil, false
	}
	if g == nil || g.PirgID != pirg.ID {
		Error(c, &directory.NotFoundError{Kind: directory.KindGroup, Key: strconv.FormatInt(id, 10)})
		return nil, false
	}
	return g, true
}

// UserIDRequest is the body of the membership add endpoints.
type UserIDRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// UserBody binds a UserIDRequest and resolves the user.
func UserBody(c *gin.Context, svc *directory.Service) (*models.User, bool) {
	var body UserIDRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "user_id required")
		return nil, false
	}
	return UserByID(c, svc, body.UserID)
}
