package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kestrelworks/orgvault/internal/requestdata"
	"github.com/kestrelworks/orgvault/internal/services"
)

type UserHandler struct {
	userService services.UserService
}

func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (uh *UserHandler) GetMe(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	me, err := uh.userService.GetCurrent(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondVersioningError(c, err)
		return
	}
	RespondOK(c, gin.H{"me": me})
}

func (uh *UserHandler) List(c *gin.Context) {
	offset, limit := pagination(c)
	users, err := uh.userService.List(c.Request.Context(), offset, limit)
	if err != nil {
		RespondVersioningError(c, err)
		return
	}
	RespondOK(c, gin.H{"users": users})
}

func (uh *UserHandler) Get(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	user, err := uh.userService.GetCurrent(c.Request.Context(), userID)
	if err != nil {
		RespondVersioningError(c, err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	RespondOK(c, gin.H{"user": user})
}

func (uh *UserHandler) GetAsOf(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	at, err := time.Parse(time.RFC3339, c.Query("at"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'at' must be RFC3339"})
		return
	}
	user, err := uh.userService.GetAsOf(c.Request.Context(), userID, at)
	if err != nil {
		RespondVersioningError(c, err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no version at that instant"})
		return
	}
	RespondOK(c, gin.H{"user": user})
}

func (uh *UserHandler) History(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	history, err := uh.userService.History(c.Request.Context(), userID)
	if err != nil {
		RespondVersioningError(c, err)
		return
	}
	RespondOK(c, gin.H{"history": history})
}

func (uh *UserHandler) Update(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		FullName        *string    `json:"full_name"`
		Role            *string    `json:"role"`
		DepartmentID    *uuid.UUID `json:"department_id"`
		ClearDepartment bool       `json:"clear_department"`
		IsActive        *bool      `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, receipt, err := uh.userService.Update(c.Request.Context(), userID, services.UpdateUserInput{
		FullName:        req.FullName,
		Role:            req.Role,
		Department:      req.DepartmentID,
		ClearDepartment: req.ClearDepartment,
		IsActive:        req.IsActive,
	})
	if err != nil {
		RespondVersioningError(c, err)
		return
	}
	RespondOK(c, gin.H{"user": user, "receipt": receipt})
}

func (uh *UserHandler) Delete(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := uh.userService.Delete(c.Request.Context(), userID); err != nil {
		RespondVersioningError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "user deleted"})
}

func (uh *UserHandler) Restore(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	user, err := uh.userService.Undelete(c.Request.Context(), userID)
	if err != nil {
		RespondVersioningError(c, err)
		return
	}
	RespondOK(c, gin.H{"user": user})
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func pagination(c *gin.Context) (int, int) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return offset, limit
}
