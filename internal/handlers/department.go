package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kestrelworks/orgvault/internal/services"
)

type DepartmentHandler struct {
	departmentService services.DepartmentService
}

func NewDepartmentHandler(departmentService services.DepartmentService) *DepartmentHandler {
	return &DepartmentHandler{departmentService: departmentService}
}

func (dh *DepartmentHandler) Create(c *gin.Context) {
	var req struct {
		Code      string     `json:"code"`
		Name      string     `json:"name"`
		ManagerID *uuid.UUID `json:"manager_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	department, version, receipt, err := dh.departmentService.Create(c.Request.Context(), services.CreateDepartmentInput{
		Code:      req.Code,
		Name:      req.Name,
		ManagerID: req.ManagerID,
	})
	if err != nil {
		RespondVersioningError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"department": department, "version": version, "receipt": receipt})
}

func (dh *DepartmentHandler) List(c *gin.Context) {
	offset, limit := pagination(c)
	departments, err := dh.departmentService.List(c.Request.Context(), offset, limit)
	if err != nil {
		RespondVersioningError(c, err)
		return
	}
	RespondOK(c, gin.H{"departments": departments})
}

func (dh *DepartmentHandler) Get(c *gin.Context) {
	// /:id also answers lookups by code for convenience.
	if code := c.Param("id"); uuidInvalid(code) {
		department, version, err := dh.departmentService.GetByCode(c.Request.Context(), code)
		if err != nil {
			RespondVersioningError(c, err)
			return
		}
		if department == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "department not found"})
			return
		}
		RespondOK(c, gin.H{"department": department, "version": version})
		return
	}
	departmentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	version, err := dh.departmentService.GetCurrent(c.Request.Context(), departmentID)
	if err != nil {
		RespondVersioningError(c, err)
		return
	}
	if version == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "department not found"})
		return
	}
	RespondOK(c, gin.H{"department": version})
}

func (dh *DepartmentHandler) GetAsOf(c *gin.Context) {
	departmentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	at, err := time.Parse(time.RFC3339, c.Query("at"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'at' must be RFC3339"})
		return
	}
	version, err := dh.departmentService.GetAsOf(c.Request.Context(), departmentID, at)
	if err != nil {
		RespondVersioningError(c, err)
		return
	}
	if version == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no version at that instant"})
		return
	}
	RespondOK(c, gin.H{"department": version})
}

func (dh *DepartmentHandler) History(c *gin.Context) {
	departmentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	history, err := dh.departmentService.History(c.Request.Context(), departmentID)
	if err != nil {
		RespondVersioningError(c, err)
		return
	}
	RespondOK(c, gin.H{"history": history})
}

func (dh *DepartmentHandler) Update(c *gin.Context) {
	departmentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Name         *string    `json:"name"`
		ManagerID    *uuid.UUID `json:"manager_id"`
		ClearManager bool       `json:"clear_manager"`
		IsActive     *bool      `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	version, receipt, err := dh.departmentService.Update(c.Request.Context(), departmentID, services.UpdateDepartmentInput{
		Name:         req.Name,
		ManagerID:    req.ManagerID,
		ClearManager: req.ClearManager,
		IsActive:     req.IsActive,
	})
	if err != nil {
		RespondVersioningError(c, err)
		return
	}
	RespondOK(c, gin.H{"department": version, "receipt": receipt})
}

func (dh *DepartmentHandler) Delete(c *gin.Context) {
	departmentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := dh.departmentService.Delete(c.Request.Context(), departmentID); err != nil {
		RespondVersioningError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "department deleted"})
}

func (dh *DepartmentHandler) Restore(c *gin.Context) {
	departmentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	version, err := dh.departmentService.Undelete(c.Request.Context(), departmentID)
	if err != nil {
		RespondVersioningError(c, err)
		return
	}
	RespondOK(c, gin.H{"department": version})
}

func uuidInvalid(s string) bool {
	_, err := uuid.Parse(s)
	return err != nil
}
