package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kestrelworks/orgvault/internal/services"
)

type ProjectHandler struct {
	projectService services.ProjectService
}

func NewProjectHandler(projectService services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

func (ph *ProjectHandler) Create(c *gin.Context) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Budget      int64  `json:"budget"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	project, version, receipt, err := ph.projectService.Create(c.Request.Context(), services.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Budget:      req.Budget,
	})
	if err != nil {
		RespondVersioningError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"project": project, "version": version, "receipt": receipt})
}

func (ph *ProjectHandler) List(c *gin.Context) {
	offset, limit := pagination(c)
	projects, err := ph.projectService.List(c.Request.Context(), c.Query("branch"), offset, limit)
	if err != nil {
		RespondVersioningError(c, err)
		return
	}
	RespondOK(c, gin.H{"projects": projects})
}

func (ph *ProjectHandler) Get(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	version, err := ph.projectService.GetCurrent(c.Request.Context(), projectID, c.Query("branch"))
	if err != nil {
		RespondVersioningError(c, err)
		return
	}
	if version == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		return
	}
	RespondOK(c, gin.H{"project": version})
}

func (ph *ProjectHandler) GetAsOf(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	at, err := time.Parse(time.RFC3339, c.Query("at"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'at' must be RFC3339"})
		return
	}
	version, err := ph.projectService.GetAsOf(c.Request.Context(), projectID, c.Query("branch"), at)
	if err != nil {
		RespondVersioningError(c, err)
		return
	}
	if version == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no version at that instant"})
		return
	}
	RespondOK(c, gin.H{"project": version})
}

func (ph *ProjectHandler) History(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	history, err := ph.projectService.History(c.Request.Context(), projectID, c.Query("branch"))
	if err != nil {
		RespondVersioningError(c, err)
		return
	}
	RespondOK(c, gin.H{"history": history})
}

func (ph *ProjectHandler) Branches(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	branches, err := ph.projectService.Branches(c.Request.Context(), projectID)
	if err != nil {
		RespondVersioningError(c, err)
		return
	}
	RespondOK(c, gin.H{"branches": branches})
}

func (ph *ProjectHandler) Update(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Budget      *int64  `json:"budget"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	version, receipt, err := ph.projectService.Update(c.Request.Context(), projectID, c.Query("branch"), services.UpdateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Budget:      req.Budget,
	})
	if err != nil {
		RespondVersioningError(c, err)
		return
	}
	RespondOK(c, gin.H{"project": version, "receipt": receipt})
}

func (ph *ProjectHandler) Delete(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := ph.projectService.Delete(c.Request.Context(), projectID, c.Query("branch")); err != nil {
		RespondVersioningError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "project deleted"})
}

func (ph *ProjectHandler) CreateBranch(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
		From string `json:"from"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	version, receipt, err := ph.projectService.CreateBranch(c.Request.Context(), projectID, req.Name, req.From)
	if err != nil {
		RespondVersioningError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"project": version, "receipt": receipt})
}

func (ph *ProjectHandler) Merge(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Source string `json:"source"`
		Target string `json:"target"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	version, receipt, err := ph.projectService.Merge(c.Request.Context(), projectID, req.Source, req.Target)
	if err != nil {
		RespondVersioningError(c, err)
		return
	}
	RespondOK(c, gin.H{"project": version, "receipt": receipt})
}

func (ph *ProjectHandler) Revert(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Branch      string     `json:"branch"`
		ToVersionID *uuid.UUID `json:"to_version_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	version, receipt, err := ph.projectService.Revert(c.Request.Context(), projectID, req.Branch, req.ToVersionID)
	if err != nil {
		RespondVersioningError(c, err)
		return
	}
	RespondOK(c, gin.H{"project": version, "receipt": receipt})
}
