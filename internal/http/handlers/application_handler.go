package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-journal/internal/domain"
	"github.com/tbourn/go-chat-journal/internal/services"
)

// CreateApplicationRequest is the payload accepted when registering an
// application.
type CreateApplicationRequest struct {
	Name string `json:"name" binding:"required"`
}

// UpdateApplicationRequest is the payload accepted when renaming an
// application.
type UpdateApplicationRequest struct {
	Name string `json:"name" binding:"required"`
}

// ApplicationResponse is the public shape of an application. The internal
// database ID is never exposed; clients address applications by token.
type ApplicationResponse struct {
	Token      string    `json:"token"`
	Name       string    `json:"name"`
	ChatsCount int64     `json:"chats_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func applicationResponse(app *domain.Application) ApplicationResponse {
	return ApplicationResponse{
		Token:      app.Token,
		Name:       app.Name,
		ChatsCount: app.ChatsCount,
		CreatedAt:  app.CreatedAt,
		UpdatedAt:  app.UpdatedAt,
	}
}

// CreateApplication handles POST /applications.
func (h *Handlers) CreateApplication(c *gin.Context) {
	var req CreateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", err)
		return
	}

	app, err := h.appSvc.Create(c.Request.Context(), req.Name)
	if err != nil {
		if errors.Is(err, services.ErrEmptyName) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name must not be empty", err)
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, "could not create application", err)
		return
	}
	ok(c, http.StatusCreated, applicationResponse(app))
}

// ShowApplication handles GET /applications/:token.
func (h *Handlers) ShowApplication(c *gin.Context) {
	app, err := h.appSvc.Get(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, services.ErrApplicationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "application not found", err)
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not fetch application", err)
		return
	}
	ok(c, http.StatusOK, applicationResponse(app))
}

// UpdateApplication handles PUT /applications/:token.
func (h *Handlers) UpdateApplication(c *gin.Context) {
	var req UpdateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", err)
		return
	}

	token := c.Param("token")
	if err := h.appSvc.UpdateName(c.Request.Context(), token, req.Name); err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyName):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name must not be empty", err)
		case errors.Is(err, services.ErrApplicationNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "application not found", err)
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not update application", err)
		}
		return
	}

	app, err := h.appSvc.Get(c.Request.Context(), token)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not fetch application", err)
		return
	}
	ok(c, http.StatusOK, applicationResponse(app))
}
