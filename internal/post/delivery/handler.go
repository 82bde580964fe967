package delivery

import (
	authdelivery "blogpost-backend/internal/auth/delivery"
	"blogpost-backend/internal/post/dto"
	"blogpost-backend/internal/post/usecase"
	"blogpost-backend/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	msgRetrieved = "Data retrieved successfully."
	msgCreated   = "Data created successfully."
	msgUpdated   = "Data updated successfully."
	msgDeleted   = "Data deleted successfully."
)

// PostHandler handles post-related HTTP requests
type PostHandler struct {
	postUsecase usecase.PostUsecase
}

func NewPostHandler(postUsecase usecase.PostUsecase) *PostHandler {
	return &PostHandler{postUsecase: postUsecase}
}

// Index lists posts
// GET /api/v1/posts?itemsPerPage=10&page=1&q=...
func (h *PostHandler) Index(c *gin.Context) {
	var req dto.FilterRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BindError(c, err)
		return
	}

	page, err := h.postUsecase.List(c.Request.Context(), req.Filter())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, msgRetrieved, dto.NewListResponse(page))
}

// Store creates a post owned by the caller
// POST /api/v1/posts
func (h *PostHandler) Store(c *gin.Context) {
	var req dto.PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	post, err := h.postUsecase.Create(c.Request.Context(), authdelivery.CurrentUser(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msgCreated, post)
}

// Show
// GET /api/v1/posts/:id
func (h *PostHandler) Show(c *gin.Context) {
	post, err := h.postUsecase.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, msgRetrieved, post)
}

// Update replaces title, content and tags. Owner only.
// PUT /api/v1/posts/:id
func (h *PostHandler) Update(c *gin.Context) {
	var req dto.PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	post, err := h.postUsecase.Update(c.Request.Context(), authdelivery.CurrentUser(c), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, msgUpdated, post)
}

// Destroy soft-deletes a post. Owner only.
// DELETE /api/v1/posts/:id
func (h *PostHandler) Destroy(c *gin.Context) {
	if err := h.postUsecase.Delete(c.Request.Context(), authdelivery.CurrentUser(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, msgDeleted, nil)
}

// Register mounts the post routes on an authenticated group.
func (h *PostHandler) Register(group *gin.RouterGroup) {
	group.GET("/posts", h.Index)
	group.POST("/posts", h.Store)
	group.GET("/posts/:id", h.Show)
	group.PUT("/posts/:id", h.Update)
	group.DELETE("/posts/:id", h.Destroy)
}
