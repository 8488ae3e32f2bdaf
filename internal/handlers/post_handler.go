package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"partnerhub/internal/services"
)

type PostHandler struct {
	posts   services.PostService
	storage services.StorageService
}

func NewPostHandler(posts services.PostService, storage services.StorageService) *PostHandler {
	return &PostHandler{posts: posts, storage: storage}
}

// @Summary      Active partnership posts
// @Tags         Posts
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  Envelope{data=[]models.Post}
// @Router       /posts/ [get]
func (h *PostHandler) List(c *gin.Context) {
	posts, err := h.posts.ListActivePosts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Post list", posts)
}

// @Summary      Create a partnership post
// @Tags         Posts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      services.CreatePostInput  true  "Post"
// @Success      201   {object}  Envelope{data=models.Post}
// @Failure      400   {object}  ErrorEnvelope
// @Router       /posts/ [post]
func (h *PostHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req services.CreatePostInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	post, err := h.posts.CreatePost(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "Post created", post)
}

// @Summary      Post detail
// @Tags         Posts
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Post id"
// @Success      200  {object}  Envelope{data=models.Post}
// @Failure      404  {object}  ErrorEnvelope
// @Router       /posts/{id}/ [get]
func (h *PostHandler) Get(c *gin.Context) {
	id, ok := pathInt64(c, "id")
	if !ok {
		respondError(c, services.ErrPostNotFound)
		return
	}
	post, err := h.posts.GetPost(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Post detail", post)
}

// @Summary      Categories
// @Tags         Posts
// @Produce      json
// @Success      200  {object}  Envelope{data=[]models.Category}
// @Router       /posts/categories/ [get]
func (h *PostHandler) Categories(c *gin.Context) {
	cats, err := h.posts.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Category list", cats)
}

// @Summary      Presigned upload for a post image
// @Tags         Posts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      services.UploadInput  true  "File name and content type"
// @Success      200   {object}  Envelope{data=services.UploadTicket}
// @Router       /posts/image-upload/ [post]
func (h *PostHandler) ImageUpload(c *gin.Context) {
	presignUpload(c, h.storage, services.FolderPosts)
}

// @Summary      My posts
// @Tags         Posts
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  Envelope{data=[]models.PostSummary}
// @Router       /posts/myposts/ [get]
func (h *PostHandler) MyPosts(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	posts, err := h.posts.MyPosts(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "My posts", posts)
}
