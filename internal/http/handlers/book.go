package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursetree-backend/internal/http/response"
	"github.com/yungbote/coursetree-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursetree-backend/internal/services"
)

type BookHandler struct {
	books services.BookService
}

func NewBookHandler(books services.BookService) *BookHandler {
	return &BookHandler{books: books}
}

// GET /api/books?limit=&offset=
func (h *BookHandler) ListBooks(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	ctx := c.Request.Context()
	books, err := h.books.List(ctx, ctxutil.OwnerID(ctx), limit, offset)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"books": books})
}

// GET /api/books/:id
func (h *BookHandler) GetBook(c *gin.Context) {
	ctx := c.Request.Context()
	b, err := h.books.Get(ctx, strings.TrimSpace(c.Param("id")), ctxutil.OwnerID(ctx))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"book": b})
}

// GET /api/books/:id/cover
func (h *BookHandler) GetCover(c *gin.Context) {
	ctx := c.Request.Context()
	png, err := h.books.Cover(ctx, strings.TrimSpace(c.Param("id")), ctxutil.OwnerID(ctx))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "image/png", png)
}
