package category

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/mathgpt/internal/model/taxonomy"
	"github.com/zhouzirui/mathgpt/pkg/utils"
)

// Handler 话题分类的HTTP处理器
type Handler struct {
	categories taxonomy.Registry
}

// New 创建分类处理器
func New(categories taxonomy.Registry) *Handler {
	return &Handler{categories: categories}
}

// RegisterRoutes 注册分类相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/categories", h.handleListCategories)
	r.Get("/categories/{key}", h.handleDescribeCategory)
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.categories.List())
}

// handleDescribeCategory 未知分类返回兜底分类
func (h *Handler) handleDescribeCategory(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.categories.Describe(chi.URLParam(r, "key")))
}
