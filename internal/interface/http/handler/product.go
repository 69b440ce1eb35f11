package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xiebiao/rentalhub/internal/application/availability"
	appproduct "github.com/xiebiao/rentalhub/internal/application/product"
	"github.com/xiebiao/rentalhub/internal/interface/http/dto"
	"github.com/xiebiao/rentalhub/internal/interface/http/middleware"
	apperrors "github.com/xiebiao/rentalhub/pkg/errors"
	"github.com/xiebiao/rentalhub/pkg/response"
)

// ProductHandler 商品HTTP处理器
type ProductHandler struct {
	publishUseCase *appproduct.PublishProductUseCase
	getUseCase     *appproduct.GetProductUseCase
	listUseCase    *appproduct.ListProductsUseCase
	restockUseCase *appproduct.RestockUseCase
	availability   *availability.Service
}

// NewProductHandler 创建商品处理器
func NewProductHandler(
	publishUseCase *appproduct.PublishProductUseCase,
	getUseCase *appproduct.GetProductUseCase,
	listUseCase *appproduct.ListProductsUseCase,
	restockUseCase *appproduct.RestockUseCase,
	availabilitySvc *availability.Service,
) *ProductHandler {
	return &ProductHandler{
		publishUseCase: publishUseCase,
		getUseCase:     getUseCase,
		listUseCase:    listUseCase,
		restockUseCase: restockUseCase,
		availability:   availabilitySvc,
	}
}

// ListProducts 商品列表
// @Summary      商品列表
// @Description  分页查询可租商品，支持关键词和出租方筛选
// @Tags         商品
// @Produce      json
// @Param        page      query int    false "页码" default(1)
// @Param        page_size query int    false "每页数量" default(20)
// @Param        keyword   query string false "关键词"
// @Param        vendor_id query int    false "出租方ID"
// @Success      200 {object} response.Response{data=response.PageData} "查询成功"
// @Router       /api/v1/products [get]
func (h *ProductHandler) ListProducts(c *gin.Context) {
	var req dto.ListProductsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "参数错误: "+err.Error())
		return
	}

	result, err := h.listUseCase.Execute(c.Request.Context(), appproduct.ListProductsRequest{
		Page:     req.Page,
		PageSize: req.PageSize,
		Keyword:  req.Keyword,
		VendorID: req.VendorID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithPage(c, result.Products, result.Total, result.Page, result.PageSize)
}

// PublishProduct 发布商品
// @Summary      发布商品
// @Description  出租方发布可租商品（需登录，vendor角色）
// @Tags         商品
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body dto.PublishProductRequest true "商品信息"
// @Success      200 {object} response.Response{data=appproduct.ProductResponse} "发布成功"
// @Failure      403 {object} response.Response "非出租方"
// @Router       /api/v1/products [post]
func (h *ProductHandler) PublishProduct(c *gin.Context) {
	var req dto.PublishProductRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.publishUseCase.Execute(c.Request.Context(), appproduct.PublishProductRequest{
		Actor:       middleware.GetActor(c),
		Name:        req.Name,
		Description: req.Description,
		DailyRate:   req.DailyRate,
		Quantity:    req.Quantity,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// GetProduct 商品详情
// @Summary      商品详情
// @Tags         商品
// @Produce      json
// @Param        id path int true "商品ID"
// @Success      200 {object} response.Response{data=appproduct.ProductResponse} "查询成功"
// @Failure      404 {object} response.Response "商品不存在"
// @Router       /api/v1/products/{id} [get]
func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	result, err := h.getUseCase.Execute(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Restock 补货/报损
// @Summary      补货/报损
// @Description  调整实物数量，delta为正补货、为负报损（商品所属出租方或管理员）
// @Tags         商品
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path int                true "商品ID"
// @Param        request body dto.RestockRequest true "调整数量"
// @Success      200 {object} response.Response{data=appproduct.ProductResponse} "调整成功"
// @Router       /api/v1/products/{id}/restock [post]
func (h *ProductHandler) Restock(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.RestockRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.restockUseCase.Execute(c.Request.Context(), id, middleware.GetActor(c), req.Delta)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Availability 可用性查询
// @Summary      可用性查询
// @Description  查询商品在[start, end]内的可租数量；传quantity时同时返回是否满足
// @Tags         商品
// @Produce      json
// @Param        id       path  int    true  "商品ID"
// @Param        start    query string true  "开始时间(RFC3339)"
// @Param        end      query string true  "结束时间(RFC3339)"
// @Param        quantity query int    false "需求数量"
// @Success      200 {object} response.Response{data=availability.Result} "查询成功"
// @Router       /api/v1/products/{id}/availability [get]
func (h *ProductHandler) Availability(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.AvailabilityRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "参数错误: "+err.Error())
		return
	}

	result, err := h.availability.Check(c.Request.Context(), availability.Query{
		ProductID: id,
		Start:     req.Start,
		End:       req.End,
		Quantity:  req.Quantity,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// pathID 解析路径参数:id，失败时写入参数错误响应
func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "无效的ID")
		return 0, false
	}
	return uint(id), true
}
