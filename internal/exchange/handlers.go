package exchange

import (
	"github.com/gin-gonic/gin"
	"github.com/ksred/klear-trade/pkg/response"
	"github.com/shopspring/decimal"
)

type PriceRequest struct {
	Price decimal.Decimal `json:"price"`
}

type ListStockRequest struct {
	StockID string          `json:"stock_id" binding:"required"`
	Symbol  string          `json:"symbol" binding:"required"`
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
}

type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

func (h *GinHandlers) ListStocksHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stocks, err := h.service.ListStocks(c.Request.Context())
		response.Handle(c, stocks, err)
	}
}

func (h *GinHandlers) GetStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stock, err := h.service.Stock(c.Request.Context(), c.Param("stock_id"))
		response.Handle(c, stock, err)
	}
}

func (h *GinHandlers) ListStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListStockRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		stock, err := h.service.ListStock(c.Request.Context(), req.StockID, req.Symbol, req.Name, req.Price)
		response.Handle(c, stock, err)
	}
}

func (h *GinHandlers) SetPriceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PriceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		stock, err := h.service.SetPrice(c.Request.Context(), c.Param("stock_id"), req.Price)
		response.Handle(c, stock, err)
	}
}
