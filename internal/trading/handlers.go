package trading

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ksred/klear-trade/internal/types"
	"github.com/ksred/klear-trade/pkg/response"
)

// GinHandlers contains HTTP handlers for order endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// PreviewHandler handles POST requests to price an order and hold its funds
func (h *GinHandlers) PreviewHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PreviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		q, err := h.service.Preview(c.Request.Context(), c.GetString("clientID"), req)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, q)
	}
}

// CommitHandler handles POST requests to redeem a preview.
// A rejected commit still returns the REJECTED order in the body.
func (h *GinHandlers) CommitHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CommitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "preview_id is required")
			return
		}

		order, err := h.service.Commit(c.Request.Context(), c.GetString("clientID"), req.PreviewID)
		if order == nil {
			response.Handle(c, nil, err)
			return
		}
		response.Handle(c, order, err)
	}
}

func (h *GinHandlers) CancelHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID := c.Param("order_id")
		if orderID == "" {
			response.BadRequest(c, "Order ID is required")
			return
		}

		order, err := h.service.Cancel(c.Request.Context(), c.GetString("clientID"), orderID)
		if order == nil {
			response.Handle(c, nil, err)
			return
		}
		response.Handle(c, order, err)
	}
}

// GetOrderHandler handles GET requests to retrieve one of the caller's orders
func (h *GinHandlers) GetOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID := c.Param("order_id")
		if orderID == "" {
			response.BadRequest(c, "Order ID is required")
			return
		}

		order, err := h.service.GetOrder(c.Request.Context(), c.GetString("clientID"), orderID)
		if order == nil {
			response.Handle(c, nil, err)
			return
		}
		response.Handle(c, order, err)
	}
}

// ListOrdersHandler lists the caller's orders.
// Query parameters: account_id, stock_id, side, status, settlement_status, limit, offset
func (h *GinHandlers) ListOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := types.OrderFilter{
			ClientID:         c.GetString("clientID"),
			AccountID:        c.Query("account_id"),
			StockID:          c.Query("stock_id"),
			Side:             types.Side(strings.ToUpper(c.Query("side"))),
			Status:           types.OrderStatus(strings.ToUpper(c.Query("status"))),
			SettlementStatus: types.SettlementStatus(strings.ToUpper(c.Query("settlement_status"))),
		}

		var err error
		if v := c.Query("limit"); v != "" {
			if filter.Limit, err = strconv.Atoi(v); err != nil || filter.Limit < 0 {
				response.BadRequest(c, "limit must be a non-negative integer")
				return
			}
		}
		if v := c.Query("offset"); v != "" {
			if filter.Offset, err = strconv.Atoi(v); err != nil || filter.Offset < 0 {
				response.BadRequest(c, "offset must be a non-negative integer")
				return
			}
		}

		orders, err := h.service.ListOrders(c.Request.Context(), filter)
		response.Handle(c, orders, err)
	}
}
