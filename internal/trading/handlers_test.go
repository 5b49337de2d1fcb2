package trading

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ksred/klear-trade/internal/types"
	"github.com/ksred/klear-trade/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(f *fixture, clientID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("clientID", clientID)
		c.Next()
	})

	h := NewGinHandlers(f.svc)
	orders := router.Group("/orders")
	orders.POST("/preview", h.PreviewHandler())
	orders.POST("/commit", h.CommitHandler())
	orders.GET("", h.ListOrdersHandler())
	orders.GET("/:order_id", h.GetOrderHandler())
	orders.POST("/:order_id/cancel", h.CancelHandler())
	return router
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *response.Error `json:"error"`
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestPreviewAndCommitOverHTTP(t *testing.T) {
	f := newFixture(t)
	f.openAccount(t, "ACC_1", "alice", "1002.10")
	router := newTestRouter(f, "alice")

	w, env := doJSON(t, router, http.MethodPost, "/orders/preview", map[string]interface{}{
		"account_id":     "ACC_1",
		"stock_id":       "STK_A",
		"side":           "BUY",
		"execution_type": "MARKET",
		"quantity":       100,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var q struct {
		PreviewID string `json:"preview_id"`
		NetAmount string `json:"net_amount"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &q))
	assert.Equal(t, "1002.1", q.NetAmount)

	w, env = doJSON(t, router, http.MethodPost, "/orders/commit", map[string]string{"preview_id": q.PreviewID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var order types.Order
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, types.OrderStatusExecuted, order.Status)

	w, env = doJSON(t, router, http.MethodPost, "/orders/commit", map[string]string{"preview_id": q.PreviewID})
	assert.Equal(t, http.StatusGone, w.Code)
	assert.Equal(t, response.ErrCodeQuoteNotFound, env.Error.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/orders/"+order.OrderID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, env = doJSON(t, router, http.MethodGet, "/orders?status=executed", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var orders []types.Order
	require.NoError(t, json.Unmarshal(env.Data, &orders))
	assert.Len(t, orders, 1)
}

func TestPreviewErrorsOverHTTP(t *testing.T) {
	f := newFixture(t)
	f.openAccount(t, "ACC_1", "alice", "1000.00")
	router := newTestRouter(f, "alice")

	w, env := doJSON(t, router, http.MethodPost, "/orders/preview", map[string]interface{}{
		"account_id": "ACC_1", "stock_id": "STK_A", "side": "BUY", "execution_type": "MARKET", "quantity": 100,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, response.ErrCodeInsufficientFunds, env.Error.Code)

	w, env = doJSON(t, router, http.MethodPost, "/orders/preview", map[string]interface{}{
		"account_id": "ACC_1", "stock_id": "STK_A", "side": "BUY", "execution_type": "MARKET", "quantity": 0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.ErrCodeValidationFailed, env.Error.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/orders/commit", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRejectedCommitReturnsOrder(t *testing.T) {
	f := newFixture(t)
	f.openAccount(t, "ACC_1", "alice", "2000")
	router := newTestRouter(f, "alice")

	q, err := f.svc.Preview(context.Background(), "alice", marketBuy("ACC_1", "STK_A", 10))
	require.NoError(t, err)
	_, err = f.ledger.SetActive(context.Background(), "ACC_1", false)
	require.NoError(t, err)

	w, env := doJSON(t, router, http.MethodPost, "/orders/commit", map[string]string{"preview_id": q.PreviewID})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, response.ErrCodeOrderRejected, env.Error.Code)

	var order types.Order
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, types.OrderStatusRejected, order.Status)
}

func TestGetOrderOwnership(t *testing.T) {
	f := newFixture(t)
	f.openAccount(t, "ACC_1", "alice", "2000")

	q, err := f.svc.Preview(context.Background(), "alice", marketBuy("ACC_1", "STK_A", 10))
	require.NoError(t, err)
	order, err := f.svc.Commit(context.Background(), "alice", q.PreviewID)
	require.NoError(t, err)

	w, _ := doJSON(t, newTestRouter(f, "alice"), http.MethodGet, "/orders/"+order.OrderID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, newTestRouter(f, "bob"), http.MethodGet, "/orders/"+order.OrderID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doJSON(t, newTestRouter(f, "alice"), http.MethodGet, "/orders?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
