package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ksred/klear-trade/internal/database"
	"github.com/ksred/klear-trade/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	return NewService(db)
}

func TestListAndPrice(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.ListStock(ctx, "STK_THYAO", "thyao", "Turkish Airlines", decimal.RequireFromString("284.50"))
	require.NoError(t, err)
	_, err = s.ListStock(ctx, "STK_AKBNK", "AKBNK", "Akbank", decimal.RequireFromString("41.20"))
	require.NoError(t, err)

	price, err := s.CurrentPrice(ctx, "STK_THYAO")
	require.NoError(t, err)
	assert.Equal(t, "284.50", price.StringFixed(2))

	stocks, err := s.ListStocks(ctx)
	require.NoError(t, err)
	require.Len(t, stocks, 2)
	assert.Equal(t, "AKBNK", stocks[0].Symbol)
	assert.Equal(t, "THYAO", stocks[1].Symbol)

	stock, err := s.SetPrice(ctx, "STK_THYAO", decimal.RequireFromString("290"))
	require.NoError(t, err)
	assert.Equal(t, "290.00", stock.CurrentPrice.StringFixed(2))
}

func TestUnknownAndInactiveStocks(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.CurrentPrice(ctx, "STK_404")
	assert.ErrorIs(t, err, types.ErrStockNotFound)

	_, err = s.SetPrice(ctx, "STK_404", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, types.ErrStockNotFound)

	_, err = s.ListStock(ctx, "STK_OLD", "OLD", "Delisted", decimal.NewFromInt(5))
	require.NoError(t, err)
	require.NoError(t, s.db.db.Model(&types.Stock{}).Where("stock_id = ?", "STK_OLD").Update("active", false).Error)

	_, err = s.Stock(ctx, "STK_OLD")
	assert.ErrorIs(t, err, types.ErrStockNotFound)
}

func TestPriceValidation(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.ListStock(ctx, "STK_A", "A", "", decimal.Zero)
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = s.ListStock(ctx, "STK_A", "A", "", decimal.NewFromInt(3))
	require.NoError(t, err)

	_, err = s.SetPrice(ctx, "STK_A", decimal.NewFromInt(-3))
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestDrifterStaysWithinBounds(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	_, err := s.ListStock(ctx, "STK_A", "A", "", decimal.NewFromInt(100))
	require.NoError(t, err)

	d := NewDrifter(s, 0)
	for i := 0; i < 10; i++ {
		before, err := s.CurrentPrice(ctx, "STK_A")
		require.NoError(t, err)
		require.NoError(t, d.Step(ctx))
		after, err := s.CurrentPrice(ctx, "STK_A")
		require.NoError(t, err)

		bound := before.Mul(maxVariance).Add(decimal.RequireFromString("0.01"))
		assert.True(t, after.Sub(before).Abs().LessThanOrEqual(bound), "moved from %s to %s", before, after)
	}
}

func TestSetPriceHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := newTestService(t)
	_, err := s.ListStock(context.Background(), "STK_A", "A", "", decimal.NewFromInt(10))
	require.NoError(t, err)

	router := gin.New()
	h := NewGinHandlers(s)
	router.PUT("/stocks/:stock_id/price", h.SetPriceHandler())
	router.GET("/stocks", h.ListStocksHandler())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/stocks/STK_A/price", strings.NewReader(`{"price":"12.75"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"current_price":"12.75"`)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/stocks/STK_B/price", strings.NewReader(`{"price":"1"}`))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
