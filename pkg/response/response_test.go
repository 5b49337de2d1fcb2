package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ksred/klear-trade/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(method string, data interface{}, err error) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, "/", nil)
	Handle(c, data, err)
	return w
}

func TestHandleSuccessStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, perform(http.MethodGet, "x", nil).Code)
	assert.Equal(t, http.StatusCreated, perform(http.MethodPost, "x", nil).Code)
}

func TestHandleErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", fmt.Errorf("%w: quantity must be positive", types.ErrValidation), http.StatusBadRequest, ErrCodeValidationFailed},
		{"insufficient funds", fmt.Errorf("reserve: %w", types.ErrInsufficientFunds), http.StatusUnprocessableEntity, ErrCodeInsufficientFunds},
		{"quote not found", types.ErrQuoteNotFound, http.StatusGone, ErrCodeQuoteNotFound},
		{"quote expired", types.ErrQuoteExpired, http.StatusGone, ErrCodeQuoteExpired},
		{"rejected wins over cause", fmt.Errorf("%w: %w", types.ErrOrderRejected, types.ErrAccountInactive), http.StatusUnprocessableEntity, ErrCodeOrderRejected},
		{"illegal transition", types.ErrIllegalStateTransition, http.StatusConflict, ErrCodeIllegalStateTransition},
		{"order not found", types.ErrOrderNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"gorm not found", gorm.ErrRecordNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"persistence failure", types.ErrPersistenceFailure, http.StatusInternalServerError, ErrCodeInternalError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := perform(http.MethodPost, nil, tt.err)
			assert.Equal(t, tt.status, w.Code)

			var body Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestHandleRejectedKeepsPayload(t *testing.T) {
	w := perform(http.MethodPost, map[string]string{"status": "REJECTED"}, types.ErrOrderRejected)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"REJECTED"`)
}
