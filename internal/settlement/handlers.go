package settlement

import (
	"github.com/gin-gonic/gin"
	"github.com/ksred/klear-trade/pkg/response"
)

type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// AdvanceDayHandler is the day-advance trigger.
func (h *GinHandlers) AdvanceDayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := c.GetString("clientID")
		if actor == "" {
			actor = "operations"
		}

		result, err := h.service.AdvanceDay(c.Request.Context(), actor)
		response.Handle(c, result, err)
	}
}

func (h *GinHandlers) GetSimulationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sim, err := h.service.Calendar().Current(c.Request.Context())
		response.Handle(c, sim, err)
	}
}
