package payment

import "github.com/gin-gonic/gin"

func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/bookings/:id/payment", h.GetBookingPayment)
}
