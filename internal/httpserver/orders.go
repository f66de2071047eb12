package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/auth"
	"storefront/internal/domain"
	ordersvc "storefront/internal/service/order"
)

type createOrderRequest struct {
	ShippingAddress *domain.Address        `json:"shippingAddress"`
	Items           []ordersvc.ItemRequest `json:"items"`
	ClearCart       bool                   `json:"clearCart"`
}

type createOrderResponse struct {
	Order       *domain.Order `json:"order"`
	CheckoutURL string        `json:"checkoutUrl,omitempty"`
	// CheckoutError is set when the order was stored but the payment
	// session could not be opened; POST /orders/{id}/checkout retries.
	CheckoutError string `json:"checkoutError,omitempty"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

type statusResponse struct {
	Updated bool          `json:"updated"`
	Order   *domain.Order `json:"order"`
}

func (h *handlers) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid order payload")
		return
	}
	id, _ := identityFrom(c)
	ctx := c.Request.Context()

	o, err := h.deps.OrderSvc.CreateOrderFromCart(ctx, ordersvc.CreateInput{
		UserID:          id.UserID,
		ShippingAddress: req.ShippingAddress,
		Items:           req.Items,
		ClearCart:       req.ClearCart,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	resp := createOrderResponse{Order: o}
	checked, err := h.deps.OrderSvc.Checkout(ctx, o.ID)
	if err != nil {
		h.logger.WithError(err).WithField("order_id", o.ID).Warn("checkout after order creation")
		resp.CheckoutError = domain.MessageOf(err)
	} else {
		resp.Order, resp.CheckoutURL = checked, checked.CheckoutURL
	}
	c.JSON(http.StatusCreated, resp)
}

// listOrders returns the caller's orders. Admins may pass ?userId=.
func (h *handlers) listOrders(c *gin.Context) {
	id, _ := identityFrom(c)
	userID := id.UserID
	if other := c.Query("userId"); other != "" {
		if !auth.AuthorizeIdentity(id, other) {
			abortError(c, http.StatusForbidden, domain.KindForbidden, "not allowed to list these orders")
			return
		}
		userID = other
	}
	limit, ok := queryInt(c, "limit", 20)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}
	orders, err := h.deps.OrderSvc.ListOrders(c.Request.Context(), userID, limit, offset)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, listResponse[domain.Order]{Limit: limit, Offset: offset, Count: len(orders), Results: orders})
}

func (h *handlers) getOrder(c *gin.Context) {
	o, ok := h.ownedOrder(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handlers) checkoutOrder(c *gin.Context) {
	o, ok := h.ownedOrder(c)
	if !ok {
		return
	}
	checked, err := h.deps.OrderSvc.Checkout(c.Request.Context(), o.ID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, createOrderResponse{Order: checked, CheckoutURL: checked.CheckoutURL})
}

func (h *handlers) updateOrderStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required")
		return
	}
	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	o, ok := h.ownedOrder(c)
	if !ok {
		return
	}
	// Customers may only cancel; every other transition belongs to staff.
	if id, _ := identityFrom(c); !id.IsAdmin() && status != domain.OrderStatusCancelled {
		abortError(c, http.StatusForbidden, domain.KindForbidden, "only administrators may set status "+string(status))
		return
	}
	ctx := c.Request.Context()
	updated, err := h.deps.OrderSvc.UpdateOrderStatus(ctx, o.ID, status)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if updated {
		if o, err = h.deps.OrderSvc.GetOrder(ctx, o.ID); err != nil {
			writeError(c, h.logger, err)
			return
		}
	}
	c.JSON(http.StatusOK, statusResponse{Updated: updated, Order: o})
}

func (h *handlers) cancelOrder(c *gin.Context) {
	o, ok := h.ownedOrder(c)
	if !ok {
		return
	}
	cancelled, err := h.deps.OrderSvc.CancelOrder(c.Request.Context(), o.ID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cancelled)
}

// ownedOrder loads the order in the path and checks the caller may see it.
func (h *handlers) ownedOrder(c *gin.Context) (*domain.Order, bool) {
	o, err := h.deps.OrderSvc.GetOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		writeError(c, h.logger, err)
		return nil, false
	}
	id, _ := identityFrom(c)
	if !auth.AuthorizeIdentity(id, o.UserID) {
		abortError(c, http.StatusForbidden, domain.KindForbidden, "not allowed to access this order")
		return nil, false
	}
	return o, true
}
