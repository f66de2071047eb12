package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type addToCartRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

func (h *handlers) getCart(c *gin.Context) {
	cart, err := h.deps.CartSvc.GetCart(c.Request.Context(), c.Param("userId"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *handlers) addToCart(c *gin.Context) {
	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "productId and a non-zero quantity are required")
		return
	}
	cart, err := h.deps.CartSvc.AddProductToCart(c.Request.Context(), c.Param("userId"), req.ProductID, req.Quantity)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// removeCartItem drops ?quantity= units of the line, or the whole line when
// no quantity is given.
func (h *handlers) removeCartItem(c *gin.Context) {
	qty, ok := queryInt(c, "quantity", 0)
	if !ok {
		return
	}
	cart, err := h.deps.CartSvc.RemoveCartItem(c.Request.Context(), c.Param("userId"), c.Param("itemId"), qty)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *handlers) clearCart(c *gin.Context) {
	cart, err := h.deps.CartSvc.ClearCart(c.Request.Context(), c.Param("userId"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}
