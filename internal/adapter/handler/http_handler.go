package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

const (
	customerHeader    = "X-Customer-ID"
	idempotencyHeader = "Idempotency-Key"
	customerKey       = "customer_id"
)

func init() {
	binding.EnableDecoderDisallowUnknownFields = true
}

type HTTPHandler struct {
	engine   *gin.Engine
	carts    *service.CartService
	checkout *service.CheckoutService
	orders   *service.OrderService
	logger   *zap.Logger
}

type AddItemHTTPRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  *int   `json:"quantity"`
}

type UpdateItemHTTPRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

type CreateOrderHTTPRequest struct {
	AddressID string `json:"address_id" binding:"required"`
}

type UpdateOrderHTTPRequest struct {
	AddressID string `json:"address_id" binding:"required"`
}

type ListOrdersHTTPQuery struct {
	PlacedAfter    time.Time `form:"placed_after" time_format:"2006-01-02T15:04:05Z07:00"`
	PlacedBefore   time.Time `form:"placed_before" time_format:"2006-01-02T15:04:05Z07:00"`
	DeadlineAfter  time.Time `form:"deadline_after" time_format:"2006-01-02T15:04:05Z07:00"`
	DeadlineBefore time.Time `form:"deadline_before" time_format:"2006-01-02T15:04:05Z07:00"`
	Sort           string    `form:"sort"`
}

func NewHTTPHandler(
	carts *service.CartService,
	checkout *service.CheckoutService,
	orders *service.OrderService,
	logger *zap.Logger,
) *HTTPHandler {
	r := gin.New()
	r.Use(accessLog(logger), gin.Recovery())

	h := &HTTPHandler{
		engine:   r,
		carts:    carts,
		checkout: checkout,
		orders:   orders,
		logger:   logger,
	}
	h.registerRoutes()
	return h
}

func (h *HTTPHandler) Engine() *gin.Engine { return h.engine }

func (h *HTTPHandler) registerRoutes() {
	h.engine.GET("/health", h.HealthCheck)

	api := h.engine.Group("", requireCustomer())
	{
		carts := api.Group("/carts")
		carts.POST("", h.CreateCart)
		carts.GET("", h.ListCarts)
		carts.GET("/:id", h.GetCart)
		carts.DELETE("/:id", h.DeleteCart)
		carts.GET("/:id/items", h.ListItems)
		carts.POST("/:id/items", h.AddItem)
		carts.GET("/:id/items/:item_id", h.GetItem)
		carts.PUT("/:id/items/:item_id", h.UpdateItem)
		carts.DELETE("/:id/items/:item_id", h.RemoveItem)
		carts.POST("/:id/order", h.CreateOrder)

		orders := api.Group("/orders")
		orders.GET("", h.ListOrders)
		orders.GET("/:id", h.GetOrder)
		orders.PUT("/:id", h.UpdateOrder)
		orders.DELETE("/:id", h.DestroyOrder)
	}
}

func (h *HTTPHandler) CreateCart(c *gin.Context) {
	cart, err := h.carts.CreateCart(c.Request.Context(), customerID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newCartView(cart))
}

func (h *HTTPHandler) ListCarts(c *gin.Context) {
	carts, err := h.carts.ListCarts(c.Request.Context(), customerID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	views := make([]cartView, 0, len(carts))
	for _, cart := range carts {
		views = append(views, newCartView(cart))
	}
	c.JSON(http.StatusOK, views)
}

func (h *HTTPHandler) GetCart(c *gin.Context) {
	cart, err := h.carts.GetCart(c.Request.Context(), c.Param("id"), customerID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartView(cart))
}

func (h *HTTPHandler) DeleteCart(c *gin.Context) {
	if err := h.carts.DeleteCart(c.Request.Context(), c.Param("id"), customerID(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) ListItems(c *gin.Context) {
	items, err := h.carts.ListItems(c.Request.Context(), c.Param("id"), customerID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	views := make([]cartItemView, 0, len(items))
	for _, it := range items {
		views = append(views, newCartItemView(it))
	}
	c.JSON(http.StatusOK, views)
}

func (h *HTTPHandler) AddItem(c *gin.Context) {
	var req AddItemHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	item, err := h.carts.AddItem(c.Request.Context(), service.AddItemInput{
		CartID:     c.Param("id"),
		CustomerID: customerID(c),
		ProductID:  req.ProductID,
		Quantity:   qty,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newCartItemView(*item))
}

func (h *HTTPHandler) GetItem(c *gin.Context) {
	item, err := h.carts.GetItem(c.Request.Context(), c.Param("id"), c.Param("item_id"), customerID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartItemView(*item))
}

func (h *HTTPHandler) UpdateItem(c *gin.Context) {
	var req UpdateItemHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	item, err := h.carts.UpdateItemQuantity(c.Request.Context(), service.UpdateItemInput{
		CartID:     c.Param("id"),
		ItemID:     c.Param("item_id"),
		CustomerID: customerID(c),
		Quantity:   req.Quantity,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartItemView(*item))
}

func (h *HTTPHandler) RemoveItem(c *gin.Context) {
	err := h.carts.RemoveItem(c.Request.Context(), c.Param("id"), c.Param("item_id"), customerID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	order, err := h.checkout.CreateOrder(c.Request.Context(), service.CreateOrderInput{
		CartID:         c.Param("id"),
		CustomerID:     customerID(c),
		AddressID:      req.AddressID,
		IdempotencyKey: c.GetHeader(idempotencyHeader),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newOrderView(order))
}

func (h *HTTPHandler) ListOrders(c *gin.Context) {
	var q ListOrdersHTTPQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}

	sort := domain.OrderSort(q.Sort)
	if !sort.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported sort " + q.Sort})
		return
	}

	orders, err := h.orders.ListOrders(c.Request.Context(), domain.OrderFilter{
		OwnerID:        customerID(c),
		PlacedAfter:    q.PlacedAfter,
		PlacedBefore:   q.PlacedBefore,
		DeadlineAfter:  q.DeadlineAfter,
		DeadlineBefore: q.DeadlineBefore,
		Sort:           sort,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, newOrderView(o))
	}
	c.JSON(http.StatusOK, views)
}

func (h *HTTPHandler) GetOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"), customerID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderView(order))
}

func (h *HTTPHandler) UpdateOrder(c *gin.Context) {
	var req UpdateOrderHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	order, err := h.orders.UpdateOrder(c.Request.Context(), service.UpdateOrderInput{
		OrderID:    c.Param("id"),
		CustomerID: customerID(c),
		AddressID:  req.AddressID,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderView(order))
}

func (h *HTTPHandler) DestroyOrder(c *gin.Context) {
	if err := h.orders.DestroyOrder(c.Request.Context(), c.Param("id"), customerID(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) writeError(c *gin.Context, err error) {
	var (
		stockErr  *domain.InsufficientStockError
		maxErr    *domain.MaxQuantityExceededError
		lockedErr *domain.OrderLockedError
	)

	switch {
	case errors.As(err, &stockErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      err.Error(),
			"product_id": stockErr.ProductID,
			"available":  stockErr.Available,
			"requested":  stockErr.Requested,
		})
	case errors.As(err, &maxErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      err.Error(),
			"product_id": maxErr.ProductID,
			"max":        maxErr.Max,
			"requested":  maxErr.Requested,
		})
	case errors.As(err, &lockedErr),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrDuplicateRequest):
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate request"})
	default:
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// requireCustomer reads the caller identity set by the upstream gateway.
func requireCustomer() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(customerHeader)
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + customerHeader + " header"})
			return
		}
		c.Set(customerKey, id)
		c.Next()
	}
}

func customerID(c *gin.Context) string {
	return c.GetString(customerKey)
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("customer_id", c.GetString(customerKey)),
		)
	}
}
