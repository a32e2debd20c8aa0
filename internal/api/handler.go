package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const sessionCookie = "session_token"

// principalKey is the gin context key the resolved user is stored under.
const principalKey = "principal"

// Handler contains HTTP handlers
type Handler struct {
	strategy auth.Strategy
	accounts *service.AccountService
	catalog  *service.CatalogService
	carts    *service.CartService
	checkout *service.CheckoutService
}

// NewHandler creates a new HTTP handler. The authentication strategy is
// injected here; handlers never know which concrete mechanism is in use.
func NewHandler(
	strategy auth.Strategy,
	accounts *service.AccountService,
	catalog *service.CatalogService,
	carts *service.CartService,
	checkout *service.CheckoutService,
) *Handler {
	return &Handler{
		strategy: strategy,
		accounts: accounts,
		catalog:  catalog,
		carts:    carts,
		checkout: checkout,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(h.resolvePrincipal())
	{
		v1.POST("/auth/register", h.register)
		v1.POST("/auth/login", h.login)
		v1.POST("/auth/logout", h.logout)

		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)

		user := v1.Group("")
		user.Use(h.loginRequired())
		{
			user.GET("/cart", h.viewCart)
			user.POST("/cart/items", h.addToCart)
			user.DELETE("/cart/items/:id", h.removeFromCart)
			user.POST("/checkout", h.placeOrder)
			user.GET("/orders", h.listOrders)
			user.GET("/orders/:id", h.getOrder)
		}

		admin := v1.Group("/admin")
		admin.Use(h.loginRequired(), h.adminRequired())
		{
			admin.POST("/products", h.createProduct)
			admin.PUT("/products/:id", h.updateProduct)
			admin.DELETE("/products/:id", h.deleteProduct)
			admin.DELETE("/users/:id", h.deleteUser)
		}
	}
}

// credentialFromRequest pulls the session credential from the Authorization
// header or, failing that, the session cookie.
func credentialFromRequest(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := c.Cookie(sessionCookie); err == nil {
		return cookie
	}
	return ""
}

// resolvePrincipal resolves the current user once per request. An invalid or
// missing credential yields an anonymous request, not a rejection; only a
// directory outage aborts.
func (h *Handler) resolvePrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.strategy.ResolvePrincipal(c.Request.Context(), credentialFromRequest(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "Authentication unavailable, try again",
			})
			return
		}
		if user != nil {
			c.Set(principalKey, user)
		}
		c.Next()
	}
}

// currentUser returns the resolved principal, or nil for anonymous.
func currentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(principalKey); ok {
		return v.(*models.User)
	}
	return nil
}

func (h *Handler) loginRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentUser(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "You need to log in",
			})
		}
	}
}

func (h *Handler) adminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := auth.RequireAdmin(currentUser(c)); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Admin access required",
			})
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// register handles account creation
func (h *Handler) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	user, err := h.accounts.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUsernameRequired),
			errors.Is(err, service.ErrPasswordTooShort):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrUsernameTaken):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Registration successful. Please log in.",
		"user":    user,
	})
}

// login handles credential verification and session issuance
func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	user, err := h.strategy.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Authentication unavailable, try again",
		})
		return
	}
	if user == nil {
		util.LoginFailuresTotal.Inc()
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid username or password",
		})
		return
	}

	token, err := h.strategy.IssueCredential(c.Request.Context(), user)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Authentication unavailable, try again",
		})
		return
	}

	util.LoginSuccessTotal.Inc()
	c.SetCookie(sessionCookie, token, 0, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}

// logout revokes the current credential
func (h *Handler) logout(c *gin.Context) {
	if err := h.strategy.RevokeCredential(c.Request.Context(), credentialFromRequest(c)); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Failed to log out, try again",
		})
		return
	}

	c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// listProducts handles catalog browsing
func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load products"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// getProduct handles single product lookup
func (h *Handler) getProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	product, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load product"})
		return
	}
	c.JSON(http.StatusOK, product)
}

type productRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Stock       int    `json:"stock"`
}

// createProduct handles admin product creation
func (h *Handler) createProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	product := &models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
	}
	if err := h.catalog.CreateProduct(c.Request.Context(), product); err != nil {
		h.renderCatalogError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Product added successfully.",
		"product": product,
	})
}

// updateProduct handles admin product edits
func (h *Handler) updateProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	product := &models.Product{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
	}
	if err := h.catalog.UpdateProduct(c.Request.Context(), product); err != nil {
		h.renderCatalogError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product updated successfully.",
		"product": product,
	})
}

// deleteProduct handles admin product deletion
func (h *Handler) deleteProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	if err := h.catalog.DeleteProduct(c.Request.Context(), id); err != nil {
		h.renderCatalogError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully."})
}

func (h *Handler) renderCatalogError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
	case errors.Is(err, service.ErrProductNameRequired),
		errors.Is(err, service.ErrNegativePrice),
		errors.Is(err, service.ErrNegativeStock):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Catalog operation failed"})
	}
}

// deleteUser handles admin account deletion with explicit cascade
func (h *Handler) deleteUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	if err := h.accounts.DeleteAccount(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}

// viewCart handles cart display
func (h *Handler) viewCart(c *gin.Context) {
	user := currentUser(c)

	lines, total, err := h.carts.ViewCart(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load cart"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": lines,
		"total": total,
	})
}

type addToCartRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity"`
}

// addToCart handles cart additions
func (h *Handler) addToCart(c *gin.Context) {
	user := currentUser(c)

	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	item, err := h.carts.AddToCart(c.Request.Context(), user.ID, req.ProductID, req.Quantity)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add to cart"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Added to your cart.",
		"item":    item,
	})
}

// removeFromCart handles cart line removal
func (h *Handler) removeFromCart(c *gin.Context) {
	user := currentUser(c)

	itemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
		return
	}

	if err := h.carts.RemoveFromCart(c.Request.Context(), user.ID, itemID); err != nil {
		if errors.Is(err, service.ErrCartItemNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Item not found in your cart"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove item"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Item removed from cart."})
}

// placeOrder handles checkout
func (h *Handler) placeOrder(c *gin.Context) {
	user := currentUser(c)

	result, err := h.checkout.Checkout(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Checkout unavailable, try again",
		})
		return
	}

	status := http.StatusCreated
	switch result.Status {
	case service.CheckoutEmptyCart:
		status = http.StatusBadRequest
	case service.CheckoutItemUnavailable, service.CheckoutInsufficientStock:
		status = http.StatusConflict
	}

	c.JSON(status, gin.H{
		"message": result.Message(),
		"result":  result,
	})
}

// listOrders handles order history
func (h *Handler) listOrders(c *gin.Context) {
	user := currentUser(c)

	orders, itemsByOrder, err := h.checkout.ListOrders(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load orders"})
		return
	}

	type orderView struct {
		models.Order
		Items []models.OrderItem `json:"items"`
	}

	views := make([]orderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, orderView{Order: order, Items: itemsByOrder[order.ID]})
	}

	c.JSON(http.StatusOK, gin.H{"orders": views})
}

// getOrder handles single order lookup
func (h *Handler) getOrder(c *gin.Context) {
	user := currentUser(c)

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	order, items, err := h.checkout.GetOrder(c.Request.Context(), user.ID, orderID)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load order"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
		"items": items,
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
