// Package mockapi is a local stand-in for the storefront REST backend. It
// serves the same routes under /api so the client can be developed and
// tested without the hosted service.
package mockapi

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const DefaultCheckoutURL = "https://checkout.mock.local/pay"

type JWTClaims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.StandardClaims
}

type Server struct {
	store       Store
	secret      []byte
	tokenTTL    time.Duration
	checkoutURL string
	origins     []string
	log         *zap.Logger
	now         func() time.Time

	mu     sync.Mutex
	faults map[string]int

	engine *gin.Engine
}

type Option func(*Server)

func WithSecret(secret string) Option {
	return func(s *Server) { s.secret = []byte(secret) }
}

func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) { s.tokenTTL = d }
}

func WithCheckoutURL(u string) Option {
	return func(s *Server) { s.checkoutURL = strings.TrimRight(u, "/") }
}

// WithAllowOrigins sets the CORS origins; empty allows any origin.
func WithAllowOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Server) { s.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func New(store Store, opts ...Option) *Server {
	s := &Server{
		store:       store,
		secret:      []byte("SECRET"),
		tokenTTL:    24 * time.Hour,
		checkoutURL: DefaultCheckoutURL,
		log:         zap.L(),
		now:         time.Now,
		faults:      make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("mockapi")
	s.engine = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

// FailRoute makes every request to the route answer with status. path is the
// route pattern below /api, e.g. "/orders/update/:id". A zero status clears
// the fault.
func (s *Server) FailRoute(method, path string, status int) {
	key := strings.ToUpper(method) + " /api" + path
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.faults, key)
		return
	}
	s.faults[key] = status
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog, s.faultInjection)

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
	}
	if len(s.origins) == 0 {
		corsCfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		corsCfg.AllowOrigins = s.origins
	}
	r.Use(cors.New(corsCfg))

	api := r.Group("/api")
	api.POST("/auth/register", s.register)
	api.POST("/auth/login", s.login)
	api.GET("/products", s.listProducts)

	auth := api.Group("", s.authMiddleware)
	{
		auth.GET("/cart/view", s.viewCart)
		auth.POST("/cart/add", s.addToCart)
		auth.PUT("/cart/update/:id", s.updateCart)
		auth.DELETE("/cart/remove/:id", s.removeCartItem)

		auth.POST("/orders/create", s.placeOrder)
		auth.GET("/orders/my-orders", s.myOrders)
		auth.POST("/orders/success", s.confirmOrders)
		auth.POST("/payments/checkout", s.checkout)
	}

	admin := auth.Group("", s.adminOnly)
	{
		admin.POST("/products/create", s.createProduct)
		admin.PUT("/products/update/:id", s.updateProduct)
		admin.DELETE("/products/delete/:id", s.deleteProduct)
		admin.GET("/orders", s.allOrders)
		admin.PUT("/orders/update/:id", s.updateOrderStatus)
	}
	return r
}

func (s *Server) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.log.Debug("request",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", c.Writer.Status()),
		zap.String("request_id", c.GetHeader("X-Request-ID")),
		zap.Duration("took", time.Since(start)),
	)
}

func (s *Server) faultInjection(c *gin.Context) {
	s.mu.Lock()
	status, ok := s.faults[c.Request.Method+" "+c.FullPath()]
	s.mu.Unlock()
	if ok {
		c.AbortWithStatusJSON(status, gin.H{"error": "injected failure"})
		return
	}
	c.Next()
}

func (s *Server) authMiddleware(c *gin.Context) {
	header := c.GetHeader("Authorization")
	tokenStr := strings.TrimPrefix(header, "Bearer ")
	if tokenStr == "" || tokenStr == header {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	uid, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.Set("userId", uid)
	c.Set("role", claims.Role)
	c.Next()
}

func (s *Server) adminOnly(c *gin.Context) {
	if !strings.EqualFold(c.GetString("role"), RoleAdmin) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
		return
	}
	c.Next()
}

func userID(c *gin.Context) primitive.ObjectID {
	id, _ := c.Get("userId")
	oid, _ := id.(primitive.ObjectID)
	return oid
}

func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": "already exists"})
	default:
		s.log.Error("store failure", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (s *Server) issueToken(u User) (string, error) {
	claims := JWTClaims{
		UserID: u.ID.Hex(),
		Role:   u.Role,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  s.now().Unix(),
			ExpiresAt: s.now().Add(s.tokenTTL).Unix(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ----- Auth -----

func (s *Server) register(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.fail(c, err)
		return
	}
	u := User{Name: req.Name, Email: req.Email, Phone: req.Phone, Password: string(hashed), Role: RoleCustomer}
	if err := s.store.InsertUser(c.Request.Context(), &u); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User registered", "user": u})
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	u, err := s.store.UserByEmail(c.Request.Context(), req.Email)
	if err != nil || bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	token, err := s.issueToken(u)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "role": u.Role, "user": u})
}

// ----- Products -----

func (s *Server) listProducts(c *gin.Context) {
	products, err := s.store.Products(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

type productRequest struct {
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Stock       int     `json:"stock"`
	Image       string  `json:"image"`
}

func (r productRequest) valid() bool {
	return strings.TrimSpace(r.Name) != "" && r.Price >= 0 && r.Stock >= 0
}

func (r productRequest) product(id primitive.ObjectID) Product {
	return Product{
		ID:          id,
		Name:        strings.TrimSpace(r.Name),
		Price:       r.Price,
		Description: r.Description,
		Stock:       r.Stock,
		Image:       r.Image,
	}
}

func (s *Server) createProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product"})
		return
	}
	p := req.product(primitive.NilObjectID)
	if err := s.store.InsertProduct(c.Request.Context(), &p); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) updateProduct(c *gin.Context) {
	id, ok := objectID(c)
	if !ok {
		return
	}
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product"})
		return
	}
	p := req.product(id)
	if err := s.store.UpdateProduct(c.Request.Context(), p); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) deleteProduct(c *gin.Context) {
	id, ok := objectID(c)
	if !ok {
		return
	}
	if err := s.store.DeleteProduct(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
}

func objectID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return id, false
	}
	return id, true
}

// ----- Cart -----

type cartLine struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

func (s *Server) viewCart(c *gin.Context) {
	ctx := c.Request.Context()
	cart, err := s.store.Cart(ctx, userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	lines := []cartLine{}
	for _, item := range cart.Items {
		p, err := s.store.Product(ctx, item.ProductID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			s.fail(c, err)
			return
		}
		lines = append(lines, cartLine{Product: p, Quantity: item.Quantity})
	}
	c.JSON(http.StatusOK, gin.H{"items": lines})
}

func (s *Server) addToCart(c *gin.Context) {
	var req struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Quantity < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	pid, err := primitive.ObjectIDFromHex(req.ProductID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	ctx := c.Request.Context()
	if _, err := s.store.Product(ctx, pid); err != nil {
		s.fail(c, err)
		return
	}
	cart, err := s.store.Cart(ctx, userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	found := false
	for i := range cart.Items {
		if cart.Items[i].ProductID == pid {
			cart.Items[i].Quantity += req.Quantity
			found = true
			break
		}
	}
	if !found {
		cart.Items = append(cart.Items, CartItem{ProductID: pid, Quantity: req.Quantity})
	}
	if err := s.store.SaveCart(ctx, cart); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Added to cart"})
}

func (s *Server) updateCart(c *gin.Context) {
	pid, ok := objectID(c)
	if !ok {
		return
	}
	var req struct {
		Change int `json:"change"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || (req.Change != 1 && req.Change != -1) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "change must be 1 or -1"})
		return
	}
	ctx := c.Request.Context()
	cart, err := s.store.Cart(ctx, userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	for i := range cart.Items {
		if cart.Items[i].ProductID != pid {
			continue
		}
		if cart.Items[i].Quantity+req.Change < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Quantity cannot be less than 1"})
			return
		}
		cart.Items[i].Quantity += req.Change
		if err := s.store.SaveCart(ctx, cart); err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Cart updated"})
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "item not in cart"})
}

func (s *Server) removeCartItem(c *gin.Context) {
	pid, ok := objectID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	cart, err := s.store.Cart(ctx, userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	for i := range cart.Items {
		if cart.Items[i].ProductID == pid {
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			break
		}
	}
	if err := s.store.SaveCart(ctx, cart); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Removed from cart"})
}

// ----- Orders -----

func (s *Server) placeOrder(c *gin.Context) {
	var req struct {
		CartItems []struct {
			Product struct {
				ID primitive.ObjectID `json:"_id"`
			} `json:"product"`
			Quantity int `json:"quantity"`
		} `json:"cartItems"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.CartItems) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cart is empty"})
		return
	}

	ctx := c.Request.Context()
	order := Order{
		UserID:    userID(c),
		Status:    StatusPending,
		CreatedAt: s.now().UTC(),
		Lines:     make([]OrderLine, 0, len(req.CartItems)),
	}
	var shortages []string
	for _, item := range req.CartItems {
		if item.Quantity < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quantity"})
			return
		}
		p, err := s.store.Product(ctx, item.Product.ID)
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Product not found: " + item.Product.ID.Hex()})
			return
		}
		if err != nil {
			s.fail(c, err)
			return
		}
		if p.Stock < item.Quantity {
			shortages = append(shortages, p.Name)
			continue
		}
		order.Lines = append(order.Lines, OrderLine{Product: p, Quantity: item.Quantity})
		order.TotalPrice += p.Price * float64(item.Quantity)
	}
	if len(shortages) > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Insufficient stock", "details": shortages})
		return
	}

	if err := s.store.InsertOrder(ctx, &order); err != nil {
		s.fail(c, err)
		return
	}
	for _, l := range order.Lines {
		if err := s.store.AdjustStock(ctx, l.Product.ID, -l.Quantity); err != nil {
			s.log.Warn("stock update failed", zap.String("product", l.Product.ID.Hex()), zap.Error(err))
		}
	}
	if err := s.store.SaveCart(ctx, Cart{UserID: order.UserID, Items: []CartItem{}}); err != nil {
		s.log.Warn("clearing cart failed", zap.Error(err))
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Order placed successfully", "order": order})
}

func (s *Server) myOrders(c *gin.Context) {
	s.listOrders(c, userID(c))
}

func (s *Server) allOrders(c *gin.Context) {
	s.listOrders(c, primitive.NilObjectID)
}

func (s *Server) listOrders(c *gin.Context, uid primitive.ObjectID) {
	orders, err := s.store.Orders(c.Request.Context(), uid)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (s *Server) updateOrderStatus(c *gin.Context) {
	id, ok := objectID(c)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	_ = c.ShouldBindJSON(&req)
	status, ok := canonicalStatus(req.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}
	o, err := s.store.SetOrderStatus(c.Request.Context(), id, status)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) confirmOrders(c *gin.Context) {
	n, err := s.store.ConfirmPending(c.Request.Context(), userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Orders confirmed", "updated": n})
}

// ----- Payments -----

func (s *Server) checkout(c *gin.Context) {
	var req struct {
		Items []struct {
			Quantity int `json:"quantity"`
		} `json:"items"`
		Amount float64 `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Items) == 0 || req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to pay"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": s.checkoutURL + "/" + uuid.NewString()})
}

// Close releases the store.
func (s *Server) Close(ctx context.Context) error {
	return s.store.Close(ctx)
}
