package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"teakspice-storefront/internal/admin"
	"teakspice-storefront/internal/apperr"
	"teakspice-storefront/internal/model"
	"teakspice-storefront/internal/notice"
	"teakspice-storefront/internal/router"
)

type productCard struct {
	model.Product
	InCart bool `json:"inCart"`
}

func (s *Server) nav(c *gin.Context) {
	role := s.app.Session.CurrentRole()
	c.JSON(http.StatusOK, gin.H{"role": role.String(), "links": router.NavLinks(role)})
}

func (s *Server) home(c *gin.Context) {
	if err := s.app.Catalog.Load(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, router.ViewHome, gin.H{"products": s.cards()})
}

func (s *Server) cards() []productCard {
	products := s.app.Catalog.Products()
	out := make([]productCard, 0, len(products))
	for _, p := range products {
		out = append(out, productCard{Product: p, InCart: s.app.Catalog.InCart(p.ID)})
	}
	return out
}

func (s *Server) login(c *gin.Context) {
	var creds model.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		s.fail(c, apperr.Validation("web.login", "email and password are required"))
		return
	}
	sess, err := s.app.Session.Login(c.Request.Context(), creds)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.redirect(c, router.LoginTarget(sess.RoleOf()))
}

func (s *Server) register(c *gin.Context) {
	var reg model.Registration
	if err := c.ShouldBindJSON(&reg); err != nil {
		s.fail(c, apperr.Validation("web.register", "malformed registration"))
		return
	}
	if strings.TrimSpace(reg.Name) == "" || strings.TrimSpace(reg.Email) == "" || reg.Password == "" {
		err := apperr.Validation("web.register", "name, email and password are required")
		s.app.Notices.Notify(notice.Failure("Please fill in all fields", err))
		s.fail(c, err)
		return
	}
	if err := s.app.API.Register(c.Request.Context(), reg); err != nil {
		s.app.Notices.Notify(notice.Failure("Registration failed", err))
		s.fail(c, err)
		return
	}
	s.app.Notices.Notify(notice.Info("Registration successful! Please login."))
	s.redirect(c, router.ViewLogin)
}

func (s *Server) logout(c *gin.Context) {
	s.app.Session.Logout()
	s.redirect(c, router.ViewLogin)
}

func (s *Server) addToCart(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if s.app.Session.CurrentRole() != model.RoleAnonymous {
		if _, ok := s.app.Catalog.Product(id); !ok {
			if err := s.app.Catalog.Load(ctx); err != nil {
				s.fail(c, err)
				return
			}
		}
		if err := s.ensureCart(ctx); err != nil {
			s.fail(c, err)
			return
		}
	}
	next, err := s.app.Catalog.AddToCart(ctx, id)
	if next == router.ViewLogin {
		s.redirect(c, next)
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, router.ViewHome, gin.H{"products": s.cards()})
}

// ensureCart loads the cart unless it already holds a live snapshot.
func (s *Server) ensureCart(ctx context.Context) error {
	if s.app.Cart.Ready() {
		return nil
	}
	return s.app.Cart.Load(ctx)
}

func (s *Server) cartData() gin.H {
	return gin.H{"lines": s.app.Cart.Lines(), "total": s.app.Cart.Total()}
}

func (s *Server) showCart(c *gin.Context) {
	if err := s.app.Cart.Load(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, router.ViewCart, s.cartData())
}

func (s *Server) changeQuantity(delta int) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := s.ensureCart(ctx); err != nil {
			s.fail(c, err)
			return
		}
		if err := s.app.Cart.ChangeQuantity(ctx, c.Param("id"), delta); err != nil {
			s.fail(c, err)
			return
		}
		s.render(c, router.ViewCart, s.cartData())
	}
}

func (s *Server) removeLine(c *gin.Context) {
	ctx := c.Request.Context()
	if err := s.ensureCart(ctx); err != nil {
		s.fail(c, err)
		return
	}
	if err := s.app.Cart.Remove(ctx, c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, router.ViewCart, s.cartData())
}

func (s *Server) placeOrder(c *gin.Context) {
	ctx := c.Request.Context()
	if err := s.ensureCart(ctx); err != nil {
		s.fail(c, err)
		return
	}
	next, err := s.app.Cart.PlaceOrder(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.redirect(c, next)
}

func (s *Server) ensureOrders(ctx context.Context) error {
	if s.app.Checkout.Ready() {
		return nil
	}
	return s.app.Checkout.Load(ctx)
}

func (s *Server) ordersData() gin.H {
	return gin.H{
		"orders":     s.app.Checkout.Orders(),
		"selected":   s.app.Checkout.SelectedIDs(),
		"amount":     s.app.Checkout.Amount(),
		"hasPending": s.app.Checkout.HasPending(),
	}
}

func (s *Server) showOrders(c *gin.Context) {
	if err := s.app.Checkout.Load(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, router.ViewOrders, s.ordersData())
}

func (s *Server) selectOrder(c *gin.Context) {
	if err := s.ensureOrders(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	if err := s.app.Checkout.Select(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, router.ViewOrders, s.ordersData())
}

func (s *Server) deselectOrder(c *gin.Context) {
	if err := s.ensureOrders(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	s.app.Checkout.Deselect(c.Param("id"))
	s.render(c, router.ViewOrders, s.ordersData())
}

func (s *Server) pay(c *gin.Context) {
	ctx := c.Request.Context()
	if err := s.ensureOrders(ctx); err != nil {
		s.fail(c, err)
		return
	}
	url, err := s.app.Checkout.ProceedToPayment(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.redirectURL(c, url)
}

func (s *Server) success(c *gin.Context) {
	next, err := s.app.Checkout.ConfirmPayment(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	s.redirect(c, next)
}

// ensureAdmin mounts the dashboard unless it is already live. A failed load
// still leaves it mounted with whatever resource did arrive.
func (s *Server) ensureAdmin(c *gin.Context) bool {
	if s.app.Admin.Mounted() {
		return true
	}
	next, err := s.app.Admin.Mount(c.Request.Context())
	if next != router.ViewAdmin {
		s.redirect(c, next)
		return false
	}
	if err != nil {
		s.fail(c, err)
		return false
	}
	return true
}

func (s *Server) adminData() gin.H {
	products, orders := s.app.Admin.Products(), s.app.Admin.Orders()
	draft, editID := s.app.Admin.Draft()
	return gin.H{
		"products":      products.Items,
		"productsError": errText(products.Err),
		"orders":        orders.Items,
		"ordersError":   errText(orders.Err),
		"draft":         draft,
		"editing":       editID,
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (s *Server) showAdmin(c *gin.Context) {
	next, err := s.app.Admin.Mount(c.Request.Context())
	if next != router.ViewAdmin {
		s.redirect(c, next)
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, router.ViewAdmin, s.adminData())
}

func (s *Server) setDraft(c *gin.Context) {
	if !s.ensureAdmin(c) {
		return
	}
	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil {
		s.fail(c, apperr.Validation("web.draft", "malformed product form"))
		return
	}
	form := make(map[string]string, len(raw))
	for k, v := range raw {
		form[k] = cast.ToString(v)
	}
	d, err := admin.DraftFromForm(form)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.app.Admin.SetDraft(d)
	s.render(c, router.ViewAdmin, s.adminData())
}

func (s *Server) submitDraft(c *gin.Context) {
	if !s.ensureAdmin(c) {
		return
	}
	if _, err := s.app.Admin.SubmitDraft(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, router.ViewAdmin, s.adminData())
}

func (s *Server) startEdit(c *gin.Context) {
	if !s.ensureAdmin(c) {
		return
	}
	if err := s.app.Admin.StartEdit(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, router.ViewAdmin, s.adminData())
}

func (s *Server) cancelEdit(c *gin.Context) {
	if !s.ensureAdmin(c) {
		return
	}
	s.app.Admin.CancelEdit()
	s.render(c, router.ViewAdmin, s.adminData())
}

func (s *Server) deleteProduct(c *gin.Context) {
	if !s.ensureAdmin(c) {
		return
	}
	confirmed := cast.ToBool(c.Query("confirm"))
	ask := admin.ConfirmFunc(func(string) bool { return confirmed })
	err := s.app.Admin.DeleteProduct(c.Request.Context(), c.Param("id"), ask)
	if errors.Is(err, admin.ErrNotConfirmed) {
		c.JSON(http.StatusPreconditionRequired, gin.H{"confirm": admin.DeletePrompt, "notices": s.drain()})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, router.ViewAdmin, s.adminData())
}

func (s *Server) setOrderStatus(c *gin.Context) {
	if !s.ensureAdmin(c) {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, apperr.Validation("web.status", "status is required"))
		return
	}
	if _, err := s.app.Admin.SetOrderStatus(c.Request.Context(), c.Param("id"), body.Status); err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, router.ViewAdmin, s.adminData())
}
