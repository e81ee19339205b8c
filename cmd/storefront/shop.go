package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"teakspice-storefront/internal/app"
	"teakspice-storefront/internal/model"
	"teakspice-storefront/internal/router"
)

func loginCmd(e *env) *cobra.Command {
	var creds model.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
	}
	cmd.RunE = e.withApp(func(ctx context.Context, a *app.Application) error {
		if creds.Password == "" {
			pw, err := readLine(cmd.InOrStdin(), cmd.ErrOrStderr(), "Password: ")
			if err != nil {
				return err
			}
			creds.Password = pw
		}
		sess, err := a.Session.Login(ctx, creds)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s; start at %s\n", sess.RoleOf(), router.LoginTarget(sess.RoleOf()))
		return nil
	})
	cmd.Flags().StringVarP(&creds.Email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&creds.Password, "password", "p", "", "Account password (prompted when empty)")
	return cmd
}

func logoutCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
	}
	cmd.RunE = e.withApp(func(ctx context.Context, a *app.Application) error {
		a.Session.Logout()
		fmt.Fprintln(cmd.OutOrStdout(), "logged out")
		return nil
	})
	return cmd
}

func whoamiCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the current role and navigation",
	}
	cmd.RunE = e.withApp(func(ctx context.Context, a *app.Application) error {
		out := cmd.OutOrStdout()
		role := a.Session.CurrentRole()
		fmt.Fprintf(out, "role: %s\n", role)
		if s, ok := a.Session.Current(); ok && s.UserID != "" {
			fmt.Fprintf(out, "user: %s\n", s.UserID)
		}
		for _, l := range router.NavLinks(role) {
			fmt.Fprintf(out, "  %-12s %s\n", l.Label, l.Path)
		}
		return nil
	})
	return cmd
}

func productsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List the catalog",
	}
	cmd.RunE = e.withApp(func(ctx context.Context, a *app.Application) error {
		if err := a.Catalog.Load(ctx); err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tPRICE\tSTOCK\tIN CART")
		for _, p := range a.Catalog.Products() {
			mark := ""
			if a.Catalog.InCart(p.ID) {
				mark = "yes"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", p.ID, p.Name, p.Price.StringFixed(2), p.Stock, mark)
		}
		return tw.Flush()
	})
	return cmd
}

func cartCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and change the cart",
	}

	show := &cobra.Command{Use: "show", Short: "Show cart lines and total"}
	show.RunE = e.withApp(func(ctx context.Context, a *app.Application) error {
		if err := loadCart(ctx, a); err != nil {
			return err
		}
		return printCart(show.OutOrStdout(), a)
	})

	add := &cobra.Command{Use: "add PRODUCT_ID", Short: "Add one unit of a product", Args: cobra.ExactArgs(1)}
	add.RunE = e.withApp(func(ctx context.Context, a *app.Application) error {
		if err := a.Catalog.Load(ctx); err != nil {
			return err
		}
		next, err := a.Catalog.AddToCart(ctx, add.Flags().Arg(0))
		if next == router.ViewLogin {
			return errors.New("not logged in; run `storefront login` first")
		}
		return err
	})

	step := func(use, short string, delta int) *cobra.Command {
		c := &cobra.Command{Use: use + " PRODUCT_ID", Short: short, Args: cobra.ExactArgs(1)}
		c.RunE = e.withApp(func(ctx context.Context, a *app.Application) error {
			if err := loadCart(ctx, a); err != nil {
				return err
			}
			if err := a.Cart.ChangeQuantity(ctx, c.Flags().Arg(0), delta); err != nil {
				return err
			}
			return printCart(c.OutOrStdout(), a)
		})
		return c
	}

	rm := &cobra.Command{Use: "rm PRODUCT_ID", Short: "Remove a line", Args: cobra.ExactArgs(1)}
	rm.RunE = e.withApp(func(ctx context.Context, a *app.Application) error {
		if err := loadCart(ctx, a); err != nil {
			return err
		}
		if err := a.Cart.Remove(ctx, rm.Flags().Arg(0)); err != nil {
			return err
		}
		return printCart(rm.OutOrStdout(), a)
	})

	order := &cobra.Command{Use: "order", Short: "Place an order for the whole cart"}
	order.RunE = e.withApp(func(ctx context.Context, a *app.Application) error {
		if err := loadCart(ctx, a); err != nil {
			return err
		}
		next, err := a.Cart.PlaceOrder(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(order.OutOrStdout(), "order placed; see %s\n", next)
		return nil
	})

	cmd.AddCommand(show, add, step("inc", "Increase a line by one", 1), step("dec", "Decrease a line by one", -1), rm, order)
	return cmd
}

func loadCart(ctx context.Context, a *app.Application) error {
	if err := requireView(a, router.ViewCart); err != nil {
		return err
	}
	return a.Cart.Load(ctx)
}

func printCart(w io.Writer, a *app.Application) error {
	lines := a.Cart.Lines()
	if len(lines) == 0 {
		fmt.Fprintln(w, "cart is empty")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tQTY\tSUBTOTAL")
	for _, l := range lines {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", l.Product.ID, l.Product.Name, l.Quantity, l.Subtotal().StringFixed(2))
	}
	fmt.Fprintf(tw, "\t\tTOTAL\t%s\n", a.Cart.Total().StringFixed(2))
	return tw.Flush()
}

func ordersCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List and pay for orders",
	}

	list := &cobra.Command{Use: "list", Short: "List your orders"}
	list.RunE = e.withApp(func(ctx context.Context, a *app.Application) error {
		if err := loadOrders(ctx, a); err != nil {
			return err
		}
		tw := tabwriter.NewWriter(list.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTATUS\tITEMS\tTOTAL")
		for _, o := range a.Checkout.Orders() {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", o.ID, o.Status, len(o.Lines), o.TotalPrice.StringFixed(2))
		}
		return tw.Flush()
	})

	var all bool
	pay := &cobra.Command{Use: "pay [ORDER_ID...]", Short: "Start payment for pending orders"}
	pay.RunE = e.withApp(func(ctx context.Context, a *app.Application) error {
		if err := loadOrders(ctx, a); err != nil {
			return err
		}
		if all {
			a.Checkout.SelectAllPending()
		}
		for _, id := range pay.Flags().Args() {
			if err := a.Checkout.Select(id); err != nil {
				return err
			}
		}
		amount := a.Checkout.Amount()
		url, err := a.Checkout.ProceedToPayment(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(pay.OutOrStdout(), "pay %s at:\n%s\n", amount.StringFixed(2), url)
		return nil
	})
	pay.Flags().BoolVar(&all, "all", false, "Select every pending order")

	success := &cobra.Command{Use: "success", Short: "Confirm a completed payment"}
	success.RunE = e.withApp(func(ctx context.Context, a *app.Application) error {
		if err := requireView(a, router.ViewSuccess); err != nil {
			return err
		}
		_, err := a.Checkout.ConfirmPayment(ctx)
		return err
	})

	cmd.AddCommand(list, pay, success)
	return cmd
}

func loadOrders(ctx context.Context, a *app.Application) error {
	if err := requireView(a, router.ViewOrders); err != nil {
		return err
	}
	return a.Checkout.Load(ctx)
}

func readLine(in io.Reader, prompt io.Writer, label string) (string, error) {
	fmt.Fprint(prompt, label)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
