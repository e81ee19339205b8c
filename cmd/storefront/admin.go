package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"teakspice-storefront/internal/admin"
	"teakspice-storefront/internal/app"
	"teakspice-storefront/internal/model"
)

func adminCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage products and orders",
	}

	products := &cobra.Command{Use: "products", Short: "List products"}
	products.RunE = e.withApp(func(ctx context.Context, a *app.Application) error {
		if err := mount(ctx, a); err != nil {
			return err
		}
		res := a.Admin.Products()
		if res.Err != nil {
			return res.Err
		}
		tw := tabwriter.NewWriter(products.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tPRICE\tSTOCK")
		for _, p := range res.Items {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", p.ID, p.Name, p.Price.StringFixed(2), p.Stock)
		}
		return tw.Flush()
	})

	orders := &cobra.Command{Use: "orders", Short: "List every customer's orders"}
	orders.RunE = e.withApp(func(ctx context.Context, a *app.Application) error {
		if err := mount(ctx, a); err != nil {
			return err
		}
		res := a.Admin.Orders()
		if res.Err != nil {
			return res.Err
		}
		tw := tabwriter.NewWriter(orders.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTATUS\tITEMS\tTOTAL")
		for _, o := range res.Items {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", o.ID, o.Status, len(o.Lines), o.TotalPrice.StringFixed(2))
		}
		return tw.Flush()
	})

	create := &cobra.Command{Use: "create", Short: "Add a product"}
	productFlags(create.Flags())
	create.RunE = e.withApp(func(ctx context.Context, a *app.Application) error {
		if err := mount(ctx, a); err != nil {
			return err
		}
		return submit(ctx, a, create, model.ProductDraft{})
	})

	update := &cobra.Command{Use: "update PRODUCT_ID", Short: "Edit a product; unset flags keep their value", Args: cobra.ExactArgs(1)}
	productFlags(update.Flags())
	update.RunE = e.withApp(func(ctx context.Context, a *app.Application) error {
		if err := mount(ctx, a); err != nil {
			return err
		}
		if err := a.Admin.StartEdit(update.Flags().Arg(0)); err != nil {
			return err
		}
		current, _ := a.Admin.Draft()
		return submit(ctx, a, update, current)
	})

	var yes bool
	del := &cobra.Command{Use: "delete PRODUCT_ID", Short: "Delete a product", Args: cobra.ExactArgs(1)}
	del.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	del.RunE = e.withApp(func(ctx context.Context, a *app.Application) error {
		if err := mount(ctx, a); err != nil {
			return err
		}
		ask := admin.ConfirmFunc(func(prompt string) bool {
			answer, err := readLine(del.InOrStdin(), del.ErrOrStderr(), prompt+" [y/N] ")
			if err != nil {
				return false
			}
			return strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes")
		})
		var c admin.Confirmer = ask
		if yes {
			c = admin.Always
		}
		return a.Admin.DeleteProduct(ctx, del.Flags().Arg(0), c)
	})

	status := &cobra.Command{
		Use:   "status ORDER_ID STATUS",
		Short: "Set an order's status (" + strings.Join(statusNames(), ", ") + ")",
		Args:  cobra.ExactArgs(2),
	}
	status.RunE = e.withApp(func(ctx context.Context, a *app.Application) error {
		if err := mount(ctx, a); err != nil {
			return err
		}
		o, err := a.Admin.SetOrderStatus(ctx, status.Flags().Arg(0), status.Flags().Arg(1))
		if err != nil {
			return err
		}
		fmt.Fprintf(status.OutOrStdout(), "%s is now %s\n", o.ID, o.Status)
		return nil
	})

	cmd.AddCommand(products, orders, create, update, del, status)
	return cmd
}

func mount(ctx context.Context, a *app.Application) error {
	_, err := a.Admin.Mount(ctx)
	return err
}

func productFlags(fs *pflag.FlagSet) {
	fs.String("name", "", "Product name")
	fs.String("price", "", "Unit price")
	fs.String("description", "", "Description")
	fs.String("stock", "", "Units in stock")
	fs.String("image", "", "Image URL")
}

// submit overlays the flags that were set on base, then creates or updates.
func submit(ctx context.Context, a *app.Application, cmd *cobra.Command, base model.ProductDraft) error {
	form := map[string]string{
		"name":        base.Name,
		"price":       base.Price.String(),
		"description": base.Description,
		"stock":       fmt.Sprint(base.Stock),
		"image":       base.Image,
	}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if _, ok := form[f.Name]; ok {
			form[f.Name] = f.Value.String()
		}
	})
	d, err := admin.DraftFromForm(form)
	if err != nil {
		return err
	}
	a.Admin.SetDraft(d)
	p, err := a.Admin.SubmitDraft(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%d\n", p.ID, p.Name, p.Price.StringFixed(2), p.Stock)
	return nil
}

func statusNames() []string {
	out := make([]string, 0, len(model.AdminStatuses))
	for _, s := range model.AdminStatuses {
		out = append(out, string(s))
	}
	return out
}
