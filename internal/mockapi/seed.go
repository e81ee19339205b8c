package mockapi

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

type SeedUser struct {
	Name     string
	Email    string
	Password string
	Role     string
}

type SeedData struct {
	Users    []SeedUser
	Products []Product
}

// DefaultSeed is the data `storefront mock-api` starts with.
func DefaultSeed() SeedData {
	return SeedData{
		Users: []SeedUser{
			{Name: "Store Admin", Email: "admin@teakspice.local", Password: "admin123", Role: "Admin"},
			{Name: "Demo Customer", Email: "customer@teakspice.local", Password: "customer123", Role: RoleCustomer},
		},
		Products: []Product{
			{Name: "Teak Serving Bowl", Price: 24.5, Stock: 12, Description: "Hand-turned teak bowl."},
			{Name: "Green Cardamom 100g", Price: 6.75, Stock: 40, Description: "Whole pods from Idukki."},
			{Name: "Black Pepper 250g", Price: 8, Stock: 25, Description: "Tellicherry garbled special extra bold."},
			{Name: "Teak Spice Box", Price: 39.99, Stock: 3, Description: "Seven-compartment masala dabba."},
		},
	}
}

// Seed inserts users and products. Users that already exist are skipped.
func Seed(ctx context.Context, store Store, data SeedData) error {
	for _, su := range data.Users {
		hashed, err := bcrypt.GenerateFromPassword([]byte(su.Password), bcrypt.MinCost)
		if err != nil {
			return errors.Wrap(err, "hash seed password")
		}
		u := User{Name: su.Name, Email: su.Email, Password: string(hashed), Role: su.Role}
		if err := store.InsertUser(ctx, &u); err != nil && !errors.Is(err, ErrDuplicate) {
			return errors.Wrapf(err, "seed user %s", su.Email)
		}
	}
	for i := range data.Products {
		p := data.Products[i]
		if err := store.InsertProduct(ctx, &p); err != nil {
			return errors.Wrapf(err, "seed product %s", p.Name)
		}
	}
	return nil
}
