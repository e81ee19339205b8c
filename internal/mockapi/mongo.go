package mockapi

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const DefaultDatabase = "teakspice"

// MongoStore keeps the mock backend's data in MongoDB.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// DialMongo connects to uri and prepares the collections.
func DialMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	if database == "" {
		database = DefaultDatabase
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "connect mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "ping mongo")
	}
	s := &MongoStore{client: client, db: client.Database(database)}

	_, err = s.users().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "create email index")
	}
	return s, nil
}

func (s *MongoStore) users() *mongo.Collection    { return s.db.Collection("users") }
func (s *MongoStore) products() *mongo.Collection { return s.db.Collection("products") }
func (s *MongoStore) carts() *mongo.Collection    { return s.db.Collection("carts") }
func (s *MongoStore) orders() *mongo.Collection   { return s.db.Collection("orders") }

func (s *MongoStore) InsertUser(ctx context.Context, u *User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	_, err := s.users().InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return errors.Wrap(err, "insert user")
}

func (s *MongoStore) UserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := s.users().FindOne(ctx, bson.M{"email": email}).Decode(&u)
	return u, notFound(err, "find user")
}

func (s *MongoStore) Products(ctx context.Context) ([]Product, error) {
	cur, err := s.products().Find(ctx, bson.M{})
	if err != nil {
		return nil, errors.Wrap(err, "find products")
	}
	products := []Product{}
	if err := cur.All(ctx, &products); err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	return products, nil
}

func (s *MongoStore) Product(ctx context.Context, id primitive.ObjectID) (Product, error) {
	var p Product
	err := s.products().FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	return p, notFound(err, "find product")
}

func (s *MongoStore) InsertProduct(ctx context.Context, p *Product) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := s.products().InsertOne(ctx, p)
	return errors.Wrap(err, "insert product")
}

func (s *MongoStore) UpdateProduct(ctx context.Context, p Product) error {
	res, err := s.products().ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		return errors.Wrap(err, "update product")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteProduct(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.products().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "delete product")
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) AdjustStock(ctx context.Context, id primitive.ObjectID, delta int) error {
	res, err := s.products().UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"stock": delta}},
	)
	if err != nil {
		return errors.Wrap(err, "adjust stock")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Cart(ctx context.Context, userID primitive.ObjectID) (Cart, error) {
	var c Cart
	err := s.carts().FindOne(ctx, bson.M{"userId": userID}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Cart{UserID: userID, Items: []CartItem{}}, nil
	}
	if err != nil {
		return Cart{}, errors.Wrap(err, "find cart")
	}
	return c, nil
}

func (s *MongoStore) SaveCart(ctx context.Context, c Cart) error {
	if c.Items == nil {
		c.Items = []CartItem{}
	}
	_, err := s.carts().UpdateOne(ctx,
		bson.M{"userId": c.UserID},
		bson.M{"$set": bson.M{"items": c.Items}},
		options.Update().SetUpsert(true),
	)
	return errors.Wrap(err, "save cart")
}

func (s *MongoStore) InsertOrder(ctx context.Context, o *Order) error {
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	_, err := s.orders().InsertOne(ctx, o)
	return errors.Wrap(err, "insert order")
}

func (s *MongoStore) Orders(ctx context.Context, userID primitive.ObjectID) ([]Order, error) {
	filter := bson.M{}
	if !userID.IsZero() {
		filter["userId"] = userID
	}
	cur, err := s.orders().Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "find orders")
	}
	orders := []Order{}
	if err := cur.All(ctx, &orders); err != nil {
		return nil, errors.Wrap(err, "decode orders")
	}
	return orders, nil
}

func (s *MongoStore) SetOrderStatus(ctx context.Context, id primitive.ObjectID, status string) (Order, error) {
	var o Order
	err := s.orders().FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&o)
	return o, notFound(err, "update order")
}

func (s *MongoStore) ConfirmPending(ctx context.Context, userID primitive.ObjectID) (int, error) {
	res, err := s.orders().UpdateMany(ctx,
		bson.M{"userId": userID, "status": StatusPending},
		bson.M{"$set": bson.M{"status": StatusConfirmed}},
	)
	if err != nil {
		return 0, errors.Wrap(err, "confirm orders")
	}
	return int(res.ModifiedCount), nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func notFound(err error, what string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return errors.Wrap(err, what)
}
