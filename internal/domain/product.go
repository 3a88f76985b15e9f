package domain

import "time"

// Product is the catalog read surface this service depends on. Catalog
// CRUD and image handling belong to the catalog service; negotiations only
// need the price snapshot, the biddable flag and the owning farmer.
type Product struct {
	ProductID  string    `json:"id" dynamodbav:"product_id"`
	Name       string    `json:"name" dynamodbav:"name"`
	FarmerID   string    `json:"farmer_id" dynamodbav:"farmer_id"`
	Price      float64   `json:"price" dynamodbav:"price"`
	IsBiddable bool      `json:"is_biddable" dynamodbav:"is_biddable"`
	CreatedAt  time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt  time.Time `json:"updated" dynamodbav:"updated_at"`
}
