package domain

import "time"

type Product struct {
	ID         string    `json:"id" bson:"_id"`
	Title      string    `json:"title" bson:"title"`
	Price      float64   `json:"price" bson:"price"`
	TotalStock int       `json:"totalStock" bson:"totalStock"`
	Version    int       `json:"-" bson:"version"` // optimistic locking
	UpdatedAt  time.Time `json:"updatedAt" bson:"updatedAt"`
}
