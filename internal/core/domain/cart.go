package domain

type Cart struct {
	ID     string     `json:"id" bson:"_id"`
	UserID string     `json:"userId" bson:"userId"`
	Items  []LineItem `json:"items" bson:"items"`
}
