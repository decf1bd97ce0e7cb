package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents an account that can own invoices. Invoices may also be
// created without one (guest invoices carry a null owner reference).
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password" json:"-"` // Store hash, not plaintext
	IsAdmin      bool               `bson:"is_admin,omitempty" json:"is_admin"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
}
