// Package pipeline stores pipeline records behind the generic repository
// contract, with a SQLite (gorm) and a MongoDB backend.
package pipeline

import "time"

// Entity is a stored pipeline record. A zero ID means the record has not
// been saved yet.
type Entity struct {
	ID        int64     `json:"id,omitempty" gorm:"primaryKey;autoIncrement" bson:"_id,omitempty"`
	Name      string    `json:"name" gorm:"not null" bson:"name"`
	Email     string    `json:"email" bson:"email"`
	Age       *uint8    `json:"age,omitempty" bson:"age,omitempty"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime" bson:"created_at"`
}

// TableName sets the gorm table name.
func (Entity) TableName() string {
	return "pipelines"
}

// Collection is the MongoDB collection holding pipeline records.
const Collection = "pipelines"
