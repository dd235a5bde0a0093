package models

import "time"

// Server is a registered remote panel endpoint
type Server struct {
	ID          string    `json:"id" gorm:"type:varchar(8);primaryKey"`
	Name        string    `json:"name" gorm:"type:varchar(128);not null"`
	Host        string    `json:"host" gorm:"type:varchar(255);not null"`
	Port        int       `json:"port" gorm:"not null"`
	Username    string    `json:"username" gorm:"type:varchar(128);not null"`
	Password    string    `json:"-" gorm:"type:varchar(255);not null"`
	WebBasePath string    `json:"webBasePath" gorm:"type:varchar(255)"`
	UseTLS      bool      `json:"useTls"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TableName overrides the table name
func (Server) TableName() string {
	return "servers"
}

// ServerInput carries the fields of a new server record
type ServerInput struct {
	Name        string `json:"name"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	WebBasePath string `json:"webBasePath"`
	UseTLS      bool   `json:"useTls"`
}

// ServerPatch represents a partial update. Nil fields are left untouched and
// an empty password keeps the stored one.
type ServerPatch struct {
	Name        *string `json:"name,omitempty"`
	Host        *string `json:"host,omitempty"`
	Port        *int    `json:"port,omitempty"`
	Username    *string `json:"username,omitempty"`
	Password    *string `json:"password,omitempty"`
	WebBasePath *string `json:"webBasePath,omitempty"`
	UseTLS      *bool   `json:"useTls,omitempty"`
}
