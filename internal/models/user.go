package models

import "time"

// User is an account that can publish recipes and follow other authors.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
	Email        string    `gorm:"size:254;not null;uniqueIndex" json:"email"`
	Username     string    `gorm:"size:150;not null;uniqueIndex" json:"username"`
	FirstName    string    `gorm:"size:150;not null" json:"first_name"`
	LastName     string    `gorm:"size:150;not null" json:"last_name"`
	PasswordHash string    `gorm:"not null" json:"-"`
	IsStaff      bool      `gorm:"not null;default:false" json:"-"`
}

// Follow is a directed subscription edge from User to Author.
type Follow struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time
	UserID    uint `gorm:"not null;uniqueIndex:idx_follow_user_author;check:chk_follow_not_self,user_id <> author_id"`
	AuthorID  uint `gorm:"not null;uniqueIndex:idx_follow_user_author;index"`
	User      User `gorm:"constraint:OnDelete:CASCADE"`
	Author    User `gorm:"constraint:OnDelete:CASCADE"`
}

func (Follow) TableName() string {
	return "follows"
}
