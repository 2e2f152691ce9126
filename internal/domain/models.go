// Package domain defines the persistence models for users, memes and likes.
// These types are mapped with GORM and form the core data layer of the
// gallery application.
package domain

import "time"

// User is a registered account. The password hash is never serialised.
//
// Fields:
//   - ID: autoincrement primary key.
//   - Username: unique login name (3–50 runes, NFC-normalised).
//   - PasswordHash: bcrypt hash of the password.
//   - Role: USER or ADMIN (enforced by DB constraint).
type User struct {
	ID           uint      `json:"id"       gorm:"primaryKey;autoIncrement"`
	Username     string    `json:"username" gorm:"type:varchar(50);not null;uniqueIndex:ux_users_username"`
	PasswordHash string    `json:"-"        gorm:"type:varchar(255);not null"`
	Role         Role      `json:"role"     gorm:"type:varchar(16);not null;default:'USER';check:role IN ('USER','ADMIN')"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// UserView is the public projection of a User. It has no password field, so
// queries scanning into it cannot leak the hash.
type UserView struct {
	ID       uint   `json:"id"       example:"1"`
	Username string `json:"username" example:"alice"`
	Role     Role   `json:"role"     example:"USER"`
}

// View returns the public projection of u.
func (u *User) View() UserView {
	return UserView{ID: u.ID, Username: u.Username, Role: u.Role}
}

// Meme is an image link posted by a user. Memes are immutable once created
// and are cascade-deleted with their owner.
type Meme struct {
	ID        uint      `json:"id"        gorm:"primaryKey;autoIncrement" example:"1"`
	Title     string    `json:"title"     gorm:"type:varchar(255);not null" example:"cat"`
	URL       string    `json:"url"       gorm:"type:text;not null" example:"https://x/y.png"`
	UserID    uint      `json:"userId"    gorm:"not null;index:idx_memes_user" example:"1"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Meme.
func (Meme) TableName() string { return "memes" }

// Like records that a user currently likes a meme. At most one row exists per
// (user_id, meme_id); the unique index is the only guard against concurrent
// toggles inserting twice. Rows are hard-deleted on unlike.
type Like struct {
	ID        uint      `json:"id"        gorm:"primaryKey;autoIncrement"`
	UserID    uint      `json:"userId"    gorm:"not null;uniqueIndex:ux_likes_user_meme,priority:1"`
	MemeID    uint      `json:"memeId"    gorm:"not null;index;uniqueIndex:ux_likes_user_meme,priority:2"`
	CreatedAt time.Time `json:"createdAt"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Meme Meme `json:"-" gorm:"foreignKey:MemeID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Like.
func (Like) TableName() string { return "likes" }

// Identity is the authenticated caller as decoded from a session token.
type Identity struct {
	UserID uint
	Role   Role
}
