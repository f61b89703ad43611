// Package catalog stores references together with their categories, tags, votes and bookmarks.
package catalog

import (
	"time"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/users"
)

// Category groups references under a named, colored heading.
type Category struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"column:name;size:200;not null" json:"name"`
	Slug        string    `gorm:"column:slug;size:200;not null;uniqueIndex" json:"slug"`
	Description *string   `gorm:"column:description" json:"description"`
	Icon        *string   `gorm:"column:icon;size:32" json:"icon"`
	Color       *string   `gorm:"column:color;size:64" json:"color"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

// TableName exposes the table backing categories.
func (Category) TableName() string {
	return "categories"
}

// Reference is a curated link.
type Reference struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Title       string    `gorm:"column:title;not null" json:"title"`
	URL         string    `gorm:"column:url;not null" json:"url"`
	Description *string   `gorm:"column:description" json:"description"`
	Thumbnail   *string   `gorm:"column:thumbnail" json:"thumbnail"`
	CategoryID  *int64    `gorm:"column:category_id;index" json:"categoryId"`
	Category    *Category `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"-"`
	IsFeatured  bool      `gorm:"column:is_featured;not null;default:false" json:"isFeatured"`
	Votes       int64     `gorm:"column:votes;not null;default:0" json:"votes"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime;index" json:"createdAt"`
}

// TableName exposes the table backing references.
func (Reference) TableName() string {
	return "reference_items"
}

// Bookmark marks a reference as saved by one user.
type Bookmark struct {
	UserID      int64       `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	ReferenceID int64       `gorm:"column:reference_id;primaryKey;autoIncrement:false;index"`
	User        *users.User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Reference   *Reference  `gorm:"foreignKey:ReferenceID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time   `gorm:"column:created_at;autoCreateTime"`
}

// TableName exposes the table backing bookmarks.
func (Bookmark) TableName() string {
	return "bookmarks"
}

// Tag is a free-form label attached to references.
type Tag struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"column:name;size:200;not null;uniqueIndex" json:"name"`
	Slug string `gorm:"column:slug;size:200;not null;uniqueIndex" json:"slug"`
}

// TableName exposes the table backing tags.
func (Tag) TableName() string {
	return "tags"
}

// ReferenceTag links a tag to a reference.
type ReferenceTag struct {
	ReferenceID int64      `gorm:"column:reference_id;primaryKey;autoIncrement:false"`
	TagID       int64      `gorm:"column:tag_id;primaryKey;autoIncrement:false;index"`
	Reference   *Reference `gorm:"foreignKey:ReferenceID;constraint:OnDelete:CASCADE"`
	Tag         *Tag       `gorm:"foreignKey:TagID;constraint:OnDelete:CASCADE"`
}

// TableName exposes the table backing reference tags.
func (ReferenceTag) TableName() string {
	return "reference_tags"
}

// ReferenceView is a reference joined with its category and the viewer's bookmark state.
type ReferenceView struct {
	ID            int64     `gorm:"column:id" json:"id"`
	Title         string    `gorm:"column:title" json:"title"`
	URL           string    `gorm:"column:url" json:"url"`
	Description   *string   `gorm:"column:description" json:"description"`
	Thumbnail     *string   `gorm:"column:thumbnail" json:"thumbnail"`
	CategoryID    *int64    `gorm:"column:category_id" json:"categoryId"`
	IsFeatured    bool      `gorm:"column:is_featured" json:"isFeatured"`
	IsBookmarked  bool      `gorm:"column:is_bookmarked" json:"isBookmarked"`
	Votes         int64     `gorm:"column:votes" json:"votes"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"createdAt"`
	CategoryName  *string   `gorm:"column:category_name" json:"categoryName"`
	CategorySlug  *string   `gorm:"column:category_slug" json:"categorySlug"`
	CategoryIcon  *string   `gorm:"column:category_icon" json:"categoryIcon"`
	CategoryColor *string   `gorm:"column:category_color" json:"categoryColor"`
}
