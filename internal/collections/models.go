// Package collections manages curated, ordered reference lists including per-user favorites.
package collections

import (
	"time"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/catalog"
)

// FavoritesSuffix terminates the slug of every published favorites collection.
const FavoritesSuffix = "s-favorites"

// Collection is a named, ordered list of references.
type Collection struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"column:name;size:200;not null" json:"name"`
	Slug        string    `gorm:"column:slug;size:200;not null;uniqueIndex" json:"slug"`
	Description *string   `gorm:"column:description" json:"description"`
	Icon        *string   `gorm:"column:icon;size:32" json:"icon"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

// TableName exposes the table backing collections.
func (Collection) TableName() string {
	return "collections"
}

// Membership places a reference at a position inside a collection. The same
// reference may appear more than once.
type Membership struct {
	ID           int64              `gorm:"column:id;primaryKey;autoIncrement"`
	CollectionID int64              `gorm:"column:collection_id;not null;index"`
	ReferenceID  int64              `gorm:"column:reference_id;not null;index"`
	Order        int                `gorm:"column:order;not null;default:0"`
	Collection   *Collection        `gorm:"foreignKey:CollectionID;constraint:OnDelete:CASCADE"`
	Reference    *catalog.Reference `gorm:"foreignKey:ReferenceID;constraint:OnDelete:CASCADE"`
}

// TableName exposes the table backing collection memberships.
func (Membership) TableName() string {
	return "collection_references"
}

// PublishResult summarizes a publish run.
type PublishResult struct {
	CollectionID int64  `json:"collectionId"`
	Slug         string `json:"slug"`
	Name         string `json:"name"`
	Count        int    `json:"count"`
}

// EntryView is a collection member joined with its reference and category.
type EntryView struct {
	catalog.ReferenceView
	Order int `gorm:"column:order" json:"order"`
}
