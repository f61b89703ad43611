package database

import (
	"context"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/catalog"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedOptions selects which starter data Seed writes.
type SeedOptions struct {
	SampleReferences bool
}

// SeedReport counts rows inserted by Seed; existing rows are not counted.
type SeedReport struct {
	Categories int64
	Tags       int64
	References int64
}

type seedCategory struct {
	name        string
	slug        string
	description string
	icon        string
	color       string
}

type seedReference struct {
	title        string
	url          string
	description  string
	categorySlug string
	featured     bool
	tagSlugs     []string
}

var starterCategories = []seedCategory{
	{"Art", "art", "Fine art, contemporary art, and creative inspiration", "🎨", "purple"},
	{"Graphic Design", "graphic-design", "Graphic design references, branding, layouts, and visual communication", "🖼️", "blue"},
	{"3D", "3d", "3D modeling, rendering, motion graphics, and CGI references", "🧊", "cyan"},
	{"Illustration", "illustration", "Digital and traditional illustration, character design, and concept art", "✏️", "orange"},
	{"Music", "music", "Music production, sound design, album art, and audio references", "🎵", "pink"},
	{"Trailers", "trailers", "Film trailers, teasers, cinematography, and video editing references", "🎬", "red"},
	{"Photography", "photography", "Photography inspiration, techniques, portfolios, and stock photography", "📷", "green"},
	{"Artists", "artists", "Individual artists, portfolios, and creative practitioners to follow", "👤", "yellow"},
	{"Motion Graphics", "motion-graphics", "Motion design, animated graphics, visual effects, and kinetic typography", "🎞️", "teal"},
	{"Branding", "branding", "Brand identity, logo design, brand strategy, and visual branding systems", "🏷️", "yellow"},
	{"Gaming", "gaming", "Video game design, game art, UI/UX for games, and interactive entertainment", "🎮", "indigo"},
	{"Experiential", "experiential", "Immersive experiences, installations, exhibitions, and experiential design", "🌐", "pink"},
}

var starterTags = []catalog.Tag{
	{Name: "Free", Slug: "free"},
	{Name: "Open Source", Slug: "open-source"},
	{Name: "Premium", Slug: "premium"},
	{Name: "Inspiration", Slug: "inspiration"},
	{Name: "Tutorial", Slug: "tutorial"},
	{Name: "Portfolio", Slug: "portfolio"},
	{Name: "AI", Slug: "ai"},
	{Name: "Community", Slug: "community"},
	{Name: "Tool", Slug: "tool"},
	{Name: "Stock", Slug: "stock"},
	{Name: "Branding", Slug: "branding"},
	{Name: "Motion", Slug: "motion"},
	{Name: "Typography", Slug: "typography"},
	{Name: "Color", Slug: "color"},
	{Name: "Concept Art", Slug: "concept-art"},
	{Name: "Editorial", Slug: "editorial"},
	{Name: "Articles", Slug: "articles"},
}

var sampleReferences = []seedReference{
	{"Behance", "https://behance.net", "Showcase and discover creative work across all art & design disciplines.", "art", true, []string{"free", "inspiration", "portfolio"}},
	{"ArtStation", "https://artstation.com", "The leading showcase platform for games, film, media & entertainment artists.", "art", true, []string{"free", "inspiration", "portfolio", "concept-art"}},
	{"Dribbble", "https://dribbble.com", "Discover the world's top designers & creatives sharing their work.", "graphic-design", true, []string{"free", "inspiration", "community"}},
	{"Awwwards", "https://awwwards.com", "Awards that recognize the talent and effort of the best web designers.", "graphic-design", true, []string{"free", "inspiration"}},
	{"Fonts In Use", "https://fontsinuse.com", "An archive of typography in real-world graphic design projects.", "graphic-design", false, []string{"free", "typography", "inspiration"}},
	{"Coolors", "https://coolors.co", "Generate or browse beautiful color combinations for your designs.", "graphic-design", false, []string{"free", "tool", "color"}},
	{"Blender", "https://blender.org", "Free and open source 3D creation suite for modeling, animation and rendering.", "3d", true, []string{"free", "open-source", "tool"}},
	{"Poly Haven", "https://polyhaven.com", "Free high quality 3D assets: HDRIs, textures, and models for everyone.", "3d", false, []string{"free", "stock"}},
	{"unDraw", "https://undraw.co", "Open-source illustrations for any idea. Beautiful, customizable SVGs.", "illustration", false, []string{"free", "open-source", "stock"}},
	{"Bandcamp", "https://bandcamp.com", "Discover amazing music and directly support the artists who make it.", "music", false, []string{"free", "inspiration", "community"}},
	{"Art of the Title", "https://artofthetitle.com", "Leading resource for title sequence design in film, TV, and beyond.", "trailers", true, []string{"free", "inspiration", "motion"}},
	{"Magnum Photos", "https://magnumphotos.com", "The world's most prestigious photographic cooperative.", "photography", false, []string{"inspiration", "editorial"}},
}

// Seed inserts the starter taxonomy and, optionally, sample references.
// Categories and tags are keyed by slug so reruns leave existing rows alone;
// sample references are only written into an empty catalog.
func Seed(ctx context.Context, db *gorm.DB, options SeedOptions, logger *zap.Logger) (SeedReport, error) {
	var report SeedReport
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		categories := make([]catalog.Category, 0, len(starterCategories))
		for _, entry := range starterCategories {
			description, icon, color := entry.description, entry.icon, entry.color
			categories = append(categories, catalog.Category{
				Name:        entry.name,
				Slug:        entry.slug,
				Description: &description,
				Icon:        &icon,
				Color:       &color,
			})
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&categories)
		if result.Error != nil {
			return result.Error
		}
		report.Categories = result.RowsAffected

		tags := make([]catalog.Tag, len(starterTags))
		copy(tags, starterTags)
		result = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&tags)
		if result.Error != nil {
			return result.Error
		}
		report.Tags = result.RowsAffected

		if !options.SampleReferences {
			return nil
		}
		inserted, err := seedSampleReferences(tx)
		if err != nil {
			return err
		}
		report.References = inserted
		return nil
	})
	if err != nil {
		return SeedReport{}, err
	}
	if logger != nil {
		logger.Info("database seeded",
			zap.Int64("categories", report.Categories),
			zap.Int64("tags", report.Tags),
			zap.Int64("references", report.References),
		)
	}
	return report, nil
}

func seedSampleReferences(tx *gorm.DB) (int64, error) {
	var existing int64
	if err := tx.Model(&catalog.Reference{}).Count(&existing).Error; err != nil {
		return 0, err
	}
	if existing > 0 {
		return 0, nil
	}

	categoryIDs, err := idsBySlug(tx, &catalog.Category{})
	if err != nil {
		return 0, err
	}
	tagIDs, err := idsBySlug(tx, &catalog.Tag{})
	if err != nil {
		return 0, err
	}

	for _, sample := range sampleReferences {
		description := sample.description
		reference := catalog.Reference{
			Title:       sample.title,
			URL:         sample.url,
			Description: &description,
			IsFeatured:  sample.featured,
		}
		if id, ok := categoryIDs[sample.categorySlug]; ok {
			reference.CategoryID = &id
		}
		if err := tx.Omit(clause.Associations).Create(&reference).Error; err != nil {
			return 0, err
		}
		links := make([]catalog.ReferenceTag, 0, len(sample.tagSlugs))
		for _, tagSlug := range sample.tagSlugs {
			if tagID, ok := tagIDs[tagSlug]; ok {
				links = append(links, catalog.ReferenceTag{ReferenceID: reference.ID, TagID: tagID})
			}
		}
		if len(links) > 0 {
			if err := tx.Create(&links).Error; err != nil {
				return 0, err
			}
		}
	}
	return int64(len(sampleReferences)), nil
}

type slugRow struct {
	ID   int64
	Slug string
}

func idsBySlug(tx *gorm.DB, model any) (map[string]int64, error) {
	var rows []slugRow
	if err := tx.Model(model).Select("id", "slug").Scan(&rows).Error; err != nil {
		return nil, err
	}
	ids := make(map[string]int64, len(rows))
	for _, row := range rows {
		ids[row.Slug] = row.ID
	}
	return ids, nil
}
