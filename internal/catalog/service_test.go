package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/MarcoPoloResearchLab/shelf/backend/internal/serviceerr"
	"github.com/MarcoPoloResearchLab/shelf/backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testDatabaseCounter atomic.Int64

type catalogFixture struct {
	db      *gorm.DB
	service *Service
}

func newCatalogFixture(t *testing.T, policy string) catalogFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:catalog_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", testDatabaseCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&users.User{}, &Category{}, &Reference{}, &Bookmark{}, &Tag{}, &ReferenceTag{}))

	service, err := NewService(ServiceConfig{Database: db, CategoryDeletePolicy: policy})
	require.NoError(t, err)
	return catalogFixture{db: db, service: service}
}

func (f catalogFixture) user(t *testing.T, email string) users.User {
	t.Helper()
	account := users.User{Email: email, DisplayName: users.DeriveDisplayName(email), Role: "user"}
	require.NoError(t, f.db.Create(&account).Error)
	return account
}

func (f catalogFixture) reference(t *testing.T, title string) ReferenceView {
	t.Helper()
	view, err := f.service.CreateReference(context.Background(), ReferenceInput{
		Title: title,
		URL:   "https://example.org/" + title,
	}, 0)
	require.NoError(t, err)
	return view
}

func stringPtr(value string) *string {
	return &value
}

func requireKind(t *testing.T, err error, kind serviceerr.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, serviceerr.KindOf(err), "unexpected error %v", err)
}

func TestCreateReferenceWithCategoryAndTags(t *testing.T) {
	fixture := newCatalogFixture(t, "")
	ctx := context.Background()

	category, err := fixture.service.CreateCategory(ctx, CategoryInput{Name: "Graphic Design", Icon: stringPtr("🎨")})
	require.NoError(t, err)
	require.Equal(t, "graphic-design", category.Slug)

	first, err := fixture.service.CreateTag(ctx, "Typography")
	require.NoError(t, err)
	second, err := fixture.service.CreateTag(ctx, "Color")
	require.NoError(t, err)

	view, err := fixture.service.CreateReference(ctx, ReferenceInput{
		Title:       "  Fonts In Use ",
		URL:         "https://fontsinuse.com",
		Description: stringPtr("  "),
		CategoryID:  &category.ID,
		TagIDs:      []int64{first.ID, second.ID, first.ID},
	}, 0)
	require.NoError(t, err)
	require.Equal(t, "Fonts In Use", view.Title)
	require.Nil(t, view.Description)
	require.NotNil(t, view.CategorySlug)
	require.Equal(t, "graphic-design", *view.CategorySlug)
	require.False(t, view.IsBookmarked)

	tags, err := fixture.service.TagsForReference(ctx, view.ID)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	require.Equal(t, "Color", tags[0].Name)
}

func TestCreateReferenceValidation(t *testing.T) {
	fixture := newCatalogFixture(t, "")
	ctx := context.Background()

	_, err := fixture.service.CreateReference(ctx, ReferenceInput{Title: "Untitled"}, 0)
	requireKind(t, err, serviceerr.KindValidation)

	missingCategory := int64(99)
	_, err = fixture.service.CreateReference(ctx, ReferenceInput{Title: "x", URL: "https://x", CategoryID: &missingCategory}, 0)
	requireKind(t, err, serviceerr.KindValidation)

	_, err = fixture.service.CreateReference(ctx, ReferenceInput{Title: "x", URL: "https://x", TagIDs: []int64{42}}, 0)
	requireKind(t, err, serviceerr.KindValidation)

	var count int64
	require.NoError(t, fixture.db.Model(&Reference{}).Count(&count).Error)
	require.Zero(t, count, "failed creates must roll back")
}

func TestListReferencesFilters(t *testing.T) {
	fixture := newCatalogFixture(t, "")
	ctx := context.Background()

	category, err := fixture.service.CreateCategory(ctx, CategoryInput{Name: "Motion"})
	require.NoError(t, err)

	older := fixture.reference(t, "older")
	newer := fixture.reference(t, "newer")
	_, err = fixture.service.UpdateReference(ctx, older.ID, ReferencePatch{
		IsFeatured: Some(true),
		CategoryID: Some(category.ID),
	}, 0)
	require.NoError(t, err)
	_, err = fixture.service.Vote(ctx, older.ID, VoteUp)
	require.NoError(t, err)

	all, err := fixture.service.ListReferences(ctx, ReferenceFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, newer.ID, all[0].ID)

	featured, err := fixture.service.ListReferences(ctx, ReferenceFilter{FeaturedOnly: true})
	require.NoError(t, err)
	require.Len(t, featured, 1)
	require.Equal(t, older.ID, featured[0].ID)

	byCategory, err := fixture.service.ListReferences(ctx, ReferenceFilter{CategorySlug: "motion"})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)

	top, err := fixture.service.ListReferences(ctx, ReferenceFilter{Sort: SortTop, Limit: 1})
	require.NoError(t, err)
	require.Len(t, top, 1)
	require.Equal(t, older.ID, top[0].ID)

	_, err = fixture.service.ListReferences(ctx, ReferenceFilter{Sort: "random"})
	requireKind(t, err, serviceerr.KindValidation)
}

func TestUpdateReferencePatchSemantics(t *testing.T) {
	fixture := newCatalogFixture(t, "")
	ctx := context.Background()

	created, err := fixture.service.CreateReference(ctx, ReferenceInput{
		Title:       "Dribbble",
		URL:         "https://dribbble.com",
		Description: stringPtr("Shots"),
	}, 0)
	require.NoError(t, err)

	var patch ReferencePatch
	require.NoError(t, json.Unmarshal([]byte(`{"description": null, "title": "Dribbble Pro"}`), &patch))
	updated, err := fixture.service.UpdateReference(ctx, created.ID, patch, 0)
	require.NoError(t, err)
	require.Equal(t, "Dribbble Pro", updated.Title)
	require.Nil(t, updated.Description)
	require.Equal(t, "https://dribbble.com", updated.URL)

	_, err = fixture.service.UpdateReference(ctx, created.ID, ReferencePatch{Title: Some("  ")}, 0)
	requireKind(t, err, serviceerr.KindValidation)

	_, err = fixture.service.UpdateReference(ctx, created.ID+10, ReferencePatch{Title: Some("x")}, 0)
	requireKind(t, err, serviceerr.KindNotFound)
}

func TestVoteUpThenDownRestoresCount(t *testing.T) {
	fixture := newCatalogFixture(t, "")
	ctx := context.Background()
	reference := fixture.reference(t, "behance")

	votes, err := fixture.service.Vote(ctx, reference.ID, VoteDown)
	require.NoError(t, err)
	require.EqualValues(t, -1, votes, "vote counts may go negative")

	votes, err = fixture.service.Vote(ctx, reference.ID, VoteUp)
	require.NoError(t, err)
	require.EqualValues(t, 0, votes)

	_, err = fixture.service.Vote(ctx, reference.ID, "sideways")
	requireKind(t, err, serviceerr.KindValidation)
	_, err = fixture.service.Vote(ctx, reference.ID+1, VoteUp)
	requireKind(t, err, serviceerr.KindNotFound)
}

func TestBookmarksArePerUser(t *testing.T) {
	fixture := newCatalogFixture(t, "")
	ctx := context.Background()
	ada := fixture.user(t, "ada@example.com")
	grace := fixture.user(t, "grace@example.com")

	first := fixture.reference(t, "first")
	second := fixture.reference(t, "second")

	view, err := fixture.service.ToggleBookmark(ctx, ada.ID, first.ID)
	require.NoError(t, err)
	require.True(t, view.IsBookmarked)
	_, err = fixture.service.ToggleBookmark(ctx, ada.ID, second.ID)
	require.NoError(t, err)

	seenByGrace, err := fixture.service.GetReference(ctx, first.ID, grace.ID)
	require.NoError(t, err)
	require.False(t, seenByGrace.IsBookmarked)

	ids, err := fixture.service.BookmarkedReferenceIDs(ctx, ada.ID)
	require.NoError(t, err)
	require.Equal(t, []int64{second.ID, first.ID}, ids)

	view, err = fixture.service.ToggleBookmark(ctx, ada.ID, second.ID)
	require.NoError(t, err)
	require.False(t, view.IsBookmarked)

	bookmarks, err := fixture.service.ListBookmarks(ctx, ada.ID)
	require.NoError(t, err)
	require.Len(t, bookmarks, 1)
	require.Equal(t, first.ID, bookmarks[0].ID)

	empty, err := fixture.service.ListBookmarks(ctx, grace.ID)
	require.NoError(t, err)
	require.Empty(t, empty)

	_, err = fixture.service.ToggleBookmark(ctx, ada.ID, 999)
	requireKind(t, err, serviceerr.KindNotFound)
}

func TestDeleteReferenceCascades(t *testing.T) {
	fixture := newCatalogFixture(t, "")
	ctx := context.Background()
	ada := fixture.user(t, "ada@example.com")
	reference := fixture.reference(t, "gone")
	tag, err := fixture.service.CreateTag(ctx, "Temporary")
	require.NoError(t, err)
	require.NoError(t, fixture.service.AttachTag(ctx, reference.ID, tag.ID))
	_, err = fixture.service.ToggleBookmark(ctx, ada.ID, reference.ID)
	require.NoError(t, err)

	require.NoError(t, fixture.service.DeleteReference(ctx, reference.ID))
	requireKind(t, fixture.service.DeleteReference(ctx, reference.ID), serviceerr.KindNotFound)

	var links, bookmarks int64
	require.NoError(t, fixture.db.Model(&ReferenceTag{}).Count(&links).Error)
	require.NoError(t, fixture.db.Model(&Bookmark{}).Count(&bookmarks).Error)
	require.Zero(t, links)
	require.Zero(t, bookmarks)
}

func TestSearchReferences(t *testing.T) {
	fixture := newCatalogFixture(t, "")
	ctx := context.Background()
	_, err := fixture.service.CreateReference(ctx, ReferenceInput{
		Title:       "Coolors",
		URL:         "https://coolors.co",
		Description: stringPtr("Palette generator"),
	}, 0)
	require.NoError(t, err)
	fixture.reference(t, "unrelated")

	results, err := fixture.service.SearchReferences(ctx, "palette", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "Coolors", results[0].Title)

	results, err = fixture.service.SearchReferences(ctx, "coolors.co", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)

	results, err = fixture.service.SearchReferences(ctx, "   ", 0)
	require.NoError(t, err)
	require.NotNil(t, results)
	require.Empty(t, results)
}

func TestSearchMatchesWildcardsLiterally(t *testing.T) {
	fixture := newCatalogFixture(t, "")
	ctx := context.Background()
	fixture.reference(t, "100%free")
	fixture.reference(t, "snake_case")
	fixture.reference(t, "plain")

	results, err := fixture.service.SearchReferences(ctx, "%", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "100%free", results[0].Title)

	results, err = fixture.service.SearchReferences(ctx, "_", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "snake_case", results[0].Title)
}

func TestThumbnailBackfillQueries(t *testing.T) {
	fixture := newCatalogFixture(t, "")
	ctx := context.Background()
	missing := fixture.reference(t, "missing")
	_, err := fixture.service.CreateReference(ctx, ReferenceInput{
		Title:     "present",
		URL:       "https://present.example",
		Thumbnail: stringPtr("https://present.example/og.png"),
	}, 0)
	require.NoError(t, err)

	pending, err := fixture.service.ListMissingThumbnails(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, missing.ID, pending[0].ID)

	require.NoError(t, fixture.service.SetThumbnail(ctx, missing.ID, "https://img.example/x.png"))
	pending, err = fixture.service.ListMissingThumbnails(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)

	requireKind(t, fixture.service.SetThumbnail(ctx, 12345, "https://img"), serviceerr.KindNotFound)
}

func TestFieldUnmarshalDistinguishesNullFromAbsent(t *testing.T) {
	var patch CategoryPatch
	require.NoError(t, json.Unmarshal([]byte(`{"icon": null, "color": "bg-pink-500"}`), &patch))
	require.False(t, patch.Name.Set)
	require.True(t, patch.Icon.Set)
	require.Nil(t, patch.Icon.Value)
	require.True(t, patch.Color.Set)
	require.Equal(t, "bg-pink-500", *patch.Color.Value)
}
