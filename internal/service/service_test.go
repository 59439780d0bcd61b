package service

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dastanaron/linkmark/internal/models"
	"github.com/dastanaron/linkmark/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedClock hands out strictly increasing timestamps so every mutation in
// a test gets a distinct, predictable time.
type fixedClock struct {
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.now = c.now.Add(time.Minute)
	return c.now
}

// fakeBrowser records opened URLs and can be told to fail on some of them.
type fakeBrowser struct {
	opened  []string
	failFor map[string]error
}

func (b *fakeBrowser) Open(url string) error {
	if err, ok := b.failFor[url]; ok {
		return err
	}
	b.opened = append(b.opened, url)
	return nil
}

// failingRepo wraps a real repository and fails Save on demand.
type failingRepo struct {
	repository.LinkRepository
	saveErr error
}

func (r *failingRepo) Save(links []models.Link) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	return r.LinkRepository.Save(links)
}

func newTestService(t *testing.T) (*LinkService, *fakeBrowser, repository.LinkRepository) {
	t.Helper()
	repo := repository.NewJSONLinkRepository(filepath.Join(t.TempDir(), "links.json"))
	browser := &fakeBrowser{failFor: map[string]error{}}
	svc, err := NewLinkService(repo, browser, nil,
		WithClock(newFixedClock()),
		WithRand(rand.New(rand.NewSource(1))),
	)
	require.NoError(t, err)
	return svc, browser, repo
}

func TestLinkService_Add(t *testing.T) {
	svc, _, repo := newTestService(t)

	first, err := svc.Add("Example", "example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, "https://example.com", first.URL)
	assert.False(t, first.DateAdded.IsZero())

	second, err := svc.Add("", "https://docs.example.com/guide")
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.ID)
	assert.Equal(t, "docs.example.com/guide", second.Name)
	assert.True(t, second.DateAdded.After(first.DateAdded))

	// Adds are persisted immediately.
	stored, err := repo.Load()
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestLinkService_AddInvalid(t *testing.T) {
	svc, _, repo := newTestService(t)

	_, err := svc.Add("Broken", "   ")
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
	assert.Empty(t, svc.All())

	// Nothing was written for the rejected add.
	_, statErr := os.Stat(repo.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestLinkService_IDsNotReusedAfterDelete(t *testing.T) {
	svc, _, _ := newTestService(t)

	a, err := svc.Add("A", "https://a.example.com")
	require.NoError(t, err)
	b, err := svc.Add("B", "https://b.example.com")
	require.NoError(t, err)

	_, err = svc.Delete([]int64{a.ID, b.ID})
	require.NoError(t, err)

	c, err := svc.Add("C", "https://c.example.com")
	require.NoError(t, err)
	assert.Greater(t, c.ID, b.ID)
}

func TestLinkService_SequenceContinuesAfterReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "links.json")
	repo := repository.NewJSONLinkRepository(path)
	browser := &fakeBrowser{}

	svc, err := NewLinkService(repo, browser, nil, WithClock(newFixedClock()))
	require.NoError(t, err)
	_, err = svc.Add("A", "https://a.example.com")
	require.NoError(t, err)
	b, err := svc.Add("B", "https://b.example.com")
	require.NoError(t, err)

	// A new service over the same file must not reissue existing IDs.
	reloaded, err := NewLinkService(repository.NewJSONLinkRepository(path), browser, nil, WithClock(newFixedClock()))
	require.NoError(t, err)
	c, err := reloaded.Add("C", "https://c.example.com")
	require.NoError(t, err)
	assert.Equal(t, b.ID+1, c.ID)
}

func TestLinkService_AddBatchSkipsInvalid(t *testing.T) {
	svc, _, _ := newTestService(t)

	carried := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	result, err := svc.AddBatch([]BatchEntry{
		{Name: "Good", URL: "https://good.example.com", Tags: []string{"Imported", "go"}},
		{Name: "Bad", URL: ""},
		{Name: "Imported", URL: "https://old.example.com", AddedAt: &carried},
	})
	require.NoError(t, err)

	require.Len(t, result.Added, 2)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, 1, result.Failed[0].Index)
	assert.True(t, models.IsValidation(result.Failed[0].Err))
	assert.Equal(t, []string{"go", "imported"}, result.Added[0].Tags)
	assert.True(t, result.Added[1].DateAdded.Equal(carried), "importers carry original timestamps")
	assert.Len(t, svc.All(), 2)
}

func TestLinkService_AddBatchAllInvalidWritesNothing(t *testing.T) {
	svc, _, repo := newTestService(t)

	result, err := svc.AddBatch([]BatchEntry{
		{URL: ""},
		{URL: "   "},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Added)
	assert.Len(t, result.Failed, 2)

	_, statErr := os.Stat(repo.Path())
	assert.True(t, os.IsNotExist(statErr), "no save when nothing was added")
}

func TestLinkService_Edit(t *testing.T) {
	svc, _, _ := newTestService(t)
	link, err := svc.Add("Old", "https://old.example.com")
	require.NoError(t, err)

	name := "New name"
	fav := true
	updated, err := svc.Edit(link.ID, LinkEdit{Name: &name, IsFavorite: &fav})
	require.NoError(t, err)
	assert.Equal(t, "New name", updated.Name)
	assert.True(t, updated.IsFavorite)
	assert.Equal(t, link.URL, updated.URL, "untouched fields keep their value")

	url := "new.example.com"
	updated, err = svc.Edit(link.ID, LinkEdit{URL: &url})
	require.NoError(t, err)
	assert.Equal(t, "https://new.example.com", updated.URL)
}

func TestLinkService_EditFailuresLeaveLinkUntouched(t *testing.T) {
	svc, _, _ := newTestService(t)
	link, err := svc.Add("Keep", "https://keep.example.com")
	require.NoError(t, err)

	_, err = svc.Edit(9999, LinkEdit{})
	assert.ErrorIs(t, err, models.ErrNotFound)

	bad := "   "
	_, err = svc.Edit(link.ID, LinkEdit{URL: &bad})
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))

	current, err := svc.Get(link.ID)
	require.NoError(t, err)
	assert.Equal(t, link, current)
}

func TestLinkService_Delete(t *testing.T) {
	svc, _, repo := newTestService(t)
	a, _ := svc.Add("A", "https://a.example.com")
	b, _ := svc.Add("B", "https://b.example.com")
	c, _ := svc.Add("C", "https://c.example.com")

	deleted, err := svc.Delete([]int64{a.ID, c.ID, 9999})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted, "unknown IDs are ignored, not errors")

	remaining := svc.All()
	require.Len(t, remaining, 1)
	assert.Equal(t, b.ID, remaining[0].ID)

	// Deleting nothing leaves the file byte for byte unchanged.
	before, err := os.ReadFile(repo.Path())
	require.NoError(t, err)
	deleted, err = svc.Delete([]int64{9999})
	require.NoError(t, err)
	assert.Zero(t, deleted)
	after, err := os.ReadFile(repo.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLinkService_Toggles(t *testing.T) {
	svc, _, _ := newTestService(t)
	a, _ := svc.Add("A", "https://a.example.com")
	b, _ := svc.Add("B", "https://b.example.com")

	changed, err := svc.ToggleFavorite([]int64{a.ID, b.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	changed, err = svc.ToggleFavorite([]int64{a.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	got, _ := svc.Get(a.ID)
	assert.False(t, got.IsFavorite, "a double toggle returns to the start")
	got, _ = svc.Get(b.ID)
	assert.True(t, got.IsFavorite)

	changed, err = svc.ToggleRead([]int64{a.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	got, _ = svc.Get(a.ID)
	assert.True(t, got.IsRead)
	assert.Nil(t, got.DateLastOpened, "marking read by hand does not fake an open")
}

func TestLinkService_Open(t *testing.T) {
	svc, browser, _ := newTestService(t)
	a, _ := svc.Add("A", "https://a.example.com")
	b, _ := svc.Add("B", "https://b.example.com")
	browser.failFor[b.URL] = errors.New("no display")

	result, err := svc.Open([]int64{a.ID, b.ID, 9999})
	require.NoError(t, err)

	assert.Equal(t, []int64{a.ID}, result.Opened)
	require.Len(t, result.Failed, 2)
	assert.Equal(t, b.ID, result.Failed[0].ID)
	assert.ErrorIs(t, result.Failed[1].Err, models.ErrNotFound)
	assert.Equal(t, []string{a.URL}, browser.opened)

	got, _ := svc.Get(a.ID)
	require.NotNil(t, got.DateLastOpened)
	assert.True(t, got.IsRead)

	got, _ = svc.Get(b.ID)
	assert.Nil(t, got.DateLastOpened, "a failed open leaves the link untouched")
	assert.False(t, got.IsRead)
}

func TestLinkService_Search(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.Add("Go Blog", "https://go.dev/blog")
	svc.Add("Rust Book", "https://doc.rust-lang.org/book")
	svc.Add("Weekly", "https://golangweekly.com")

	found := svc.Search("GO")
	require.Len(t, found, 2, "matches name or URL, case-insensitive")

	found = svc.Search("  rust ")
	require.Len(t, found, 1)
	assert.Equal(t, "Rust Book", found[0].Name)

	assert.Len(t, svc.Search(""), 3, "empty query returns everything")
	assert.Empty(t, svc.Search("nothing-matches-this"))
}

func TestLinkService_SortOrder(t *testing.T) {
	svc, _, _ := newTestService(t)
	// Added in this order, so date_added ascends a, b, c.
	a, _ := svc.Add("zeta", "https://a.example.com")
	b, _ := svc.Add("Alpha", "https://c.example.com")
	c, _ := svc.Add("midway", "https://b.example.com")

	// Default order: newest first.
	got := svc.All()
	assert.Equal(t, []int64{c.ID, b.ID, a.ID}, ids(got))

	got = svc.Sort(models.SortByName, true)
	assert.Equal(t, []int64{b.ID, c.ID, a.ID}, ids(got), "name sort is case-insensitive")

	got = svc.Sort(models.SortByURL, true)
	assert.Equal(t, []int64{a.ID, c.ID, b.ID}, ids(got))

	field, asc := svc.SortConfig()
	assert.Equal(t, models.SortByURL, field)
	assert.True(t, asc)
}

func TestSortLinks_NeverOpenedSortLast(t *testing.T) {
	opened := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	later := opened.Add(time.Hour)
	links := []models.Link{
		{ID: 1, Name: "never", URL: "https://n.example.com"},
		{ID: 2, Name: "old", URL: "https://o.example.com", DateLastOpened: &opened},
		{ID: 3, Name: "recent", URL: "https://r.example.com", DateLastOpened: &later},
	}

	SortLinks(links, models.SortByLastOpened, true)
	assert.Equal(t, []int64{2, 3, 1}, ids(links))

	SortLinks(links, models.SortByLastOpened, false)
	assert.Equal(t, []int64{3, 2, 1}, ids(links), "never-opened links sort last in both directions")
}

func TestSortLinks_TiesBreakByID(t *testing.T) {
	added := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	links := []models.Link{
		{ID: 3, Name: "same", URL: "https://x.example.com", DateAdded: added},
		{ID: 1, Name: "same", URL: "https://x.example.com", DateAdded: added},
		{ID: 2, Name: "same", URL: "https://x.example.com", DateAdded: added},
	}

	SortLinks(links, models.SortByName, false)
	assert.Equal(t, []int64{1, 2, 3}, ids(links))
}

func TestLinkService_Random(t *testing.T) {
	svc, _, _ := newTestService(t)

	assert.Nil(t, svc.Random(false), "empty collection yields nil")

	a, _ := svc.Add("A", "https://a.example.com")
	b, _ := svc.Add("B", "https://b.example.com")
	_, err := svc.ToggleRead([]int64{a.ID})
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		pick := svc.Random(true)
		require.NotNil(t, pick)
		assert.Equal(t, b.ID, pick.ID, "unread-only never picks a read link")
	}

	_, err = svc.ToggleRead([]int64{b.ID})
	require.NoError(t, err)
	assert.Nil(t, svc.Random(true), "no unread links yields nil")
	assert.NotNil(t, svc.Random(false))
}

func TestLinkService_AddWithTags(t *testing.T) {
	svc, _, _ := newTestService(t)

	link, err := svc.Add("Example", "https://example.com", " Go ", "tools", "GO")
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "tools"}, link.Tags)

	plain, err := svc.Add("Plain", "https://plain.example.com")
	require.NoError(t, err)
	assert.Nil(t, plain.Tags)
}

func TestLinkService_TagBatchOps(t *testing.T) {
	svc, _, repo := newTestService(t)
	a, _ := svc.Add("A", "https://a.example.com", "shared")
	b, _ := svc.Add("B", "https://b.example.com")

	changed, err := svc.TagLinks([]int64{a.ID, b.ID, 9999}, "Shared")
	require.NoError(t, err)
	assert.Equal(t, 1, changed, "only links without the tag count as changed")

	got, _ := svc.Get(b.ID)
	assert.Equal(t, []string{"shared"}, got.Tags)

	_, err = svc.TagLinks([]int64{a.ID}, "   ")
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))

	changed, err = svc.UntagLinks([]int64{a.ID, b.ID}, "shared")
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	// Untagging links that no longer carry the tag leaves the file alone.
	before, err := os.ReadFile(repo.Path())
	require.NoError(t, err)
	changed, err = svc.UntagLinks([]int64{a.ID, b.ID}, "shared")
	require.NoError(t, err)
	assert.Zero(t, changed)
	after, err := os.ReadFile(repo.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = svc.TagLinks([]int64{a.ID}, "x")
	require.NoError(t, err)
	_, err = svc.TagLinks([]int64{a.ID}, "y")
	require.NoError(t, err)
	changed, err = svc.ClearTags([]int64{a.ID, b.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, changed, "only links with tags count")
	got, _ = svc.Get(a.ID)
	assert.Empty(t, got.Tags)
}

func TestLinkService_EditReplacesTags(t *testing.T) {
	svc, _, _ := newTestService(t)
	link, _ := svc.Add("A", "https://a.example.com", "old")

	tags := []string{" New ", "KEEP", "new"}
	updated, err := svc.Edit(link.ID, LinkEdit{Tags: &tags})
	require.NoError(t, err)
	assert.Equal(t, []string{"keep", "new"}, updated.Tags)

	empty := []string{}
	updated, err = svc.Edit(link.ID, LinkEdit{Tags: &empty})
	require.NoError(t, err)
	assert.Nil(t, updated.Tags)
}

func TestLinkService_FilterByTags(t *testing.T) {
	svc, _, _ := newTestService(t)
	a, _ := svc.Add("A", "https://a.example.com", "go", "tools")
	b, _ := svc.Add("B", "https://b.example.com", "go")
	svc.Add("C", "https://c.example.com")

	got := svc.FilterByTag("GO")
	assert.ElementsMatch(t, []int64{a.ID, b.ID}, ids(got))

	got = svc.FilterByTags([]string{"go", "tools"}, true)
	assert.Equal(t, []int64{a.ID}, ids(got))

	got = svc.FilterByTags([]string{"go", "tools"}, false)
	assert.ElementsMatch(t, []int64{a.ID, b.ID}, ids(got))

	assert.Len(t, svc.FilterByTag(""), 3, "empty tag returns everything")
	assert.Len(t, svc.FilterByTags(nil, true), 3)
	assert.Empty(t, svc.FilterByTag("rust"))
}

func TestLinkService_SearchMatchesTags(t *testing.T) {
	svc, _, _ := newTestService(t)
	tagged, _ := svc.Add("Reference", "https://ref.example.com", "golang")
	svc.Add("Other", "https://other.example.com")

	found := svc.Search("golan")
	require.Len(t, found, 1)
	assert.Equal(t, tagged.ID, found[0].ID)
}

func TestLinkService_TagInventory(t *testing.T) {
	svc, _, _ := newTestService(t)

	assert.Empty(t, svc.AllTags())

	svc.Add("A", "https://a.example.com", "go", "tools")
	svc.Add("B", "https://b.example.com", "go")

	assert.Equal(t, []string{"go", "tools"}, svc.AllTags())
	assert.Equal(t, map[string]int{"go": 2, "tools": 1}, svc.TagCounts())
}

func TestLinkService_TagsSurviveReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "links.json")
	svc, err := NewLinkService(repository.NewJSONLinkRepository(path), &fakeBrowser{}, nil, WithClock(newFixedClock()))
	require.NoError(t, err)
	link, err := svc.Add("A", "https://a.example.com", "go", "tools")
	require.NoError(t, err)

	reloaded, err := NewLinkService(repository.NewJSONLinkRepository(path), &fakeBrowser{}, nil)
	require.NoError(t, err)
	got, err := reloaded.Get(link.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "tools"}, got.Tags)
}

func TestLinkService_ObserversFireOnMutationsOnly(t *testing.T) {
	svc, _, _ := newTestService(t)

	calls := 0
	var lastSeen []models.Link
	handle := svc.Subscribe(func(links []models.Link) {
		calls++
		lastSeen = links
	})

	link, err := svc.Add("A", "https://a.example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	require.Len(t, lastSeen, 1)

	svc.All()
	svc.Search("a")
	svc.Random(false)
	assert.Equal(t, 1, calls, "queries never notify")

	_, err = svc.Delete([]int64{9999})
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "a no-op mutation never notifies")

	_, err = svc.ToggleFavorite([]int64{link.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	svc.Unsubscribe(handle)
	_, err = svc.Delete([]int64{link.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "unsubscribed observers stay silent")
}

func TestLinkService_PersistFailureRollsBack(t *testing.T) {
	repo := &failingRepo{
		LinkRepository: repository.NewJSONLinkRepository(filepath.Join(t.TempDir(), "links.json")),
	}
	svc, err := NewLinkService(repo, &fakeBrowser{}, nil, WithClock(newFixedClock()))
	require.NoError(t, err)

	link, err := svc.Add("Keep", "https://keep.example.com")
	require.NoError(t, err)

	notified := false
	svc.Subscribe(func([]models.Link) { notified = true })

	repo.saveErr = errors.New("disk full")

	_, err = svc.Add("Lost", "https://lost.example.com")
	require.Error(t, err)
	assert.False(t, notified, "no notification when persistence fails")
	assert.Len(t, svc.All(), 1, "failed add is rolled back")

	_, err = svc.Delete([]int64{link.ID})
	require.Error(t, err)
	assert.Len(t, svc.All(), 1, "failed delete is rolled back")

	fav := true
	_, err = svc.Edit(link.ID, LinkEdit{IsFavorite: &fav})
	require.Error(t, err)
	got, _ := svc.Get(link.ID)
	assert.False(t, got.IsFavorite, "failed edit is rolled back")

	repo.saveErr = nil
	_, err = svc.Add("Works", "https://works.example.com")
	require.NoError(t, err)
	assert.True(t, notified)
	assert.Len(t, svc.All(), 2)
}

func TestNewLinkService_RefusesCorruptStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "links.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))

	_, err := NewLinkService(repository.NewJSONLinkRepository(path), &fakeBrowser{}, nil)
	require.Error(t, err)
	assert.True(t, models.IsStorage(err))
}

func ids(links []models.Link) []int64 {
	out := make([]int64, len(links))
	for i, l := range links {
		out[i] = l.ID
	}
	return out
}
