package service

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/dastanaron/linkmark/internal/models"
	"github.com/dastanaron/linkmark/internal/repository"
	"go.uber.org/zap"
)

// Observer is notified with the full collection after every successful
// mutation, once the in-memory state and the persisted state both hold it.
type Observer func(links []models.Link)

// BatchEntry is one candidate link for AddBatch. AddedAt, when set, is used
// instead of the clock; importers use it to carry over original timestamps
// and tags.
type BatchEntry struct {
	Name    string
	URL     string
	Tags    []string
	AddedAt *time.Time
}

// BatchFailure reports one rejected batch entry.
type BatchFailure struct {
	Index int
	URL   string
	Err   error
}

// BatchResult aggregates the outcome of a batch add: valid entries are
// added together, invalid ones are skipped and reported.
type BatchResult struct {
	Added  []models.Link
	Failed []BatchFailure
}

// LinkEdit carries the fields to change in Edit. Nil fields are left as-is.
// Tags replaces the whole tag set.
type LinkEdit struct {
	Name       *string
	URL        *string
	Tags       *[]string
	IsFavorite *bool
	IsRead     *bool
}

// OpenFailure reports one link that could not be opened.
type OpenFailure struct {
	ID  int64
	Err error
}

// OpenResult aggregates a best-effort Open call.
type OpenResult struct {
	Opened []int64
	Failed []OpenFailure
}

// LinkService is the sole mutation surface for link business rules. It owns
// the in-memory working set and mediates between presentation and the
// repository. Every mutating operation runs mutate -> persist -> notify; if
// persistence fails the in-memory change is rolled back and no notification
// fires, so memory and disk never diverge silently.
type LinkService struct {
	repo    repository.LinkRepository
	browser Browser
	clock   Clock
	ids     IDGenerator
	rng     *rand.Rand
	log     *zap.Logger

	links     []models.Link
	sortField models.SortField
	sortAsc   bool

	observers    map[int]Observer
	nextObserver int
}

// Option configures a LinkService.
type Option func(*LinkService)

// WithClock injects a clock, used by tests to control timestamps.
func WithClock(c Clock) Option {
	return func(s *LinkService) { s.clock = c }
}

// WithIDGenerator injects an ID generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *LinkService) { s.ids = g }
}

// WithRand injects the randomness source used by Random.
func WithRand(r *rand.Rand) Option {
	return func(s *LinkService) { s.rng = r }
}

// NewLinkService loads the collection and wires the service's
// collaborators. A load failure is returned as-is: the application must not
// proceed with an empty collection over an unreadable file, or a later save
// would overwrite data the user could still repair.
func NewLinkService(repo repository.LinkRepository, browser Browser, log *zap.Logger, opts ...Option) (*LinkService, error) {
	links, err := repo.Load()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &LinkService{
		repo:      repo,
		browser:   browser,
		clock:     SystemClock(),
		log:       log,
		links:     links,
		sortField: models.SortByDateAdded,
		sortAsc:   false,
		observers: make(map[int]Observer),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ids == nil {
		s.ids = NewSequence(maxID(links))
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(s.clock.Now().UnixNano()))
	}
	return s, nil
}

// Subscribe registers an observer and returns a handle for Unsubscribe.
// Observers fire on mutations only, never on queries.
func (s *LinkService) Subscribe(o Observer) int {
	s.nextObserver++
	s.observers[s.nextObserver] = o
	return s.nextObserver
}

// Unsubscribe removes the observer registered under the handle.
func (s *LinkService) Unsubscribe(handle int) {
	delete(s.observers, handle)
}

// Add validates, stores and persists a new link, optionally tagged.
func (s *LinkService) Add(name, url string, tags ...string) (models.Link, error) {
	link, err := models.NewLink(name, url)
	if err != nil {
		return models.Link{}, err
	}
	link.ID = s.ids.Next()
	link.DateAdded = s.clock.Now()
	link.Tags = models.NormalizeTags(tags)

	prev := s.links
	s.links = append(s.snapshot(), link)
	if err := s.persist(prev); err != nil {
		return models.Link{}, err
	}
	return link, nil
}

// AddBatch adds many links at once. Entries that fail validation are
// skipped and reported instead of aborting the batch; the valid remainder
// is persisted in a single save. A persistence failure rolls the whole
// batch back.
func (s *LinkService) AddBatch(entries []BatchEntry) (BatchResult, error) {
	var result BatchResult

	next := s.snapshot()
	for i, e := range entries {
		link, err := models.NewLink(e.Name, e.URL)
		if err != nil {
			s.log.Warn("skipping invalid batch entry", zap.Int("index", i), zap.String("url", e.URL), zap.Error(err))
			result.Failed = append(result.Failed, BatchFailure{Index: i, URL: e.URL, Err: err})
			continue
		}
		link.ID = s.ids.Next()
		link.Tags = models.NormalizeTags(e.Tags)
		if e.AddedAt != nil {
			link.DateAdded = *e.AddedAt
		} else {
			link.DateAdded = s.clock.Now()
		}
		next = append(next, link)
		result.Added = append(result.Added, link)
	}

	if len(result.Added) == 0 {
		return result, nil
	}

	prev := s.links
	s.links = next
	if err := s.persist(prev); err != nil {
		return BatchResult{}, err
	}
	return result, nil
}

// Edit applies the supplied fields to the link with the given ID,
// re-validates and persists. All-or-nothing: a validation failure leaves
// the link untouched.
func (s *LinkService) Edit(id int64, edit LinkEdit) (models.Link, error) {
	idx := s.indexOf(id)
	if idx < 0 {
		return models.Link{}, fmt.Errorf("link %d: %w", id, models.ErrNotFound)
	}

	updated := s.links[idx]
	if edit.URL != nil {
		normalized, err := models.NormalizeURL(*edit.URL)
		if err != nil {
			return models.Link{}, err
		}
		updated.URL = normalized
	}
	if edit.Name != nil {
		updated.Name = strings.TrimSpace(*edit.Name)
	}
	if edit.Tags != nil {
		updated.Tags = models.NormalizeTags(*edit.Tags)
	}
	if edit.IsFavorite != nil {
		updated.IsFavorite = *edit.IsFavorite
	}
	if edit.IsRead != nil {
		updated.IsRead = *edit.IsRead
	}
	if err := updated.Validate(); err != nil {
		return models.Link{}, err
	}

	prev := s.links
	next := s.snapshot()
	next[idx] = updated
	s.links = next
	if err := s.persist(prev); err != nil {
		return models.Link{}, err
	}
	return updated, nil
}

// Delete removes all links matching the given IDs and persists once.
// Unknown IDs are ignored. Returns the number of links deleted; when
// nothing matched, neither the collection nor the file changes.
func (s *LinkService) Delete(ids []int64) (int, error) {
	wanted := idSet(ids)
	next := make([]models.Link, 0, len(s.links))
	deleted := 0
	for _, l := range s.links {
		if wanted[l.ID] {
			deleted++
			continue
		}
		next = append(next, l)
	}
	if deleted == 0 {
		return 0, nil
	}

	prev := s.links
	s.links = next
	if err := s.persist(prev); err != nil {
		return 0, err
	}
	return deleted, nil
}

// ToggleFavorite flips the favorite flag on each matching link and persists
// once. Unknown IDs are ignored. Returns the number of links changed.
func (s *LinkService) ToggleFavorite(ids []int64) (int, error) {
	return s.mutateEach(ids, func(l *models.Link) bool {
		l.ToggleFavorite()
		return true
	})
}

// ToggleRead flips the read flag on each matching link and persists once.
// Unknown IDs are ignored. Returns the number of links changed.
func (s *LinkService) ToggleRead(ids []int64) (int, error) {
	return s.mutateEach(ids, func(l *models.Link) bool {
		l.ToggleRead()
		return true
	})
}

// TagLinks attaches a tag to each matching link and persists once. Returns
// the number of links that did not already carry the tag.
func (s *LinkService) TagLinks(ids []int64, tag string) (int, error) {
	if models.NormalizeTag(tag) == "" {
		return 0, &models.ValidationError{Field: "tag", Reason: "cannot be empty"}
	}
	return s.mutateEach(ids, func(l *models.Link) bool { return l.AddTag(tag) })
}

// UntagLinks detaches a tag from each matching link and persists once.
// Returns the number of links that carried the tag.
func (s *LinkService) UntagLinks(ids []int64, tag string) (int, error) {
	return s.mutateEach(ids, func(l *models.Link) bool { return l.RemoveTag(tag) })
}

// ClearTags drops every tag from each matching link and persists once.
// Returns the number of links that had tags.
func (s *LinkService) ClearTags(ids []int64) (int, error) {
	return s.mutateEach(ids, func(l *models.Link) bool { return l.ClearTags() })
}

// mutateEach applies mutate to every matching link and persists once when
// anything changed. Unknown IDs are ignored; a no-op leaves the collection
// and the file untouched.
func (s *LinkService) mutateEach(ids []int64, mutate func(*models.Link) bool) (int, error) {
	wanted := idSet(ids)
	next := s.snapshot()
	changed := 0
	for i := range next {
		if wanted[next[i].ID] && mutate(&next[i]) {
			changed++
		}
	}
	if changed == 0 {
		return 0, nil
	}

	prev := s.links
	s.links = next
	if err := s.persist(prev); err != nil {
		return 0, err
	}
	return changed, nil
}

// Open delegates each link's URL to the browser, best-effort: one failed
// open is reported but does not block the rest. Successfully opened links
// get date_last_opened set and are marked read, persisted in a single save.
func (s *LinkService) Open(ids []int64) (OpenResult, error) {
	var result OpenResult

	next := s.snapshot()
	for _, id := range ids {
		idx := indexOf(next, id)
		if idx < 0 {
			result.Failed = append(result.Failed, OpenFailure{ID: id, Err: fmt.Errorf("link %d: %w", id, models.ErrNotFound)})
			continue
		}
		if err := s.browser.Open(next[idx].URL); err != nil {
			s.log.Warn("browser open failed", zap.Int64("id", id), zap.String("url", next[idx].URL), zap.Error(err))
			result.Failed = append(result.Failed, OpenFailure{ID: id, Err: err})
			continue
		}
		next[idx].MarkOpened(s.clock.Now())
		result.Opened = append(result.Opened, id)
	}

	if len(result.Opened) == 0 {
		return result, nil
	}

	prev := s.links
	s.links = next
	if err := s.persist(prev); err != nil {
		return OpenResult{}, err
	}
	return result, nil
}

// All returns the collection in the configured sort order.
func (s *LinkService) All() []models.Link {
	out := s.snapshot()
	SortLinks(out, s.sortField, s.sortAsc)
	return out
}

// Get returns the link with the given ID.
func (s *LinkService) Get(id int64) (models.Link, error) {
	idx := s.indexOf(id)
	if idx < 0 {
		return models.Link{}, fmt.Errorf("link %d: %w", id, models.ErrNotFound)
	}
	return s.links[idx], nil
}

// Search returns links whose name, URL or any tag contains the query,
// case-insensitive, in the configured sort order. An empty query returns
// the full collection.
func (s *LinkService) Search(query string) []models.Link {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return s.All()
	}

	out := make([]models.Link, 0, len(s.links))
	for _, l := range s.links {
		if strings.Contains(strings.ToLower(l.Name), query) ||
			strings.Contains(strings.ToLower(l.URL), query) ||
			tagsMatch(l.Tags, query) {
			out = append(out, l)
		}
	}
	SortLinks(out, s.sortField, s.sortAsc)
	return out
}

func tagsMatch(tags []string, query string) bool {
	for _, t := range tags {
		if strings.Contains(t, query) {
			return true
		}
	}
	return false
}

// FilterByTag returns links carrying the tag, in the configured sort order.
// An empty tag returns the full collection.
func (s *LinkService) FilterByTag(tag string) []models.Link {
	if models.NormalizeTag(tag) == "" {
		return s.All()
	}
	return s.FilterByTags([]string{tag}, true)
}

// FilterByTags returns links matching the tags, in the configured sort
// order. With matchAll a link must carry every tag, otherwise any one of
// them. An empty tag list returns the full collection.
func (s *LinkService) FilterByTags(tags []string, matchAll bool) []models.Link {
	tags = models.NormalizeTags(tags)
	if len(tags) == 0 {
		return s.All()
	}

	out := make([]models.Link, 0, len(s.links))
	for _, l := range s.links {
		matched := 0
		for _, t := range tags {
			if l.HasTag(t) {
				matched++
			}
		}
		if (matchAll && matched == len(tags)) || (!matchAll && matched > 0) {
			out = append(out, l)
		}
	}
	SortLinks(out, s.sortField, s.sortAsc)
	return out
}

// AllTags returns every distinct tag in the collection, sorted.
func (s *LinkService) AllTags() []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range s.links {
		for _, t := range l.Tags {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	sort.Strings(out)
	return out
}

// TagCounts returns how many links carry each tag.
func (s *LinkService) TagCounts() map[string]int {
	counts := make(map[string]int)
	for _, l := range s.links {
		for _, t := range l.Tags {
			counts[t]++
		}
	}
	return counts
}

// SetSort configures the order used by All and Search.
func (s *LinkService) SetSort(field models.SortField, ascending bool) {
	s.sortField = field
	s.sortAsc = ascending
}

// Sort sets the order and returns the re-sorted collection.
func (s *LinkService) Sort(field models.SortField, ascending bool) []models.Link {
	s.SetSort(field, ascending)
	return s.All()
}

// SortConfig returns the current sort field and direction.
func (s *LinkService) SortConfig() (models.SortField, bool) {
	return s.sortField, s.sortAsc
}

// Random picks a uniformly random link, optionally restricted to unread
// ones. Returns nil when the eligible subset is empty.
func (s *LinkService) Random(unreadOnly bool) *models.Link {
	eligible := make([]models.Link, 0, len(s.links))
	for _, l := range s.links {
		if unreadOnly && !l.IsUnread() {
			continue
		}
		eligible = append(eligible, l)
	}
	if len(eligible) == 0 {
		return nil
	}
	pick := eligible[s.rng.Intn(len(eligible))]
	return &pick
}

// persist saves the current collection, rolling back to prev and skipping
// notification on failure.
func (s *LinkService) persist(prev []models.Link) error {
	if err := s.repo.Save(s.links); err != nil {
		s.links = prev
		return err
	}
	s.notify()
	return nil
}

func (s *LinkService) notify() {
	snapshot := s.All()
	for _, o := range s.observers {
		o(snapshot)
	}
}

func (s *LinkService) snapshot() []models.Link {
	out := make([]models.Link, len(s.links))
	copy(out, s.links)
	return out
}

func (s *LinkService) indexOf(id int64) int {
	return indexOf(s.links, id)
}

func indexOf(links []models.Link, id int64) int {
	for i := range links {
		if links[i].ID == id {
			return i
		}
	}
	return -1
}

func idSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func maxID(links []models.Link) int64 {
	var max int64
	for _, l := range links {
		if l.ID > max {
			max = l.ID
		}
	}
	return max
}

// SortLinks orders links by the given field. Never-set timestamps sort last
// regardless of direction, and ties break by ID ascending so the order is a
// deterministic total order.
func SortLinks(links []models.Link, field models.SortField, ascending bool) {
	sort.SliceStable(links, func(i, j int) bool {
		a, b := links[i], links[j]
		if field == models.SortByLastOpened {
			aNil, bNil := a.DateLastOpened == nil, b.DateLastOpened == nil
			if aNil != bNil {
				return bNil
			}
		}
		c := compareField(a, b, field)
		if c != 0 {
			if ascending {
				return c < 0
			}
			return c > 0
		}
		return a.ID < b.ID
	})
}

func compareField(a, b models.Link, field models.SortField) int {
	switch field {
	case models.SortByName:
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case models.SortByURL:
		return strings.Compare(strings.ToLower(a.URL), strings.ToLower(b.URL))
	case models.SortByLastOpened:
		if a.DateLastOpened == nil || b.DateLastOpened == nil {
			return 0
		}
		return compareTime(*a.DateLastOpened, *b.DateLastOpened)
	default:
		return compareTime(a.DateAdded, b.DateAdded)
	}
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}
