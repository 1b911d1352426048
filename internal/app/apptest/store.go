// Package apptest provides in-memory implementations of the domain ports
// for tests.
package apptest

import (
	"cmp"
	"context"
	"encoding/json"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"localdir/internal/domain"
)

// Store implements the listing, review and catalog repositories in memory.
// Hooks allow tests to fail or block individual calls.
type Store struct {
	mu         sync.Mutex
	nextID     int64
	listings   map[int64]domain.Listing
	reviews    map[int64]domain.Review
	categories map[int64]domain.Category
	tags       map[int64]domain.Tag
	reports    map[int64]domain.Report
	users      map[int64]domain.User

	// SearchHook runs before every Search; a non-nil error is returned as is.
	SearchHook  func(ctx context.Context, q domain.ListingQuery) error
	SearchCalls int
	LastQuery   domain.ListingQuery
}

func NewStore() *Store {
	return &Store{
		listings:   map[int64]domain.Listing{},
		reviews:    map[int64]domain.Review{},
		categories: map[int64]domain.Category{},
		tags:       map[int64]domain.Tag{},
		reports:    map[int64]domain.Report{},
		users:      map[int64]domain.User{},
	}
}

func (s *Store) id() int64 { s.nextID++; return s.nextID }

// PutListing stores l as is, assigning an ID when zero.
func (s *Store) PutListing(l domain.Listing) domain.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == 0 {
		l.ID = s.id()
	} else if l.ID > s.nextID {
		s.nextID = l.ID
	}
	s.listings[l.ID] = l
	return l
}

func (s *Store) PutUser(u domain.User) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.id()
	}
	s.users[u.ID] = u
	return u
}

/********** listings **********/

func (s *Store) Search(ctx context.Context, q domain.ListingQuery) ([]domain.Listing, error) {
	s.mu.Lock()
	s.SearchCalls++
	s.LastQuery = q
	hook := s.SearchHook
	s.mu.Unlock()
	if hook != nil {
		if err := hook(ctx, q); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Listing{}
	for _, l := range s.listings {
		if matches(q, l) {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, func(a, b domain.Listing) int {
		ra, rb := -1.0, -1.0
		if a.Rating != nil {
			ra = *a.Rating
		}
		if b.Rating != nil {
			rb = *b.Rating
		}
		if c := cmp.Compare(rb, ra); c != 0 {
			return c
		}
		if c := cmp.Compare(b.ReviewCount, a.ReviewCount); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	limit := q.Limit
	if limit <= 0 {
		limit = domain.DefaultSearchLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matches(q domain.ListingQuery, l domain.Listing) bool {
	statuses := q.Statuses
	if len(statuses) == 0 {
		statuses = domain.VisibleStatuses
	}
	if !slices.Contains(statuses, l.Status) {
		return false
	}
	if q.Box != nil && (l.Coords == nil || !q.Box.Contains(*l.Coords)) {
		return false
	}
	f := domain.SearchFilter{
		Query: q.Query, CategoryID: q.CategoryID, PriceMin: q.PriceMin, PriceMax: q.PriceMax,
		MinRating: q.MinRating, Amenities: q.Amenities,
	}
	// Matches also checks visibility; widen it for explicit status sets.
	if !l.Status.Visible() {
		l.Status = domain.ListingActive
	}
	return f.Matches(l)
}

func (s *Store) GetListing(_ context.Context, id int64) (domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrNotFound
	}
	return l, nil
}

func (s *Store) ListUnlocated(_ context.Context, limit int) ([]domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Listing
	for _, l := range s.listings {
		if l.Coords == nil && strings.TrimSpace(l.Location) != "" {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, func(a, b domain.Listing) int { return cmp.Compare(a.ID, b.ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CountByStatus(context.Context) (map[domain.ListingStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[domain.ListingStatus]int{}
	for _, l := range s.listings {
		out[l.Status]++
	}
	return out, nil
}

func (s *Store) CreateListing(_ context.Context, in domain.ListingInput, status domain.ListingStatus) (domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	l := fromInput(domain.Listing{ID: s.id(), Status: status, CreatedAt: now, Images: []string{}}, in)
	l.UpdatedAt = now
	s.listings[l.ID] = l
	return l, nil
}

func (s *Store) UpdateListing(_ context.Context, id int64, in domain.ListingInput) (domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrNotFound
	}
	l = fromInput(l, in)
	l.UpdatedAt = time.Now().UTC()
	s.listings[id] = l
	return l, nil
}

func fromInput(l domain.Listing, in domain.ListingInput) domain.Listing {
	l.Title = in.Title
	l.CategoryID = in.CategoryID
	l.Coords = in.Coords
	l.PriceLevel = in.PriceLevel
	l.Description = in.Description
	l.Location = in.Location
	l.Contact = in.Contact
	l.Amenities = in.Amenities
	l.Hours = in.Hours
	l.Tags = in.Tags
	l.OwnerID = in.OwnerID
	return l
}

func (s *Store) mutateListing(id int64, fn func(*domain.Listing)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(&l)
	s.listings[id] = l
	return nil
}

func (s *Store) SetListingStatus(_ context.Context, id int64, st domain.ListingStatus) error {
	return s.mutateListing(id, func(l *domain.Listing) { l.Status = st })
}

func (s *Store) SetCoords(_ context.Context, id int64, c domain.Coords) error {
	return s.mutateListing(id, func(l *domain.Listing) { l.Coords = &c })
}

func (s *Store) AddListingImage(_ context.Context, id int64, uri string) error {
	return s.mutateListing(id, func(l *domain.Listing) { l.Images = append(slices.Clone(l.Images), uri) })
}

func (s *Store) DeleteListing(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listings[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.listings, id)
	for rid, r := range s.reviews {
		if r.ListingID == id {
			delete(s.reviews, rid)
		}
	}
	return nil
}

/********** reviews **********/

func (s *Store) CreateReview(_ context.Context, r domain.Review) (domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.id()
	s.reviews[r.ID] = r
	return r, nil
}

func (s *Store) GetReview(_ context.Context, id int64) (domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return domain.Review{}, domain.ErrNotFound
	}
	return r, nil
}

func (s *Store) ListReviews(_ context.Context, listingID int64, pg domain.PageQuery) (domain.ReviewsPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var before int64
	if pg.Cursor != nil {
		before, _ = strconv.ParseInt(*pg.Cursor, 10, 64)
	}
	items := []domain.Review{}
	for _, r := range s.reviews {
		if r.ListingID != listingID || (pg.Status != "" && r.Status != pg.Status) || (before > 0 && r.ID >= before) {
			continue
		}
		items = append(items, r)
	}
	slices.SortFunc(items, func(a, b domain.Review) int { return cmp.Compare(b.ID, a.ID) })
	if pg.Limit > 0 && len(items) > pg.Limit {
		items = items[:pg.Limit]
	}
	return domain.ReviewsPage{Items: items}, nil
}

func (s *Store) SetReviewStatus(_ context.Context, id int64, st domain.ReviewStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Status = st
	s.reviews[id] = r
	return nil
}

func (s *Store) RefreshListingRating(_ context.Context, listingID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[listingID]
	if !ok {
		return domain.ErrNotFound
	}
	sum, n := 0, 0
	for _, r := range s.reviews {
		if r.ListingID == listingID && r.Status == domain.ReviewApproved {
			sum += r.Rating
			n++
		}
	}
	l.ReviewCount = n
	l.Rating = nil
	if n > 0 {
		avg := float64(sum) / float64(n)
		l.Rating = &avg
	}
	s.listings[listingID] = l
	return nil
}

func (s *Store) CountReviews(_ context.Context, st domain.ReviewStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.reviews {
		if st == "" || r.Status == st {
			n++
		}
	}
	return n, nil
}

/********** catalog **********/

func (s *Store) ListCategories(context.Context) ([]domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Category{}
	for _, c := range s.categories {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b domain.Category) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *Store) SaveCategory(_ context.Context, c domain.Category) (domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.id()
	} else if _, ok := s.categories[c.ID]; !ok {
		return domain.Category{}, domain.ErrNotFound
	}
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) DeleteCategory(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) ListTags(context.Context) ([]domain.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Tag{}
	for _, t := range s.tags {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b domain.Tag) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *Store) SaveTag(_ context.Context, t domain.Tag) (domain.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.id()
	} else if _, ok := s.tags[t.ID]; !ok {
		return domain.Tag{}, domain.ErrNotFound
	}
	s.tags[t.ID] = t
	return t, nil
}

func (s *Store) DeleteTag(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tags[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.tags, id)
	return nil
}

func (s *Store) CreateReport(_ context.Context, r domain.Report) (domain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.id()
	s.reports[r.ID] = r
	return r, nil
}

func (s *Store) ListReports(_ context.Context, st domain.ReportStatus) ([]domain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Report{}
	for _, r := range s.reports {
		if st == "" || r.Status == st {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b domain.Report) int { return cmp.Compare(b.ID, a.ID) })
	return out, nil
}

func (s *Store) SetReportStatus(_ context.Context, id int64, st domain.ReportStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Status = st
	s.reports[id] = r
	return nil
}

func (s *Store) CountReports(_ context.Context, st domain.ReportStatus) (int, error) {
	rs, _ := s.ListReports(context.Background(), st)
	return len(rs), nil
}

func (s *Store) ListUsers(_ context.Context, limit int) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.User{}
	for _, u := range s.users {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b domain.User) int { return cmp.Compare(a.ID, b.ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SetUserStatus(_ context.Context, id int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Status = status
	s.users[id] = u
	return nil
}

func (s *Store) CountUsers(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), nil
}

/********** cache **********/

// Cache is a JSON round-tripping domain.Cache, so cached values never alias
// the caller's.
type Cache struct {
	mu   sync.Mutex
	data map[string][]byte
	Hits int
}

func NewCache() *Cache { return &Cache{data: map[string][]byte{}} }

func (c *Cache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	c.Hits++
	return true, json.Unmarshal(b, dst)
}

func (c *Cache) Set(_ context.Context, key string, v any, _ int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.data[key] = b
	c.mu.Unlock()
	return nil
}

func (c *Cache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix, many := strings.CutSuffix(key, "*")
	if !many {
		delete(c.data, key)
		return nil
	}
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
		}
	}
	return nil
}

func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

/********** geocoding & uploads **********/

// Geocoder resolves names from a fixed map, exact match ignoring case.
type Geocoder map[string]domain.Coords

func (g Geocoder) Resolve(_ context.Context, name string) (domain.Coords, error) {
	for k, c := range g {
		if strings.EqualFold(k, strings.TrimSpace(name)) {
			return c, nil
		}
	}
	return domain.Coords{}, domain.ErrLocationNotFound
}

// ObjectStore records uploads and returns mem:// URIs.
type ObjectStore struct {
	mu      sync.Mutex
	Uploads map[string][]byte
}

func (o *ObjectStore) Upload(_ context.Context, name, _ string, data []byte) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Uploads == nil {
		o.Uploads = map[string][]byte{}
	}
	uri := "mem://" + strconv.Itoa(len(o.Uploads)+1) + "/" + name
	o.Uploads[uri] = data
	return uri, nil
}

var (
	_ domain.ListingRepository = (*Store)(nil)
	_ domain.ReviewRepository  = (*Store)(nil)
	_ domain.CatalogRepository = (*Store)(nil)
	_ domain.Cache             = (*Cache)(nil)
	_ domain.ObjectStore       = (*ObjectStore)(nil)
)
