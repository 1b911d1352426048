package mysql

// listingColumns is shared by every listing read; scanListing expects this order.
const listingColumns = `
  l.id,
  l.title,
  l.category_id,
  l.status,
  l.lat,
  l.lng,
  l.price_level,
  l.rating,
  l.review_count,
  l.description,
  l.location,
  l.contact,
  l.amenities,
  l.hours,
  l.images,
  l.owner_id,
  l.created_at,
  l.updated_at,
  (SELECT JSON_ARRAYAGG(t.name)
     FROM listing_tags lt JOIN tags t ON t.id = lt.tag_id
    WHERE lt.listing_id = l.id) AS tags`

const getListingSQL = `SELECT` + listingColumns + `
FROM listings l
WHERE l.id = ?`

// searchOrder puts NULL ratings last (MySQL sorts NULL lowest).
const searchOrder = `
ORDER BY l.rating DESC, l.review_count DESC, l.id ASC
LIMIT ?`

const listUnlocatedSQL = `SELECT` + listingColumns + `
FROM listings l
WHERE (l.lat IS NULL OR l.lng IS NULL) AND l.location <> ''
ORDER BY l.id
LIMIT ?`

const insertListingSQL = `
INSERT INTO listings
  (title, category_id, status, lat, lng, price_level, description, location, contact, amenities, hours, images, owner_id)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '[]', ?)`

const updateListingSQL = `
UPDATE listings SET
  title       = ?,
  category_id = ?,
  lat         = ?,
  lng         = ?,
  price_level = ?,
  description = ?,
  location    = ?,
  contact     = ?,
  amenities   = ?,
  hours       = ?,
  owner_id    = ?
WHERE id = ?`

const upsertTagSQL = `
INSERT INTO tags (name, slug, status) VALUES (?, ?, 'active')
ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)`

// Note: `comment` is reserved; keep it quoted everywhere.
const reviewColumns = "id, listing_id, author_id, rating, `comment`, status, created_at"

const insertReviewSQL = "INSERT INTO reviews (listing_id, author_id, rating, `comment`, status, created_at) VALUES (?, ?, ?, ?, ?, ?)"

// refreshRatingSQL derives rating and review_count from approved reviews.
// AVG over no rows is NULL, which clears the rating.
const refreshRatingSQL = `
UPDATE listings SET
  rating       = (SELECT AVG(r.rating) FROM reviews r WHERE r.listing_id = ? AND r.status = 'approved'),
  review_count = (SELECT COUNT(*)      FROM reviews r WHERE r.listing_id = ? AND r.status = 'approved')
WHERE id = ?`

const reportColumns = "id, target_type, target_id, reporter_id, reason, status, created_at"

const userColumns = "id, name, email, role, status, created_at"
