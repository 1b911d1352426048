package domain

import (
	"strings"
	"time"
	"unicode"
)

type Category struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Status string `json:"status"` // active|archived
}

type Tag struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Status string `json:"status"`
}

type ReportStatus string

const (
	ReportOpen      ReportStatus = "open"
	ReportResolved  ReportStatus = "resolved"
	ReportDismissed ReportStatus = "dismissed"
)

type Report struct {
	ID         int64        `json:"id"`
	TargetType string       `json:"target_type"` // listing|review
	TargetID   int64        `json:"target_id"`
	ReporterID *int64       `json:"reporter_id,omitempty"`
	Reason     string       `json:"reason"`
	Status     ReportStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
}

type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`   // member|admin
	Status    string    `json:"status"` // active|suspended
	CreatedAt time.Time `json:"created_at"`
}

// Stats backs the admin dashboard.
type Stats struct {
	ListingsByStatus map[ListingStatus]int `json:"listings_by_status"`
	PendingReviews   int                   `json:"pending_reviews"`
	OpenReports      int                   `json:"open_reports"`
	Users            int                   `json:"users"`
}

// Slugify lowercases, keeps letters and digits, and joins words with '-'.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
