package domain

import "time"

// Look is one wardrobe entry as stored for a user: a titled, described set of photos.
type Look struct {
	ID          string
	UserID      string
	Title       string
	Description string
	CreatedAt   time.Time
	Images      []LookImage
}

// LookImage references a single stored photo of a look.
type LookImage struct {
	ID       string
	ImageURL string
}
