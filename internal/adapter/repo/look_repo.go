package repo

import (
	"context"
	"fmt"
	"time"

	"nexlook/internal/domain"
	"nexlook/internal/infra"
	"nexlook/internal/sqlinline"
)

// LookRepositoryPG implements domain.WardrobeStore using PostgreSQL.
type LookRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewLookRepository constructs a new look repository instance.
func NewLookRepository(sql infra.SQLExecutor) *LookRepositoryPG {
	return &LookRepositoryPG{sql: sql}
}

// GetLooksForUser returns every look the user stored, each with its images,
// in creation order. A user without looks yields an empty slice.
func (r *LookRepositoryPG) GetLooksForUser(ctx context.Context, userID string) ([]domain.Look, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectLooksForUser, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: query looks: %v", domain.ErrStoreFailure, err)
	}
	defer rows.Close()

	var looks []domain.Look
	index := make(map[string]int)
	for rows.Next() {
		var (
			lookID, title, description string
			createdAt                  time.Time
			imageID, imageURL          *string
		)
		if err := rows.Scan(&lookID, &title, &description, &createdAt, &imageID, &imageURL); err != nil {
			return nil, fmt.Errorf("%w: scan look: %v", domain.ErrStoreFailure, err)
		}
		pos, ok := index[lookID]
		if !ok {
			looks = append(looks, domain.Look{
				ID:          lookID,
				UserID:      userID,
				Title:       title,
				Description: description,
				CreatedAt:   createdAt,
			})
			pos = len(looks) - 1
			index[lookID] = pos
		}
		if imageID != nil && imageURL != nil {
			looks[pos].Images = append(looks[pos].Images, domain.LookImage{ID: *imageID, ImageURL: *imageURL})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate looks: %v", domain.ErrStoreFailure, err)
	}
	return looks, nil
}

var _ domain.WardrobeStore = (*LookRepositoryPG)(nil)
