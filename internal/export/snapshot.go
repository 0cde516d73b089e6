// Package export builds full directory snapshots for GET /export and the
// sync worker.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/hpcadmin/server/internal/directory"
	"github.com/hpcadmin/server/internal/models"
)

// Snapshot is the whole directory at one point in time.
type Snapshot struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Users       []models.UserDetail  `json:"users"`
	Pirgs       []models.PirgDetail  `json:"pirgs"`
	Groups      []models.GroupDetail `json:"groups"`
}

// Source is the part of the directory service a snapshot reads.
type Source interface {
	ListAll(ctx context.Context) (*directory.Listing, error)
}

var _ Source = (*directory.Service)(nil)

// Build reads every user, pirg and group from src in one consistent listing.
func Build(ctx context.Context, src Source, now time.Time) (*Snapshot, error) {
	l, err := src.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return &Snapshot{
		GeneratedAt: now.UTC(),
		Users:       l.Users,
		Pirgs:       l.Pirgs,
		Groups:      l.Groups,
	}, nil
}
