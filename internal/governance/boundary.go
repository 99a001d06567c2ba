package governance

import (
	"context"
	"database/sql"
	"errors"
)

type MeetingOwners interface {
	MeetingEntityID(ctx context.Context, meetingID string) (string, error)
}

// Boundary keeps callers inside the entity named in the request path. The
// entity key is caller supplied, so every meeting a request touches has to
// be traced back to its owning entity first.
type Boundary struct {
	owners MeetingOwners
}

func NewBoundary(owners MeetingOwners) Boundary {
	return Boundary{owners: owners}
}

// MeetingBelongsToEntity reports whether the meeting's board belongs to the
// entity. An unknown meeting belongs to nobody.
func (b Boundary) MeetingBelongsToEntity(ctx context.Context, meetingID, entityID string) (bool, error) {
	owner, err := b.owners.MeetingEntityID(ctx, meetingID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return owner == entityID, nil
}

// Require fails with NotFound when the meeting is outside the entity.
func (b Boundary) Require(ctx context.Context, meetingID, entityID string) error {
	ok, err := b.MeetingBelongsToEntity(ctx, meetingID, entityID)
	if err != nil {
		return persistenceFailure(err)
	}
	if !ok {
		return ErrNotFound("Meeting not found")
	}
	return nil
}
