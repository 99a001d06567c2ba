package rbac

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

type Capability string

const (
	CapabilityGlobalAdmin Capability = "global_admin"
	CapabilityEntityAdmin Capability = "entity_admin"
	CapabilityBoardChair  Capability = "board_chair"
)

type GlobalAdmins interface {
	IsGlobalAdmin(ctx context.Context, principalID string) (bool, error)
}

type EntityAdmins interface {
	IsEntityAdmin(ctx context.Context, entityID, principalID string) (bool, error)
}

type BoardChairs interface {
	IsBoardChair(ctx context.Context, entityID, principalID string) (bool, error)
}

// Resolver decides whether a principal may approve on behalf of an entity.
// Any one capability is enough.
type Resolver struct {
	global GlobalAdmins
	entity EntityAdmins
	chairs BoardChairs
}

func NewResolver(global GlobalAdmins, entity EntityAdmins, chairs BoardChairs) *Resolver {
	return &Resolver{global: global, entity: entity, chairs: chairs}
}

// Capabilities runs the three checks concurrently and returns the ones the
// principal holds. If any check fails the whole call fails and no
// capabilities are reported.
func (r *Resolver) Capabilities(ctx context.Context, principalID, entityID string) ([]Capability, error) {
	if principalID == "" {
		return nil, nil
	}

	var isGlobal, isEntity, isChair bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ok, err := r.global.IsGlobalAdmin(gctx, principalID)
		if err != nil {
			return fmt.Errorf("check %s: %w", CapabilityGlobalAdmin, err)
		}
		isGlobal = ok
		return nil
	})
	g.Go(func() error {
		ok, err := r.entity.IsEntityAdmin(gctx, entityID, principalID)
		if err != nil {
			return fmt.Errorf("check %s: %w", CapabilityEntityAdmin, err)
		}
		isEntity = ok
		return nil
	})
	g.Go(func() error {
		ok, err := r.chairs.IsBoardChair(gctx, entityID, principalID)
		if err != nil {
			return fmt.Errorf("check %s: %w", CapabilityBoardChair, err)
		}
		isChair = ok
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var caps []Capability
	if isGlobal {
		caps = append(caps, CapabilityGlobalAdmin)
	}
	if isEntity {
		caps = append(caps, CapabilityEntityAdmin)
	}
	if isChair {
		caps = append(caps, CapabilityBoardChair)
	}
	return caps, nil
}

func (r *Resolver) CanApprove(ctx context.Context, principalID, entityID string) (bool, error) {
	caps, err := r.Capabilities(ctx, principalID, entityID)
	if err != nil {
		return false, err
	}
	return len(caps) > 0, nil
}
