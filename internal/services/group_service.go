// Package services – GroupService and InstanceService
//
// This file implements the gateway directory sync. Instances are mirrored
// from the gateway's instance list; groups are mirrored per instance and
// always enter inactive, since dispatch eligibility is a curator decision.
package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/promopipe/go-offers-backend/internal/domain"
	"github.com/promopipe/go-offers-backend/internal/evolution"
)

// GroupRepo defines the repository contract required by GroupService.
type GroupRepo interface {
	FindInstance(ctx context.Context, db *gorm.DB, idOrName string) (*domain.Instance, error)
	GetInstance(ctx context.Context, db *gorm.DB, instanceID string) (*domain.Instance, error)
	UpsertGroup(ctx context.Context, db *gorm.DB, g *domain.Group) error
	SetGroupActive(ctx context.Context, db *gorm.DB, instanceID, groupID string, active bool) error
	ListGroups(ctx context.Context, db *gorm.DB, f GroupListFilter) ([]domain.Group, error)
}

// GroupListFilter narrows group listings. Nil fields are ignored.
type GroupListFilter struct {
	InstanceID string
	Active     *bool
}

// GroupDirectory lists the groups of a gateway instance.
type GroupDirectory interface {
	FetchAllGroups(ctx context.Context, instanceName string) ([]evolution.Group, error)
}

// GroupService mirrors gateway groups into the local directory.
type GroupService struct {
	DB      *gorm.DB
	Repo    GroupRepo
	Gateway GroupDirectory
}

// NewGroupService constructs a GroupService.
func NewGroupService(db *gorm.DB, r GroupRepo, gw GroupDirectory) *GroupService {
	return &GroupService{DB: db, Repo: r, Gateway: gw}
}

// resolveInstance looks an instance up by id first, then by name.
func (s *GroupService) resolveInstance(ctx context.Context, instanceID, instanceName string) (*domain.Instance, error) {
	if instanceID != "" {
		if inst, err := s.Repo.GetInstance(ctx, s.DB, instanceID); err == nil {
			return inst, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if instanceName != "" {
		if inst, err := s.Repo.FindInstance(ctx, s.DB, instanceName); err == nil {
			return inst, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, ErrInstanceNotFound
}

// Sync mirrors the groups of one instance. New groups enter inactive;
// the sync never touches activation. It returns the number of groups seen
// and the resolved instance id.
func (s *GroupService) Sync(ctx context.Context, instanceID, instanceName string) (int, string, error) {
	if instanceID == "" && instanceName == "" {
		return 0, "", &ValidationError{Missing: []string{"instance_id", "instance_name"}}
	}
	if s.Gateway == nil {
		return 0, "", ErrGatewayUnconfigured
	}
	inst, err := s.resolveInstance(ctx, instanceID, instanceName)
	if err != nil {
		return 0, "", err
	}

	name := inst.InstanceName
	if name == "" {
		name = inst.InstanceID
	}
	groups, err := s.Gateway.FetchAllGroups(ctx, name)
	if err != nil {
		return 0, "", err
	}

	total := 0
	for _, g := range groups {
		if g.ID == "" {
			continue
		}
		err := s.Repo.UpsertGroup(ctx, s.DB, &domain.Group{
			InstanceID: inst.InstanceID,
			GroupID:    g.ID,
			Name:       g.Subject,
		})
		if err != nil {
			return total, inst.InstanceID, err
		}
		total++
	}
	log.Ctx(ctx).Info().
		Str("instance_id", inst.InstanceID).
		Int("groups", total).
		Msg("groups synced")
	return total, inst.InstanceID, nil
}

// SetActive flips a group's dispatch eligibility.
func (s *GroupService) SetActive(ctx context.Context, instanceID, groupID string, active bool) error {
	var missing []string
	if instanceID == "" {
		missing = append(missing, "instance_id")
	}
	if groupID == "" {
		missing = append(missing, "group_id")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return s.Repo.SetGroupActive(ctx, s.DB, instanceID, groupID, active)
}

// List returns known groups matching the filter.
func (s *GroupService) List(ctx context.Context, f GroupListFilter) ([]domain.Group, error) {
	return s.Repo.ListGroups(ctx, s.DB, f)
}

// InstanceRepo defines the repository contract required by InstanceService.
type InstanceRepo interface {
	UpsertInstance(ctx context.Context, db *gorm.DB, inst *domain.Instance) error
	ListInstances(ctx context.Context, db *gorm.DB) ([]domain.Instance, error)
}

// InstanceDirectory lists the instances known to the gateway.
type InstanceDirectory interface {
	FetchInstances(ctx context.Context) ([]evolution.Instance, error)
}

// InstanceService mirrors gateway instances into the local directory.
type InstanceService struct {
	DB      *gorm.DB
	Repo    InstanceRepo
	Gateway InstanceDirectory
}

// NewInstanceService constructs an InstanceService.
func NewInstanceService(db *gorm.DB, r InstanceRepo, gw InstanceDirectory) *InstanceService {
	return &InstanceService{DB: db, Repo: r, Gateway: gw}
}

// Sync mirrors the gateway's instance list. The gateway identifies
// instances by name, so the name doubles as the id. Returns the number of
// instances seen.
func (s *InstanceService) Sync(ctx context.Context) (int, error) {
	if s.Gateway == nil {
		return 0, ErrGatewayUnconfigured
	}
	instances, err := s.Gateway.FetchInstances(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, inst := range instances {
		if inst.Name == "" {
			continue
		}
		status := inst.Status
		if status == "" {
			status = "ativa"
		}
		err := s.Repo.UpsertInstance(ctx, s.DB, &domain.Instance{
			InstanceID:   inst.Name,
			InstanceName: inst.Name,
			Status:       status,
		})
		if err != nil {
			return total, err
		}
		total++
	}
	log.Ctx(ctx).Info().Int("instances", total).Msg("instances synced")
	return total, nil
}

// List returns every known instance.
func (s *InstanceService) List(ctx context.Context) ([]domain.Instance, error) {
	return s.Repo.ListInstances(ctx, s.DB)
}
