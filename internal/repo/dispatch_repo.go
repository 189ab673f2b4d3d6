// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for templates,
// groups, instances and dispatch records.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/promopipe/go-offers-backend/internal/domain"
)

// ListActiveTemplates returns the active templates for a (marketplace,
// offer type) pair. The dispatcher picks one of them at random.
func ListActiveTemplates(ctx context.Context, db *gorm.DB, marketplace, offerType string) ([]domain.Template, error) {
	var out []domain.Template
	err := db.WithContext(ctx).
		Where("marketplace = ? AND offer_type = ? AND active = ?", marketplace, offerType, true).
		Find(&out).Error
	return out, err
}

// TemplateFilter narrows ListTemplates. Nil fields are ignored.
type TemplateFilter struct {
	Marketplace string
	OfferType   string
	Active      *bool
}

// ListTemplates returns templates matching the filter, newest first.
func ListTemplates(ctx context.Context, db *gorm.DB, f TemplateFilter) ([]domain.Template, error) {
	q := db.WithContext(ctx).Order("created_at desc")
	if f.Marketplace != "" {
		q = q.Where("marketplace = ?", f.Marketplace)
	}
	if f.OfferType != "" {
		q = q.Where("offer_type = ?", f.OfferType)
	}
	if f.Active != nil {
		q = q.Where("active = ?", *f.Active)
	}
	var out []domain.Template
	err := q.Find(&out).Error
	return out, err
}

// CreateTemplate inserts a template. ID and timestamps are assigned when unset.
func CreateTemplate(ctx context.Context, db *gorm.DB, t *domain.Template) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	return db.WithContext(ctx).Create(t).Error
}

// UpsertGroup inserts a group or refreshes its display name. Newly
// discovered groups start inactive; activation is a curator decision and is
// never overwritten by a sync.
func UpsertGroup(ctx context.Context, db *gorm.DB, g *domain.Group) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "instance_id"}, {Name: "group_id"}},
			DoUpdates: clause.Assignments(map[string]any{"name": g.Name, "updated_at": now}),
		}).
		Create(g).Error
}

// SetGroupActive flips a group's dispatch eligibility.
// Returns ErrNotFound if the group does not exist.
func SetGroupActive(ctx context.Context, db *gorm.DB, instanceID, groupID string, active bool) error {
	res := db.WithContext(ctx).
		Model(&domain.Group{}).
		Where("instance_id = ? AND group_id = ?", instanceID, groupID).
		Updates(map[string]any{"active": active, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GroupFilter narrows ListGroups. Nil fields are ignored.
type GroupFilter struct {
	InstanceID string
	Active     *bool
}

// ListGroups returns groups matching the filter, newest first.
func ListGroups(ctx context.Context, db *gorm.DB, f GroupFilter) ([]domain.Group, error) {
	q := db.WithContext(ctx).Order("created_at desc")
	if f.InstanceID != "" {
		q = q.Where("instance_id = ?", f.InstanceID)
	}
	if f.Active != nil {
		q = q.Where("active = ?", *f.Active)
	}
	var out []domain.Group
	err := q.Find(&out).Error
	return out, err
}

// ListActiveGroupIDs returns the group ids eligible for dispatch on an
// instance.
func ListActiveGroupIDs(ctx context.Context, db *gorm.DB, instanceID string) ([]string, error) {
	var out []string
	err := db.WithContext(ctx).
		Model(&domain.Group{}).
		Where("instance_id = ? AND active = ?", instanceID, true).
		Pluck("group_id", &out).Error
	return out, err
}

// UpsertInstance inserts a gateway instance or refreshes its name and status.
func UpsertInstance(ctx context.Context, db *gorm.DB, inst *domain.Instance) error {
	now := time.Now().UTC()
	inst.CreatedAt = now
	inst.UpdatedAt = now
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "instance_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"instance_name": inst.InstanceName,
				"status":        inst.Status,
				"updated_at":    now,
			}),
		}).
		Create(inst).Error
}

// GetInstance fetches an instance by ID, or ErrNotFound.
func GetInstance(ctx context.Context, db *gorm.DB, instanceID string) (*domain.Instance, error) {
	var inst domain.Instance
	if err := db.WithContext(ctx).First(&inst, "instance_id = ?", instanceID).Error; err != nil {
		return nil, err
	}
	return &inst, nil
}

// FindInstance resolves an instance by id or by name, or ErrNotFound.
func FindInstance(ctx context.Context, db *gorm.DB, idOrName string) (*domain.Instance, error) {
	var inst domain.Instance
	err := db.WithContext(ctx).
		Where("instance_id = ? OR instance_name = ?", idOrName, idOrName).
		First(&inst).Error
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// ListInstances returns every known instance, newest first.
func ListInstances(ctx context.Context, db *gorm.DB) ([]domain.Instance, error) {
	var out []domain.Instance
	err := db.WithContext(ctx).Order("created_at desc").Find(&out).Error
	return out, err
}

// CreateDispatchRecord appends one immutable dispatch record.
func CreateDispatchRecord(ctx context.Context, db *gorm.DB, r *domain.DispatchRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(r).Error
}

// ListDispatchesByOffer returns the dispatch history of an offer, newest
// first.
func ListDispatchesByOffer(ctx context.Context, db *gorm.DB, offerID string) ([]domain.DispatchRecord, error) {
	var out []domain.DispatchRecord
	err := db.WithContext(ctx).
		Where("offer_id = ?", offerID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// UpdateTemplate patches a template. Empty name/body leave the stored value;
// nil active leaves the flag. ErrNotFound when the id is unknown.
func UpdateTemplate(ctx context.Context, db *gorm.DB, id, name, body string, active *bool) error {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if name != "" {
		updates["name"] = name
	}
	if body != "" {
		updates["body"] = body
	}
	if active != nil {
		updates["active"] = *active
	}
	res := db.WithContext(ctx).Model(&domain.Template{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
