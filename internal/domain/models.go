// Package domain defines the persistence models for inbound messages, parsed
// offers, coupons, catalog products, the registration queue, and dispatch
// records. These types are mapped with GORM and form the core data layer of
// the offers pipeline.
package domain

import (
	"time"
)

// Message represents one inbound gateway event, persisted exactly once.
// The Hash column carries a SHA-256 over the normalized identifying fields
// (instance, group, message id, caption, media, detected link); its unique
// index is the deduplication guard — a second insert with the same hash is
// dropped by ON CONFLICT DO NOTHING.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - InstanceID / InstanceName: origin gateway instance.
//   - GroupID: origin chat group (remote JID).
//   - MessageID: gateway-native message id.
//   - Caption: raw promotional text.
//   - Marketplace: marketplace detected from the first link in the caption.
//   - LinkScrape: first URL found in the caption (normalized).
//   - MediaURL / MediaMimetype: optional media reference.
//   - Hash: dedup key (unique).
//   - CorrelationID: returned to the gateway for idempotent retries.
type Message struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	InstanceID    string    `json:"instance_id"    gorm:"type:varchar(128);not null;index"`
	InstanceName  string    `json:"instance_name"  gorm:"type:varchar(128)"`
	GroupID       string    `json:"group_id"       gorm:"type:varchar(128);not null"`
	MessageID     string    `json:"message_id"     gorm:"type:varchar(128)"`
	Caption       string    `json:"caption"        gorm:"type:text;not null"`
	Marketplace   string    `json:"marketplace"    gorm:"type:varchar(32)"`
	LinkScrape    string    `json:"link_scrape"    gorm:"type:text"`
	MediaURL      string    `json:"media_url"      gorm:"type:text"`
	MediaMimetype string    `json:"media_mimetype" gorm:"type:varchar(64)"`
	Hash          string    `json:"-"              gorm:"type:char(64);not null;uniqueIndex:ux_messages_hash"`
	CorrelationID string    `json:"correlation_id" gorm:"type:char(36);not null"`
	Status        string    `json:"status"         gorm:"type:varchar(32);not null;default:'recebida'"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Offer is a structured extraction derived from one block of an inbound
// message. A multi-offer message yields several rows sharing a BatchID, with
// MultiOrder preserving block order. Status is the single mutable field and
// follows the transition table in status.go.
type Offer struct {
	ID         string `json:"id"          gorm:"type:char(36);primaryKey"`
	MessageID  string `json:"message_id"  gorm:"type:char(36);not null;index"`
	BatchID    string `json:"batch_id"    gorm:"type:char(36);not null;index"`
	MultiOffer bool   `json:"multi_offer" gorm:"not null;default:false"`
	MultiOrder int    `json:"multi_order" gorm:"not null;default:1"`

	Marketplace  string   `json:"marketplace"   gorm:"type:varchar(32)"`
	ProductName  string   `json:"product_name"  gorm:"type:text"`
	OfficialName string   `json:"official_name" gorm:"type:text"`
	OfferBody    string   `json:"offer_body"    gorm:"type:text"`
	Coupons      []string `json:"coupons"       gorm:"serializer:json;type:text"`
	SalePrice    *float64 `json:"sale_price,omitempty"`

	LinkScrape           string `json:"link_scrape"            gorm:"type:text"`
	CleanLink            string `json:"clean_link"             gorm:"type:text"`
	MarketplaceProductID string `json:"marketplace_product_id" gorm:"type:varchar(64);index"`
	OfferType            string `json:"offer_type"             gorm:"type:varchar(32);not null;default:'padrao'"`

	Status    OfferStatus `json:"status" gorm:"type:varchar(32);not null;default:'parseada'"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`

	// Message is the originating gateway event.
	Message Message `json:"-" gorm:"foreignKey:MessageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Offer.
func (Offer) TableName() string { return "offers" }

// Coupon statuses. A code lives in exactly one state at a time; the unique
// index on Code makes simultaneous membership impossible by construction.
const (
	CouponApproved = "aprovado"
	CouponPending  = "pendente"
	CouponBlocked  = "bloqueado"
)

// Coupon is a case-normalized coupon code in one of three disjoint states.
type Coupon struct {
	ID        string    `json:"id"     gorm:"type:char(36);primaryKey"`
	Code      string    `json:"code"   gorm:"type:varchar(32);not null;uniqueIndex:ux_coupons_code"`
	Status    string    `json:"status" gorm:"type:varchar(16);not null;check:status IN ('aprovado','pendente','bloqueado')"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Coupon.
func (Coupon) TableName() string { return "coupons" }

// Product is the canonical ("principal") catalog entity. Active=false marks
// a product provisioned by the resolver and still awaiting curation.
type Product struct {
	ID           string `json:"product_id"    gorm:"column:product_id;type:char(36);primaryKey"`
	Name         string `json:"name"          gorm:"type:text;not null"`
	MessageName  string `json:"message_name"  gorm:"type:text"`
	OfficialName string `json:"official_name" gorm:"type:text;index"`
	Active       bool   `json:"active"        gorm:"not null;default:false"`

	PhotoURL          string     `json:"photo_url"          gorm:"type:text"`
	PhotoStoragePath  string     `json:"photo_storage_path" gorm:"type:text"`
	PhotoMimetype     string     `json:"photo_mimetype"     gorm:"type:varchar(64)"`
	PhotoDownloadedAt *time.Time `json:"photo_downloaded_at,omitempty"`

	CategoryID    string `json:"category_id,omitempty"    gorm:"type:char(36)"`
	SubcategoryID string `json:"subcategory_id,omitempty" gorm:"type:char(36)"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Product.
func (Product) TableName() string { return "products" }

// MarketplaceLink associates a principal product with one external
// marketplace placement. The (product, marketplace, native id) triple is
// unique; AffiliateLink is the tracked outbound URL, CleanLink the
// de-tracked canonical one.
type MarketplaceLink struct {
	ID                   string `json:"id"                     gorm:"type:char(36);primaryKey"`
	ProductID            string `json:"product_id"             gorm:"type:char(36);not null;index;uniqueIndex:ux_marketplace_link"`
	Marketplace          string `json:"marketplace"            gorm:"type:varchar(32);not null;uniqueIndex:ux_marketplace_link"`
	MarketplaceProductID string `json:"marketplace_product_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_marketplace_link;index:idx_marketplace_native"`
	CleanLink            string `json:"clean_link"             gorm:"type:text"`
	AffiliateLink        string `json:"affiliate_link"         gorm:"type:text"`
	Active               bool   `json:"active"                 gorm:"not null;default:true"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Product Product `json:"-" gorm:"foreignKey:ProductID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for MarketplaceLink.
func (MarketplaceLink) TableName() string { return "marketplace_links" }

// Queue item statuses.
const (
	QueuePending   = "pendente"
	QueueConcluded = "concluido"
)

// QueueItem is a pending marketplace-link registration awaiting a human
// decision. At most one pending item may exist per (marketplace, native id)
// pair; a partial unique index created in repo.AutoMigrate enforces this at
// insert time.
type QueueItem struct {
	ID                   string `json:"id"                     gorm:"type:char(36);primaryKey"`
	MessageID            string `json:"message_id"             gorm:"type:char(36)"`
	OfferID              string `json:"offer_id"               gorm:"type:char(36);index"`
	ProductID            string `json:"product_id"             gorm:"type:char(36)"`
	SuggestedProductID   string `json:"suggested_product_id"   gorm:"type:char(36)"`
	Marketplace          string `json:"marketplace"            gorm:"type:varchar(32);not null"`
	MarketplaceProductID string `json:"marketplace_product_id" gorm:"type:varchar(64);not null"`
	CleanLink            string `json:"clean_link"             gorm:"type:text"`
	SuggestedName        string `json:"suggested_name"         gorm:"type:text"`
	MediaURL             string `json:"media_url"              gorm:"type:text"`
	Status               string `json:"status"                 gorm:"type:varchar(16);not null;default:'pendente';index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for QueueItem.
func (QueueItem) TableName() string { return "registration_queue" }

// GroupResult is a single destination outcome inside a dispatch record.
type GroupResult struct {
	GroupID string `json:"group_id"`
	OK      bool   `json:"ok"`
}

// DispatchRecord is one append-only row per render+fan-out attempt: the
// rendered text, the target group set, and the per-group outcomes.
type DispatchRecord struct {
	ID          string        `json:"id"           gorm:"type:char(36);primaryKey"`
	OfferID     string        `json:"offer_id"     gorm:"type:char(36);not null;index"`
	BatchID     string        `json:"batch_id"     gorm:"type:char(36)"`
	ProductID   string        `json:"product_id"   gorm:"type:char(36)"`
	Marketplace string        `json:"marketplace"  gorm:"type:varchar(32)"`
	FinalText   string        `json:"final_text"   gorm:"type:text;not null"`
	CouponsUsed []string      `json:"coupons_used" gorm:"serializer:json;type:text"`
	InstanceID  string        `json:"instance_id"  gorm:"type:varchar(128)"`
	Groups      []string      `json:"groups"       gorm:"serializer:json;type:text"`
	MediaURL    string        `json:"media_url"    gorm:"type:text"`
	Results     []GroupResult `json:"results"      gorm:"serializer:json;type:text"`
	Status      string        `json:"status"       gorm:"type:varchar(32);not null;default:'enviada'"`
	CreatedAt   time.Time     `json:"created_at"`
}

// TableName returns the database table name for DispatchRecord.
func (DispatchRecord) TableName() string { return "dispatch_records" }

// Template is a dispatch message template for a (marketplace, offer type)
// pair. Body carries {{nome_msg}}, {{oferta}} and {{link_afiliado}}
// placeholders.
type Template struct {
	ID          string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Name        string    `json:"name"        gorm:"type:varchar(128);not null"`
	Marketplace string    `json:"marketplace" gorm:"type:varchar(32);not null;index:idx_templates_selector"`
	OfferType   string    `json:"offer_type"  gorm:"type:varchar(32);not null;default:'padrao';index:idx_templates_selector"`
	Body        string    `json:"body"        gorm:"type:text;not null"`
	Active      bool      `json:"active"      gorm:"not null;default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Template.
func (Template) TableName() string { return "templates" }

// Group is a destination chat group owned by a gateway instance. Only active
// groups receive dispatches.
type Group struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	InstanceID string    `json:"instance_id" gorm:"type:varchar(128);not null;index;uniqueIndex:ux_groups_instance_group"`
	GroupID    string    `json:"group_id"    gorm:"type:varchar(128);not null;uniqueIndex:ux_groups_instance_group"`
	Name       string    `json:"name"        gorm:"type:varchar(255)"`
	Active     bool      `json:"active"      gorm:"not null;default:false"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for Group.
func (Group) TableName() string { return "groups" }

// Instance is a messaging-gateway instance known to the system.
type Instance struct {
	InstanceID   string    `json:"instance_id"   gorm:"type:varchar(128);primaryKey"`
	InstanceName string    `json:"instance_name" gorm:"type:varchar(128)"`
	Status       string    `json:"status"        gorm:"type:varchar(32);not null;default:'ativa'"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for Instance.
func (Instance) TableName() string { return "instances" }
