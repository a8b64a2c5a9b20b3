// Package gormstore implements store.Store with GORM so the importer can
// run against any database GORM has a driver for.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/JonMunkholm/charterops/internal/booking"
	"github.com/JonMunkholm/charterops/internal/store"
)

// LeadRecord is the GORM mapping of booking.Lead.
type LeadRecord struct {
	ID                        string `gorm:"primaryKey;size:64"`
	ClientName                string
	ClientEmail               string
	ClientPhone               string
	Agent                     string
	Yacht                     string
	OwnerUserID               string
	LastModifiedByUserID      string
	Status                    string `gorm:"size:32"`
	Month                     string
	Type                      string
	BookingRefNo              string `gorm:"index"`
	TransactionID             string `gorm:"index"`
	ModeOfPayment             string
	PaymentConfirmationStatus string

	PackageQuantities datatypes.JSON
	Addons            datatypes.JSON

	TotalAmount          decimal.Decimal `gorm:"type:decimal(14,2)"`
	CommissionPercentage decimal.Decimal `gorm:"type:decimal(7,4)"`
	CommissionAmount     decimal.Decimal `gorm:"type:decimal(14,2)"`
	NetAmount            decimal.Decimal `gorm:"type:decimal(14,2)"`
	PaidAmount           decimal.Decimal `gorm:"type:decimal(14,2)"`
	BalanceAmount        decimal.Decimal `gorm:"type:decimal(14,2)"`
	CollectedAtCheckIn   decimal.Decimal `gorm:"type:decimal(14,2)"`

	Notes     string
	Source    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the default table name.
func (LeadRecord) TableName() string {
	return "leads"
}

// Store is a GORM-backed lead store.
type Store struct {
	db *gorm.DB
}

var (
	_ store.Store    = (*Store)(nil)
	_ store.Inserter = (*Store)(nil)
	_ store.IDLister = (*Store)(nil)
	_ store.Getter   = (*Store)(nil)
)

// New wraps an open GORM handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL through GORM's postgres driver.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("gorm open: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the leads table.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&LeadRecord{}); err != nil {
		return fmt.Errorf("migrate leads: %w", err)
	}
	return nil
}

func (s *Store) FindBookingByRef(ctx context.Context, ref string) (*booking.Lead, error) {
	if ref == "" {
		return nil, nil
	}
	return s.first(ctx, "booking_ref_no = ?", ref)
}

func (s *Store) FindBookingByTransID(ctx context.Context, transID string) (*booking.Lead, error) {
	if transID == "" {
		return nil, nil
	}
	return s.first(ctx, "transaction_id = ?", transID)
}

func (s *Store) GetBooking(ctx context.Context, id string) (*booking.Lead, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *Store) first(ctx context.Context, query string, arg any) (*booking.Lead, error) {
	var rec LeadRecord
	err := s.db.WithContext(ctx).Where(query, arg).Order("id").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find lead: %w", err)
	}
	return rec.toLead()
}

// UpsertBooking inserts the lead or overwrites every column of the row with
// the same id.
func (s *Store) UpsertBooking(ctx context.Context, lead *booking.Lead) error {
	rec, err := fromLead(lead)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(rec).Error
	if err != nil {
		return fmt.Errorf("upsert lead %s: %w", lead.ID, err)
	}
	return nil
}

// InsertBooking creates the lead. An existing row with the same id is left
// alone and reported as store.ErrDuplicateID.
func (s *Store) InsertBooking(ctx context.Context, lead *booking.Lead) error {
	rec, err := fromLead(lead)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(rec)
	if errors.Is(res.Error, gorm.ErrDuplicatedKey) || (res.Error == nil && res.RowsAffected == 0) {
		return fmt.Errorf("insert lead %s: %w", lead.ID, store.ErrDuplicateID)
	}
	if res.Error != nil {
		return fmt.Errorf("insert lead %s: %w", lead.ID, res.Error)
	}
	return nil
}

func (s *Store) ListIDs(ctx context.Context, prefix string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&LeadRecord{}).
		Where("id LIKE ?", prefix+"%").
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list lead ids: %w", err)
	}
	// LIKE treats _ and % in prefix as wildcards.
	out := ids[:0]
	for _, id := range ids {
		if strings.HasPrefix(id, prefix) {
			out = append(out, id)
		}
	}
	return out, nil
}

func fromLead(l *booking.Lead) (*LeadRecord, error) {
	packages := l.PackageQuantities
	if packages == nil {
		packages = []booking.PackageQuantity{}
	}
	pkgJSON, err := json.Marshal(packages)
	if err != nil {
		return nil, fmt.Errorf("encode package lines: %w", err)
	}
	addons := l.Addons
	if addons == nil {
		addons = []string{}
	}
	addonJSON, err := json.Marshal(addons)
	if err != nil {
		return nil, fmt.Errorf("encode addons: %w", err)
	}

	return &LeadRecord{
		ID:                        l.ID,
		ClientName:                l.ClientName,
		ClientEmail:               l.ClientEmail,
		ClientPhone:               l.ClientPhone,
		Agent:                     l.Agent,
		Yacht:                     l.Yacht,
		OwnerUserID:               l.OwnerUserID,
		LastModifiedByUserID:      l.LastModifiedByUserID,
		Status:                    string(l.Status),
		Month:                     l.Month,
		Type:                      l.Type,
		BookingRefNo:              l.BookingRefNo,
		TransactionID:             l.TransactionID,
		ModeOfPayment:             l.ModeOfPayment,
		PaymentConfirmationStatus: l.PaymentConfirmationStatus,
		PackageQuantities:         datatypes.JSON(pkgJSON),
		Addons:                    datatypes.JSON(addonJSON),
		TotalAmount:               l.TotalAmount,
		CommissionPercentage:      l.CommissionPercentage,
		CommissionAmount:          l.CommissionAmount,
		NetAmount:                 l.NetAmount,
		PaidAmount:                l.PaidAmount,
		BalanceAmount:             l.BalanceAmount,
		CollectedAtCheckIn:        l.CollectedAtCheckIn,
		Notes:                     l.Notes,
		Source:                    l.Source,
		CreatedAt:                 l.CreatedAt,
		UpdatedAt:                 l.UpdatedAt,
	}, nil
}

func (r *LeadRecord) toLead() (*booking.Lead, error) {
	l := &booking.Lead{
		ID:                        r.ID,
		ClientName:                r.ClientName,
		ClientEmail:               r.ClientEmail,
		ClientPhone:               r.ClientPhone,
		Agent:                     r.Agent,
		Yacht:                     r.Yacht,
		OwnerUserID:               r.OwnerUserID,
		LastModifiedByUserID:      r.LastModifiedByUserID,
		Status:                    booking.Status(r.Status),
		Month:                     r.Month,
		Type:                      r.Type,
		BookingRefNo:              r.BookingRefNo,
		TransactionID:             r.TransactionID,
		ModeOfPayment:             r.ModeOfPayment,
		PaymentConfirmationStatus: r.PaymentConfirmationStatus,
		TotalAmount:               r.TotalAmount,
		CommissionPercentage:      r.CommissionPercentage,
		CommissionAmount:          r.CommissionAmount,
		NetAmount:                 r.NetAmount,
		PaidAmount:                r.PaidAmount,
		BalanceAmount:             r.BalanceAmount,
		CollectedAtCheckIn:        r.CollectedAtCheckIn,
		Notes:                     r.Notes,
		Source:                    r.Source,
		CreatedAt:                 r.CreatedAt,
		UpdatedAt:                 r.UpdatedAt,
	}
	if len(r.PackageQuantities) > 0 {
		if err := json.Unmarshal(r.PackageQuantities, &l.PackageQuantities); err != nil {
			return nil, fmt.Errorf("decode package lines for %s: %w", r.ID, err)
		}
	}
	if len(r.Addons) > 0 {
		if err := json.Unmarshal(r.Addons, &l.Addons); err != nil {
			return nil, fmt.Errorf("decode addons for %s: %w", r.ID, err)
		}
	}
	return l, nil
}
