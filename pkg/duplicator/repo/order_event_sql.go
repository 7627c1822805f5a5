package repo

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/minhpham-dev/orderdup/pkg/duplicator/model"
)

type orderEventRecord struct {
	ID             int64 `gorm:"primaryKey;autoIncrement"`
	GatewayName    string
	BrokerOrderID  string
	Status         string
	FilledQuantity int64
	AvgPrice       decimal.Decimal `gorm:"type:numeric"`
	Timestamp      time.Time
}

func (orderEventRecord) TableName() string { return "order_events" }

type OrderEventSQLRepo struct {
	db *gorm.DB
}

func NewOrderEventSQLRepo(db *gorm.DB) *OrderEventSQLRepo {
	return &OrderEventSQLRepo{db: db}
}

func (r *OrderEventSQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func (r *OrderEventSQLRepo) Create(ctx context.Context, ev *model.OrderEvent) error {
	return r.dbWithContext(ctx).Create(toEventRecord(ev)).Error
}

func (r *OrderEventSQLRepo) BulkCreate(ctx context.Context, evs []*model.OrderEvent) error {
	if len(evs) == 0 {
		return nil
	}
	recs := make([]*orderEventRecord, 0, len(evs))
	for _, ev := range evs {
		recs = append(recs, toEventRecord(ev))
	}
	return r.dbWithContext(ctx).Create(recs).Error
}

func toEventRecord(ev *model.OrderEvent) *orderEventRecord {
	return &orderEventRecord{
		GatewayName:    ev.GatewayName,
		BrokerOrderID:  ev.BrokerOrderID,
		Status:         string(ev.Status),
		FilledQuantity: ev.FilledQuantity,
		AvgPrice:       ev.AvgPrice,
		Timestamp:      ev.Timestamp,
	}
}
