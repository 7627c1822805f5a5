package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/minhpham-dev/orderdup/pkg/duplicator/model"
)

type orderRecord struct {
	LogicalID      string `gorm:"primaryKey;column:logical_id"`
	Symbol         string
	Side           string
	Quantity       int64
	Price          decimal.Decimal `gorm:"type:numeric"`
	Exchange       string
	ProductType    string
	PriceType      string
	LegIDs         string `gorm:"column:leg_ids"` // json: gateway -> broker order id
	State          string
	FilledQuantity int64
	AvgPrice       decimal.Decimal `gorm:"type:numeric"`
	Remark         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (orderRecord) TableName() string { return "duplicated_orders" }

type OrderSQLRepo struct {
	db *gorm.DB
}

func NewOrderSQLRepo(db *gorm.DB) *OrderSQLRepo {
	return &OrderSQLRepo{db: db}
}

func (r *OrderSQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func (r *OrderSQLRepo) Save(ctx context.Context, order *model.DuplicatedOrder) error {
	rec, err := toRecord(order)
	if err != nil {
		return err
	}
	return r.dbWithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "logical_id"}},
			UpdateAll: true,
		}).
		Create(rec).Error
}

func (r *OrderSQLRepo) Delete(ctx context.Context, logicalID string) error {
	return r.dbWithContext(ctx).
		Where("logical_id = ?", logicalID).
		Delete(&orderRecord{}).Error
}

func (r *OrderSQLRepo) LoadAll(ctx context.Context) ([]*model.DuplicatedOrder, error) {
	var recs []orderRecord
	if err := r.dbWithContext(ctx).Find(&recs).Error; err != nil {
		return nil, err
	}

	out := make([]*model.DuplicatedOrder, 0, len(recs))
	for i := range recs {
		order, err := fromRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	return out, nil
}

func toRecord(order *model.DuplicatedOrder) (*orderRecord, error) {
	legIDs, err := json.Marshal(order.LegIDs)
	if err != nil {
		return nil, fmt.Errorf("marshal leg ids: %w", err)
	}
	return &orderRecord{
		LogicalID:      order.LogicalID,
		Symbol:         order.Intent.Symbol,
		Side:           string(order.Intent.Side),
		Quantity:       order.Intent.Quantity,
		Price:          order.Intent.Price,
		Exchange:       order.Intent.Exchange,
		ProductType:    string(order.Intent.ProductType),
		PriceType:      string(order.Intent.PriceType),
		LegIDs:         string(legIDs),
		State:          string(order.State),
		FilledQuantity: order.FilledQuantity,
		AvgPrice:       order.AvgPrice,
		Remark:         order.Remark,
		CreatedAt:      order.CreatedAt,
		UpdatedAt:      order.UpdatedAt,
	}, nil
}

func fromRecord(rec *orderRecord) (*model.DuplicatedOrder, error) {
	legIDs := make(map[string]string)
	if rec.LegIDs != "" {
		if err := json.Unmarshal([]byte(rec.LegIDs), &legIDs); err != nil {
			return nil, fmt.Errorf("unmarshal leg ids for %s: %w", rec.LogicalID, err)
		}
	}
	return &model.DuplicatedOrder{
		LogicalID: rec.LogicalID,
		Intent: model.OrderIntent{
			Symbol:      rec.Symbol,
			Side:        model.OrderSide(rec.Side),
			Quantity:    rec.Quantity,
			Price:       rec.Price,
			Exchange:    rec.Exchange,
			ProductType: model.ProductType(rec.ProductType),
			PriceType:   model.PriceType(rec.PriceType),
			Remark:      rec.Remark,
		},
		LegIDs:         legIDs,
		State:          model.OrderState(rec.State),
		FilledQuantity: rec.FilledQuantity,
		AvgPrice:       rec.AvgPrice,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
		Remark:         rec.Remark,
	}, nil
}
