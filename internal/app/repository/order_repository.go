package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

type OrderRepository interface {
	WithTx(tx *gorm.DB) OrderRepository
	Create(ctx context.Context, order *model.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error)
	LockByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	FindByCustomer(ctx context.Context, customerID uuid.UUID, page, pageSize int) ([]model.Order, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from model.OrderStatus, changes map[string]interface{}) (bool, error)
	UpdateFields(ctx context.Context, id uuid.UUID, changes map[string]interface{}) error
	HasDeliveredItem(ctx context.Context, customerID, productID uuid.UUID) (bool, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) WithTx(tx *gorm.DB) OrderRepository {
	return &orderRepository{db: tx}
}

func (r *orderRepository) preloadOrder(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		})
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	logger.Debug("Creating order in database", map[string]interface{}{
		"order_number": order.OrderNumber,
		"customer_id":  order.CustomerID,
		"items_count":  len(order.Items),
		"total":        order.Total.String(),
	})

	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		logger.Error("Failed to create order in database", err, map[string]interface{}{
			"order_number": order.OrderNumber,
			"customer_id":  order.CustomerID,
		})
		return err
	}

	logger.Debug("Order created in database", map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
	})
	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	if err := r.preloadOrder(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	var order model.Order
	if err := r.preloadOrder(ctx).Where("order_number = ?", orderNumber).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) LockByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	if err := forUpdate(r.db.WithContext(ctx)).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("order_id = ?", id).Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID, page, pageSize int) ([]model.Order, int64, error) {
	page, pageSize = NormalizePage(page, pageSize)

	logger.Debug("Finding orders by customer in database", map[string]interface{}{
		"customer_id": customerID,
		"page":        page,
	})

	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("customer_id = ?", customerID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []model.Order
	err := r.preloadOrder(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC, id ASC").
		Limit(pageSize).
		Offset(offset(page, pageSize)).
		Find(&orders).Error
	if err != nil {
		logger.Error("Failed to find orders by customer", err, map[string]interface{}{
			"customer_id": customerID,
		})
		return nil, 0, err
	}
	return orders, total, nil
}

// UpdateStatus applies changes only while the order is still in status from,
// so two concurrent transitions cannot both succeed.
func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from model.OrderStatus, changes map[string]interface{}) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(changes)
	if result.Error != nil {
		logger.Error("Failed to update order status", result.Error, map[string]interface{}{
			"order_id": id,
			"from":     from,
		})
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *orderRepository) UpdateFields(ctx context.Context, id uuid.UUID, changes map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", id).
		Updates(changes).Error
}

// HasDeliveredItem reports whether the customer received the product in any delivered order.
func (r *orderRepository) HasDeliveredItem(ctx context.Context, customerID, productID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.customer_id = ? AND orders.status = ? AND order_items.product_id = ?",
			customerID, model.OrderStatusDelivered, productID).
		Count(&count).Error
	return count > 0, err
}
