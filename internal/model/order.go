package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentStatus 支付状态
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
	PaymentStatusFailed   PaymentStatus = "failed"
)

// PaymentMethod 支付方式
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodOnline PaymentMethod = "online"
)

// ServiceType 就餐方式
type ServiceType string

const (
	ServiceTypeDineIn   ServiceType = "dine_in"
	ServiceTypePickup   ServiceType = "pickup"
	ServiceTypeDelivery ServiceType = "delivery"
)

func (s ServiceType) Valid() bool {
	switch s {
	case ServiceTypeDineIn, ServiceTypePickup, ServiceTypeDelivery:
		return true
	}
	return false
}

// OwnerKind 下单人类别：注册用户或游客会话
type OwnerKind string

const (
	OwnerKindRegistered OwnerKind = "registered"
	OwnerKindGuest      OwnerKind = "guest"
)

// OwnerRef 下单人引用（显式区分注册用户与游客会话，两种取值可穷举检查）
type OwnerRef struct {
	Kind OwnerKind `json:"kind" gorm:"column:user_kind;type:varchar(16);not null"`
	ID   string    `json:"id" gorm:"column:user_id;type:varchar(64);index:idx_order_user;not null"`
}

// Order 订单模型
type Order struct {
	ID     string   `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CartID *string  `json:"cart_id,omitempty" gorm:"type:varchar(36);index"`
	Owner  OwnerRef `json:"owner" gorm:"embedded"`

	ServiceType ServiceType `json:"service_type" gorm:"type:varchar(16);not null"`
	TableNumber *string     `json:"table_number,omitempty" gorm:"type:varchar(16)"`

	Items []OrderItem `json:"items" gorm:"foreignKey:OrderID"`

	Subtotal    float64 `json:"subtotal" gorm:"type:decimal(10,2);not null"`
	Tax         float64 `json:"tax" gorm:"type:decimal(10,2);not null"`
	DeliveryFee float64 `json:"delivery_fee" gorm:"type:decimal(10,2);not null"`
	Discount    float64 `json:"discount" gorm:"type:decimal(10,2);not null"`
	TotalAmount float64 `json:"total_amount" gorm:"type:decimal(10,2);not null"`

	PaymentStatus    PaymentStatus `json:"payment_status" gorm:"type:varchar(16);index;not null;default:unpaid"`
	PaymentMethod    PaymentMethod `json:"payment_method" gorm:"type:varchar(16);not null"`
	GatewaySessionID *string       `json:"gateway_session_id,omitempty" gorm:"type:varchar(64);index"`

	// 游客快照，下单时捕获，不随用户资料变动
	CustomerName    string `json:"customer_name" gorm:"type:varchar(100)"`
	CustomerPhone   string `json:"customer_phone" gorm:"type:varchar(32)"`
	CustomerEmail   string `json:"customer_email" gorm:"type:varchar(100)"`
	DeliveryAddress string `json:"delivery_address" gorm:"type:varchar(255)"`

	OrderStatus OrderStatus `json:"order_status" gorm:"type:varchar(16);index;not null;default:pending"`

	RewardPointsEarned int  `json:"reward_points_earned" gorm:"not null;default:0"`
	PointsUsed         int  `json:"points_used" gorm:"not null;default:0"`
	IsRewardOrder      bool `json:"is_reward_order" gorm:"not null;default:false"`

	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	PreparingAt *time.Time `json:"preparing_at,omitempty"`
	ReadyAt     *time.Time `json:"ready_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"index;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Order) TableName() string { return "orders" }

// Terminal 终态订单不可再变更状态
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// ActiveStatuses 厨房队列包含的状态
var ActiveStatuses = []OrderStatus{OrderStatusPending, OrderStatusPreparing, OrderStatusReady}

// OptionMap 商品选项（选项名 -> 选择值），落库为 JSON 文本
type OptionMap map[string]string

func (m OptionMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *OptionMap) Scan(src interface{}) error {
	if src == nil {
		*m = OptionMap{}
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into OptionMap", src)
	}
	if len(data) == 0 {
		*m = OptionMap{}
		return nil
	}
	return json.Unmarshal(data, m)
}

// OrderItem 订单行项（含商品快照）
type OrderItem struct {
	ID              string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID         string    `json:"order_id" gorm:"type:varchar(36);index:idx_item_order;not null"`
	ProductID       string    `json:"product_id" gorm:"type:varchar(36);not null"`
	Name            string    `json:"name" gorm:"type:varchar(100);not null"`
	ImageURL        string    `json:"image_url" gorm:"type:varchar(255)"`
	Quantity        int       `json:"quantity" gorm:"not null"`
	SelectedOptions OptionMap `json:"selected_options" gorm:"type:text"`
	// 选项加成后的单价
	UnitPrice float64   `json:"unit_price" gorm:"type:decimal(10,2);not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (OrderItem) TableName() string { return "order_items" }
