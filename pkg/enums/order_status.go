package enums

import "fmt"

// OrderStatus tracks the pickup order lifecycle. The money snapshot on an
// order never changes across transitions; cancelled orders drop out of
// usage accounting.
type OrderStatus string

const (
	OrderStatusScheduled  OrderStatus = "scheduled"
	OrderStatusPickedUp   OrderStatus = "picked_up"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusScheduled,
	OrderStatusPickedUp,
	OrderStatusProcessing,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts the raw string to OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
