package models

// Order statuses.
const (
	OrderStatusPending  = "pending"
	OrderStatusApproved = "approved"
)

// SpaghettiOrder is a plate order for the spaghetti fundraiser.
type SpaghettiOrder struct {
	OrderID   string `json:"orderId" dynamodbav:"orderId"`
	Name      string `json:"name" dynamodbav:"name"`
	Phone     string `json:"phone" dynamodbav:"phone"`
	Email     string `json:"email,omitempty" dynamodbav:"email,omitempty"`
	Quantity  int    `json:"quantity" dynamodbav:"quantity"`
	Notes     string `json:"notes,omitempty" dynamodbav:"notes,omitempty"`
	Status    string `json:"status" dynamodbav:"status"`
	CreatedAt string `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt string `json:"updatedAt,omitempty" dynamodbav:"updatedAt,omitempty"`
}

// Kind implements Record.
func (o *SpaghettiOrder) Kind() Kind { return KindOrder }

// ID implements Record.
func (o *SpaghettiOrder) ID() string { return o.OrderID }

// Stamp implements Record. New orders always wait for approval.
func (o *SpaghettiOrder) Stamp(id, createdAt string) {
	o.OrderID = id
	o.CreatedAt = createdAt
	o.Status = OrderStatusPending
}
