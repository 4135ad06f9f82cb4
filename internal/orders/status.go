package orders

import "slices"

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Steps is the order timeline in display order. Cancelled orders leave it.
var Steps = []Status{StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered}

var labels = map[Status]string{
	StatusPending:    "Order Placed",
	StatusConfirmed:  "Confirmed",
	StatusProcessing: "Processing",
	StatusShipped:    "Shipped",
	StatusDelivered:  "Delivered",
	StatusCancelled:  "Cancelled",
}

// StepIndex is the position of status on the timeline, or -1.
func StepIndex(status string) int {
	return slices.Index(Steps, Status(status))
}

func Label(status string) string {
	if label, ok := labels[Status(status)]; ok {
		return label
	}
	if status == "" {
		return "Unknown"
	}
	return status
}

// Final reports whether no further updates are expected.
func Final(status string) bool {
	return Status(status) == StatusDelivered || Status(status) == StatusCancelled
}
