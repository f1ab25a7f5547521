package dto

type FulfillmentStatus string

const (
	FulfillmentAllSuccess FulfillmentStatus = "ALL_SUCCESS"
	FulfillmentPartial    FulfillmentStatus = "PARTIAL"
	FulfillmentAllFailed  FulfillmentStatus = "ALL_FAILED"
)

type FailureReason string

const (
	ReasonNotFound          FailureReason = "NOT_FOUND"
	ReasonInsufficientStock FailureReason = "INSUFFICIENT_STOCK"
)

type ItemSuccess struct {
	ProductID string
	Quantity  int
}

type ItemFailure struct {
	ProductID string
	Quantity  int
	Reason    FailureReason
}

// FulfillmentResult describes the stock decrement run after a confirmed
// payment. Failures never undo the payment; they are shortfalls to resolve
// by hand.
type FulfillmentResult struct {
	Status    FulfillmentStatus
	OrderID   string
	Successes []ItemSuccess
	Failures  []ItemFailure
}
