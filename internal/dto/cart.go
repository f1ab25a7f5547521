package dto

type CartItemDTO struct {
	ProductID string `json:"productId"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
	Quantity  int    `json:"quantity"`
}

type CartRequest struct {
	Items []CartItemDTO `json:"items"`
}

type CartResponse struct {
	TraceID string        `json:"traceId"`
	Items   []CartItemDTO `json:"items"`
}
