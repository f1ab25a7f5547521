package product

type LookupProductsRequest struct {
	ProductIDs []string `json:"productIds"`
}

type LookupProductsResponse struct {
	TraceID  string       `json:"traceId"`
	Products []ProductDTO `json:"products"`
	Inactive []string     `json:"inactive"`
	NotFound []string     `json:"notFound"`
}

// ProductDTO carries what the storefront needs to render a cart line with
// the price checkout will charge.
type ProductDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Price          string `json:"price"`
	SalePrice      string `json:"salePrice,omitempty"`
	EffectivePrice string `json:"effectivePrice"`
	Currency       string `json:"currency"`
	TracksStock    bool   `json:"tracksStock"`
	AvailableStock int    `json:"availableStock"`
}
