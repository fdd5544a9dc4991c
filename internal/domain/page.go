package domain

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// NormalizePage fills defaults and clamps page size.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}

// Offset returns the row offset for a normalized page.
func Offset(page, limit int) int {
	return (page - 1) * limit
}

// TotalPages is ceil(total / limit).
func TotalPages(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// NewDeliveryPage assembles a history page.
func NewDeliveryPage(records []Delivery, total, page, limit int) DeliveryPage {
	if records == nil {
		records = []Delivery{}
	}
	return DeliveryPage{
		Events:     records,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: TotalPages(total, limit),
	}
}
