package models

// Product is one catalog entry as published by the upstream catalog API.
// The id comes from upstream; every other field is optional and stored as
// NULL when absent.
type Product struct {
	ID          int64    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Title       *string  `json:"title"`
	Price       *float64 `json:"price"`
	Category    *string  `gorm:"index" json:"category"`
	Description *string  `json:"description"`
	Image       *string  `json:"image"`
}

func (Product) TableName() string { return "products" }

// TitleOrEmpty returns the title, or "" when upstream omitted it.
func (p Product) TitleOrEmpty() string {
	if p.Title == nil {
		return ""
	}
	return *p.Title
}

// CategoryOrEmpty returns the category, or "" when upstream omitted it.
func (p Product) CategoryOrEmpty() string {
	if p.Category == nil {
		return ""
	}
	return *p.Category
}
