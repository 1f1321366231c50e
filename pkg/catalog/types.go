package catalog

import (
	"time"

	"github.com/Sternrassler/storefront-cdn/pkg/transform"
)

// Product is the canonical product record.
type Product struct {
	ID             string   `json:"id" validate:"required"`
	Name           string   `json:"name" validate:"required"`
	Slug           string   `json:"slug" validate:"required"`
	Description    string   `json:"description,omitempty"`
	Price          float64  `json:"price" validate:"gte=0"`
	CompareAtPrice float64  `json:"compareAtPrice,omitempty" validate:"gte=0"`
	Currency       string   `json:"currency,omitempty" validate:"omitempty,len=3,uppercase"`
	Images         []string `json:"images" validate:"dive,required"`
	CategorySlug   string   `json:"category,omitempty"`
	InStock        bool     `json:"inStock"`
	Quantity       int      `json:"quantity" validate:"gte=0"`
	Featured       bool     `json:"featured"`
	Rating         float64  `json:"rating,omitempty" validate:"gte=0,lte=5"`
	Tags           []string `json:"tags,omitempty"`
}

// Category is one node of the flat category list.
type Category struct {
	ID           string `json:"id" validate:"required"`
	Name         string `json:"name" validate:"required"`
	Slug         string `json:"slug" validate:"required"`
	ParentID     string `json:"parentId,omitempty"`
	Description  string `json:"description,omitempty"`
	Image        string `json:"image,omitempty"`
	ProductCount int    `json:"productCount,omitempty" validate:"gte=0"`
}

// CategoryNode is a category with its subcategories.
type CategoryNode = transform.TreeNode[Category]

// Collection is a curated group of products.
type Collection struct {
	ID          string   `json:"id" validate:"required"`
	Name        string   `json:"name" validate:"required"`
	Slug        string   `json:"slug" validate:"required"`
	Description string   `json:"description,omitempty"`
	Image       string   `json:"image,omitempty"`
	ProductIDs  []string `json:"productIds" validate:"dive,required"`
}

// Banner is a hero slide.
type Banner struct {
	ID       string `json:"id" validate:"required"`
	Title    string `json:"title" validate:"required"`
	Subtitle string `json:"subtitle,omitempty"`
	ImageSrc string `json:"imageSrc" validate:"required"`
	Link     string `json:"link,omitempty"`
	CTA      string `json:"cta,omitempty"`
}

// BlogPost is a published article.
type BlogPost struct {
	ID          string    `json:"id" validate:"required"`
	Title       string    `json:"title" validate:"required"`
	Slug        string    `json:"slug" validate:"required"`
	Excerpt     string    `json:"excerpt,omitempty"`
	Content     string    `json:"content,omitempty"`
	Author      string    `json:"author,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
	Image       string    `json:"image,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	ReadingTime int       `json:"readingTime" validate:"gte=1"`
}

// CompanyInfo is the contact and about data shown site-wide.
type CompanyInfo struct {
	Name    string            `json:"name" validate:"required"`
	Tagline string            `json:"tagline,omitempty"`
	Email   string            `json:"email,omitempty" validate:"omitempty,email"`
	Phone   string            `json:"phone,omitempty"`
	Address string            `json:"address,omitempty"`
	Hours   string            `json:"hours,omitempty"`
	Social  map[string]string `json:"social,omitempty"`
}

// BuildCategoryTree arranges categories into a forest by ParentID.
func BuildCategoryTree(categories []Category) []*CategoryNode {
	return transform.BuildTree(categories,
		func(c Category) string { return c.ID },
		func(c Category) string { return c.ParentID })
}
