package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Sternrassler/storefront-cdn/pkg/transform"
)

// flexString accepts a JSON string or number. Upstream IDs use both.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*s = flexString(n.String())
	return nil
}

// listWire accepts a bare array or an object holding it under "items".
type listWire[W any] []W

func (l *listWire[W]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var page struct {
			Items *[]W `json:"items"`
		}
		if err := json.Unmarshal(b, &page); err != nil {
			return err
		}
		if page.Items == nil {
			return fmt.Errorf("object without items list")
		}
		*l = *page.Items
		return nil
	}

	var items []W
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	*l = items
	return nil
}

// firstOf returns the first non-blank value.
func firstOf(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func idStrings(in []flexString) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		out = append(out, string(v))
	}
	return out
}

type productWire struct {
	ID             flexString       `json:"id"`
	Slug           string           `json:"slug"`
	Name           string           `json:"name"`
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	Price          *decimal.Decimal `json:"price"`
	CompareAtPrice *decimal.Decimal `json:"compareAtPrice"`
	OriginalPrice  *decimal.Decimal `json:"originalPrice"`
	Currency       string           `json:"currency"`
	Images         []string         `json:"images"`
	Image          string           `json:"image"`
	Category       string           `json:"category"`
	CategorySlug   string           `json:"categorySlug"`
	InStock        *bool            `json:"inStock"`
	Quantity       *int             `json:"quantity"`
	Stock          *int             `json:"stock"`
	Featured       bool             `json:"featured"`
	Rating         float64          `json:"rating"`
	Tags           []string         `json:"tags"`
}

func (w productWire) normalize() (Product, error) {
	const resource = "product"

	if w.Price == nil {
		return Product{}, missing(resource, "price")
	}

	name := firstOf(w.Name, w.Title)
	p := Product{
		ID:           string(w.ID),
		Slug:         firstOf(w.Slug, transform.GenerateSlug(name)),
		Name:         name,
		Description:  w.Description,
		Price:        w.Price.InexactFloat64(),
		Currency:     strings.ToUpper(strings.TrimSpace(w.Currency)),
		Images:       w.Images,
		CategorySlug: firstOf(w.Category, w.CategorySlug),
		Featured:     w.Featured,
		Rating:       w.Rating,
		Tags:         w.Tags,
	}

	switch {
	case w.CompareAtPrice != nil:
		p.CompareAtPrice = w.CompareAtPrice.InexactFloat64()
	case w.OriginalPrice != nil:
		p.CompareAtPrice = w.OriginalPrice.InexactFloat64()
	}

	if len(p.Images) == 0 && w.Image != "" {
		p.Images = []string{w.Image}
	}
	if p.Images == nil {
		p.Images = []string{}
	}

	switch {
	case w.Quantity != nil:
		p.Quantity = *w.Quantity
	case w.Stock != nil:
		p.Quantity = *w.Stock
	}
	if w.InStock != nil {
		p.InStock = *w.InStock
	} else {
		p.InStock = p.Quantity > 0
	}

	return p, check(resource, p)
}

type categoryWire struct {
	ID            flexString `json:"id"`
	Slug          string     `json:"slug"`
	Name          string     `json:"name"`
	Title         string     `json:"title"`
	ParentID      flexString `json:"parentId"`
	ParentIDSnake flexString `json:"parent_id"`
	Description   string     `json:"description"`
	Image         string     `json:"image"`
	ImageURL      string     `json:"imageUrl"`
	ProductCount  int        `json:"productCount"`
}

func (w categoryWire) normalize() (Category, error) {
	name := firstOf(w.Name, w.Title)
	c := Category{
		ID:           string(w.ID),
		Slug:         firstOf(w.Slug, transform.GenerateSlug(name)),
		Name:         name,
		ParentID:     firstOf(string(w.ParentID), string(w.ParentIDSnake)),
		Description:  w.Description,
		Image:        firstOf(w.Image, w.ImageURL),
		ProductCount: w.ProductCount,
	}
	return c, check("category", c)
}

type collectionWire struct {
	ID          flexString   `json:"id"`
	Slug        string       `json:"slug"`
	Name        string       `json:"name"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Image       string       `json:"image"`
	ImageURL    string       `json:"imageUrl"`
	ProductIDs  []flexString `json:"productIds"`
	Products    []flexString `json:"products"`
}

func (w collectionWire) normalize() (Collection, error) {
	name := firstOf(w.Name, w.Title)
	ids := w.ProductIDs
	if ids == nil {
		ids = w.Products
	}
	c := Collection{
		ID:          string(w.ID),
		Slug:        firstOf(w.Slug, transform.GenerateSlug(name)),
		Name:        name,
		Description: w.Description,
		Image:       firstOf(w.Image, w.ImageURL),
		ProductIDs:  idStrings(ids),
	}
	return c, check("collection", c)
}

type bannerWire struct {
	ID          flexString `json:"id"`
	Title       string     `json:"title"`
	Name        string     `json:"name"`
	Subtitle    string     `json:"subtitle"`
	Description string     `json:"description"`
	ImageSrc    string     `json:"imageSrc"`
	URL         string     `json:"url"`
	Image       string     `json:"image"`
	Link        string     `json:"link"`
	Href        string     `json:"href"`
	CTA         string     `json:"cta"`
	ButtonText  string     `json:"buttonText"`
}

func (w bannerWire) normalize() (Banner, error) {
	b := Banner{
		ID:       string(w.ID),
		Title:    firstOf(w.Title, w.Name),
		Subtitle: firstOf(w.Subtitle, w.Description),
		ImageSrc: firstOf(w.ImageSrc, w.URL, w.Image),
		Link:     firstOf(w.Link, w.Href),
		CTA:      firstOf(w.CTA, w.ButtonText),
	}
	return b, check("banner", b)
}

// blogExcerptLength is the excerpt size derived when a post has none.
const blogExcerptLength = 160

var blogDateLayouts = []string{time.RFC3339, "2006-01-02"}

type blogPostWire struct {
	ID          flexString `json:"id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Excerpt     string     `json:"excerpt"`
	Content     string     `json:"content"`
	Body        string     `json:"body"`
	Author      string     `json:"author"`
	AuthorName  string     `json:"authorName"`
	PublishedAt string     `json:"publishedAt"`
	Date        string     `json:"date"`
	Image       string     `json:"image"`
	CoverImage  string     `json:"coverImage"`
	Tags        []string   `json:"tags"`
	ReadingTime int        `json:"readingTime"`
}

func (w blogPostWire) normalize() (BlogPost, error) {
	const resource = "blog post"

	content := firstOf(w.Content, w.Body)
	p := BlogPost{
		ID:          string(w.ID),
		Slug:        firstOf(w.Slug, transform.GenerateSlug(w.Title)),
		Title:       strings.TrimSpace(w.Title),
		Excerpt:     firstOf(w.Excerpt, transform.Excerpt(content, blogExcerptLength)),
		Content:     content,
		Author:      firstOf(w.Author, w.AuthorName),
		Image:       firstOf(w.Image, w.CoverImage),
		Tags:        w.Tags,
		ReadingTime: w.ReadingTime,
	}
	if p.ReadingTime <= 0 {
		p.ReadingTime = transform.ReadingTime(content)
	}

	if raw := firstOf(w.PublishedAt, w.Date); raw != "" {
		published, err := parseDate(raw)
		if err != nil {
			return BlogPost{}, &ValidationError{
				Resource: resource,
				Index:    -1,
				Field:    "publishedAt",
				Rule:     "date",
				Message:  fmt.Sprintf("unrecognized date %q", raw),
			}
		}
		p.PublishedAt = published
	}

	return p, check(resource, p)
}

func parseDate(raw string) (time.Time, error) {
	var err error
	for _, layout := range blogDateLayouts {
		var t time.Time
		if t, err = time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

type companyWire struct {
	Name        string            `json:"name"`
	CompanyName string            `json:"companyName"`
	Tagline     string            `json:"tagline"`
	Email       string            `json:"email"`
	Phone       string            `json:"phone"`
	Address     string            `json:"address"`
	Hours       string            `json:"hours"`
	Social      map[string]string `json:"social"`
	SocialLinks map[string]string `json:"socialLinks"`
}

func (w companyWire) normalize() (CompanyInfo, error) {
	social := w.Social
	if social == nil {
		social = w.SocialLinks
	}
	c := CompanyInfo{
		Name:    firstOf(w.Name, w.CompanyName),
		Tagline: w.Tagline,
		Email:   strings.TrimSpace(w.Email),
		Phone:   w.Phone,
		Address: w.Address,
		Hours:   w.Hours,
		Social:  social,
	}
	return c, check("company", c)
}

// decodeOne decodes a single record through its normalizer.
func decodeOne[W any, T any](resource string, normalize func(W) (T, error)) func(json.RawMessage) (T, error) {
	return func(raw json.RawMessage) (T, error) {
		var zero T
		var w W
		if err := json.Unmarshal(raw, &w); err != nil {
			return zero, malformed(resource, err)
		}
		return normalize(w)
	}
}

// decodeList decodes a list; one bad record fails the whole list.
func decodeList[W any, T any](resource string, normalize func(W) (T, error)) func(json.RawMessage) ([]T, error) {
	return func(raw json.RawMessage) ([]T, error) {
		var items listWire[W]
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, malformed(resource, err)
		}

		out := make([]T, 0, len(items))
		for i, w := range items {
			v, err := normalize(w)
			if err != nil {
				return nil, atIndex(err, i)
			}
			out = append(out, v)
		}
		return out, nil
	}
}
