package model

import (
	"io"
	"time"
)

// Todo is a single to-do item. UserID is set once on creation and never
// changes afterwards.
type Todo struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Page is one slice of a paginated listing.
type Page[T any] struct {
	Items    []T
	Page     int
	PerPage  int
	Total    int
	LastPage int
}

// NewPage computes LastPage from total and perPage. An empty listing still
// has one (empty) page.
func NewPage[T any](items []T, page, perPage, total int) *Page[T] {
	last := 1
	if perPage > 0 && total > 0 {
		last = (total + perPage - 1) / perPage
	}
	return &Page[T]{Items: items, Page: page, PerPage: perPage, Total: total, LastPage: last}
}

func (p *Page[T]) HasPrev() bool { return p.Page > 1 }
func (p *Page[T]) HasNext() bool { return p.Page < p.LastPage }
func (p *Page[T]) PrevPage() int { return p.Page - 1 }
func (p *Page[T]) NextPage() int { return p.Page + 1 }

// Upload is a file received from a form. Content must be seekable so the
// validator can sniff the header and the blob store can read it from the
// start afterwards; multipart.File satisfies this.
type Upload struct {
	Filename string
	Size     int64
	Content  io.ReadSeeker
}
