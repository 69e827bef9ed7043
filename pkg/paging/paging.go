// Package paging parses page requests from query strings and renders paged
// responses. Page numbers are one-indexed on the wire and zero-indexed inside.
package paging

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultSize = 20
	MaxSize     = 50
)

var ErrInvalidSort = errors.New("invalid sort property")

type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

type Order struct {
	Property  string
	Direction Direction
}

// Request asks for the zero-indexed page Number of Size elements.
type Request struct {
	Number int
	Size   int
	Sort   []Order
}

func (r Request) Offset() int {
	return r.Number * r.Size
}

// Parse reads page, size and sort from q. Missing or out of range values fall
// back to the first page, the default size and def.
func Parse(q url.Values, def ...Order) Request {
	req := Request{Number: 0, Size: DefaultSize}

	if page, err := strconv.Atoi(q.Get("page")); err == nil && page > 1 {
		req.Number = page - 1
	}
	if size, err := strconv.Atoi(q.Get("size")); err == nil && size > 0 {
		req.Size = min(size, MaxSize)
	}

	for _, raw := range q["sort"] {
		parts := strings.Split(raw, ",")
		prop := strings.TrimSpace(parts[0])
		if prop == "" {
			continue
		}
		order := Order{Property: prop, Direction: Asc}
		if len(parts) > 1 && strings.EqualFold(strings.TrimSpace(parts[1]), "desc") {
			order.Direction = Desc
		}
		req.Sort = append(req.Sort, order)
	}
	if len(req.Sort) == 0 {
		req.Sort = def
	}
	return req
}

// OrderBy renders the sort orders as a SQL ORDER BY clause. Properties are
// resolved through columns so that only whitelisted column names reach SQL.
func (r Request) OrderBy(columns map[string]string) (string, error) {
	if len(r.Sort) == 0 {
		return "", nil
	}
	terms := make([]string, 0, len(r.Sort))
	for _, o := range r.Sort {
		col, ok := columns[o.Property]
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrInvalidSort, o.Property)
		}
		dir := Asc
		if o.Direction == Desc {
			dir = Desc
		}
		terms = append(terms, col+" "+string(dir))
	}
	return " ORDER BY " + strings.Join(terms, ", "), nil
}

type Page[T any] struct {
	Content       []T
	Number        int
	Size          int
	TotalElements int64
}

func NewPage[T any](content []T, req Request, total int64) *Page[T] {
	if content == nil {
		content = []T{}
	}
	return &Page[T]{Content: content, Number: req.Number, Size: req.Size, TotalElements: total}
}

func (p *Page[T]) TotalPages() int {
	if p.Size <= 0 {
		return 1
	}
	return int((p.TotalElements + int64(p.Size) - 1) / int64(p.Size))
}

// Response is the JSON shape of a page.
type Response[T any] struct {
	Content       []T   `json:"content"`
	CurrentPage   int   `json:"currentPage"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}

func (p *Page[T]) Response() Response[T] {
	return Response[T]{
		Content:       p.Content,
		CurrentPage:   p.Number + 1,
		TotalElements: p.TotalElements,
		TotalPages:    p.TotalPages(),
	}
}
