package pagination

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Page is the offset pagination used by list endpoints.
type Page struct {
	Page  int `form:"page,default=1"`
	Limit int `form:"limit,default=20"`
}

// Normalize clamps page and limit into the supported range.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

type PageInfo struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasMore    bool  `json:"hasMore"`
}

func BuildPageInfo(p Page, total int64) PageInfo {
	n := p.Normalize()
	pages := int((total + int64(n.Limit) - 1) / int64(n.Limit))
	return PageInfo{
		Page:       n.Page,
		Limit:      n.Limit,
		Total:      total,
		TotalPages: pages,
		HasMore:    n.Page < pages,
	}
}

// SortOrder normalizes a user-supplied direction to ASC or DESC.
func SortOrder(raw string) string {
	if strings.EqualFold(strings.TrimSpace(raw), "asc") {
		return "ASC"
	}
	return "DESC"
}

type Cursor struct {
	ID        string `json:"id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type CursorInfo struct {
	NextPageToken string `json:"nextPageToken"`
	HasMore       bool   `json:"hasMore"`
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, err
	}

	return &cursor, nil
}

// BuildCursorInfo trims data to limit and reports the next cursor when more rows exist.
func BuildCursorInfo[T any](data []*T, limit int, extractCursor func(*T) string) ([]*T, CursorInfo) {
	if len(data) == 0 {
		return data, CursorInfo{}
	}
	if len(data) <= limit {
		return data, CursorInfo{}
	}

	data = data[:limit]
	return data, CursorInfo{
		HasMore:       true,
		NextPageToken: extractCursor(data[len(data)-1]),
	}
}
