package api

import (
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pageza/foodgram/backend/internal/types"
)

const maxPageSize = 100

// pager is a parsed page-number request.
type pager struct {
	page  int
	limit int
}

// parsePage reads ?page= and ?limit=. It answers 404 for a malformed page
// or one whose offset cannot be represented.
func parsePage(c *gin.Context, defaultLimit int) (pager, bool) {
	p := pager{page: 1, limit: defaultLimit}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 {
		p.limit = min(limit, maxPageSize)
	}
	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 || page > math.MaxInt/p.limit {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Invalid page."})
			return p, false
		}
		p.page = page
	}
	return p, true
}

func (p pager) request() types.PageRequest {
	return types.PageRequest{Offset: (p.page - 1) * p.limit, Limit: p.limit}
}

// writePage answers with the paginated envelope, or 404 when the page lies
// past the last one.
func writePage[T any](c *gin.Context, p pager, results []T, total int64) {
	if p.page > 1 && int64((p.page-1)*p.limit) >= total {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Invalid page."})
		return
	}
	if results == nil {
		results = []T{}
	}

	resp := types.Page[T]{Count: total, Results: results}
	if int64(p.page*p.limit) < total {
		next := pageURL(c, p.page+1)
		resp.Next = &next
	}
	if p.page > 1 {
		prev := pageURL(c, p.page-1)
		resp.Previous = &prev
	}
	c.JSON(http.StatusOK, resp)
}

// pageURL is the absolute URL of the current request pointing at page.
func pageURL(c *gin.Context, page int) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	query := c.Request.URL.Query()
	if page == 1 {
		query.Del("page")
	} else {
		query.Set("page", strconv.Itoa(page))
	}
	u := url.URL{
		Scheme:   scheme,
		Host:     c.Request.Host,
		Path:     c.Request.URL.Path,
		RawQuery: query.Encode(),
	}
	return u.String()
}
