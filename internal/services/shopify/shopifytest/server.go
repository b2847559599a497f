// Package shopifytest provides an in-process Admin API double that pages
// with Link headers the way the real API does.
package shopifytest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"storelens/internal/services/shopify"
)

type Server struct {
	*httptest.Server

	Token    string
	PageSize int

	mu        sync.Mutex
	products  []shopify.Product
	customers []shopify.Customer
	orders    []shopify.Order
	failures  map[string]int
	hits      map[string]int
}

// NewServer starts a fake store that accepts token "shpat_test" and serves
// pages of PageSize records regardless of the requested limit.
func NewServer() *Server {
	s := &Server{
		Token:    "shpat_test",
		PageSize: 2,
		failures: map[string]int{},
		hits:     map[string]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *Server) SetProducts(p ...shopify.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = p
}

func (s *Server) SetCustomers(c ...shopify.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers = c
}

func (s *Server) SetOrders(o ...shopify.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = o
}

// FailPage makes the given 1-based page of a listing answer with status.
func (s *Server) FailPage(resource string, page, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[fmt.Sprintf("%s:%d", resource, page)] = status
}

// FailCount makes the count endpoint of a resource answer with status.
func (s *Server) FailCount(resource string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[resource+":count"] = status
}

// Hits returns how many requests reached a resource, counts included.
func (s *Server) Hits(resource string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[resource]
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Shopify-Access-Token") != s.Token {
		writeError(w, http.StatusUnauthorized, "Invalid API key or access token")
		return
	}

	// /admin/api/<version>/<resource>[/count].json
	parts := strings.Split(strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), ".json"), "/")
	if len(parts) < 4 || parts[0] != "admin" || parts[1] != "api" {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	resource := parts[3]
	isCount := len(parts) == 5 && parts[4] == "count"

	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits[resource]++

	q := r.URL.Query()
	page := 1
	var createdAtMin time.Time
	if info := q.Get("page_info"); info != "" {
		page, createdAtMin = decodeCursor(info)
	} else if v := q.Get("created_at_min"); v != "" {
		createdAtMin, _ = time.Parse(time.RFC3339, v)
	}

	failKey := fmt.Sprintf("%s:%d", resource, page)
	if isCount {
		failKey = resource + ":count"
	}
	if status, ok := s.failures[failKey]; ok {
		writeError(w, status, "injected failure")
		return
	}

	var items []interface{}
	switch resource {
	case "products":
		for _, p := range s.products {
			items = append(items, p)
		}
	case "customers":
		for _, c := range s.customers {
			items = append(items, c)
		}
	case "orders":
		for _, o := range s.orders {
			if !createdAtMin.IsZero() && o.CreatedAt.Before(createdAtMin) {
				continue
			}
			items = append(items, o)
		}
	default:
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}

	if isCount {
		writeJSON(w, map[string]int{"count": len(items)})
		return
	}

	start := (page - 1) * s.PageSize
	if start > len(items) {
		start = len(items)
	}
	end := start + s.PageSize
	if end > len(items) {
		end = len(items)
	}

	var links []string
	base := fmt.Sprintf("%s/admin/api/%s/%s.json?limit=%d&page_info=", s.URL, parts[2], resource, s.PageSize)
	if page > 1 {
		links = append(links, fmt.Sprintf(`<%s%s>; rel="previous"`, base, encodeCursor(page-1, createdAtMin)))
	}
	if end < len(items) {
		links = append(links, fmt.Sprintf(`<%s%s>; rel="next"`, base, encodeCursor(page+1, createdAtMin)))
	}
	if len(links) > 0 {
		w.Header().Set("Link", strings.Join(links, ", "))
	}

	if items == nil {
		items = []interface{}{}
	}
	writeJSON(w, map[string]interface{}{resource: items[start:end]})
}

func encodeCursor(page int, createdAtMin time.Time) string {
	if createdAtMin.IsZero() {
		return "p" + strconv.Itoa(page)
	}
	return fmt.Sprintf("p%d-%d", page, createdAtMin.Unix())
}

func decodeCursor(info string) (int, time.Time) {
	info = strings.TrimPrefix(info, "p")
	pagePart, minPart, hasMin := strings.Cut(info, "-")
	page, err := strconv.Atoi(pagePart)
	if err != nil || page < 1 {
		page = 1
	}
	if !hasMin {
		return page, time.Time{}
	}
	sec, _ := strconv.ParseInt(minPart, 10, 64)
	return page, time.Unix(sec, 0).UTC()
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"errors": msg})
}
