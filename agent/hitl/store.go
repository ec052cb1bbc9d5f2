package hitl

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
)

// RequestStatus 人工输入请求状态
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusResolved  RequestStatus = "resolved"
	RequestStatusCancelled RequestStatus = "cancelled"
)

// Request 一次人工输入请求，ID 即等待中的任务 ID
type Request struct {
	ID             string         `json:"id"`
	RunID          string         `json:"run_id"`
	Agent          string         `json:"agent"`
	Description    string         `json:"description"`
	Input          map[string]any `json:"input,omitempty"`
	ExpectedOutput string         `json:"expected_output,omitempty"`
	Status         RequestStatus  `json:"status"`
	Response       string         `json:"response,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	SettledAt      *time.Time     `json:"settled_at,omitempty"`
}

// clone 深拷贝，存储与调用方互不共享可变字段
func (r *Request) clone() *Request {
	c := *r
	c.Input = maps.Clone(r.Input)
	if r.SettledAt != nil {
		t := *r.SettledAt
		c.SettledAt = &t
	}
	return &c
}

// RequestStore 请求存储接口
type RequestStore interface {
	Save(ctx context.Context, req *Request) error
	Load(ctx context.Context, id string) (*Request, error)
	List(ctx context.Context, status RequestStatus) ([]*Request, error)
	Update(ctx context.Context, req *Request) error
}

// InMemoryRequestStore 内存请求存储
type InMemoryRequestStore struct {
	requests map[string]*Request
	mu       sync.RWMutex
}

// NewInMemoryRequestStore 创建内存请求存储
func NewInMemoryRequestStore() *InMemoryRequestStore {
	return &InMemoryRequestStore{
		requests: make(map[string]*Request),
	}
}

func (s *InMemoryRequestStore) Save(_ context.Context, req *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = req.clone()
	return nil
}

func (s *InMemoryRequestStore) Load(_ context.Context, id string) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, id)
	}
	return req.clone(), nil
}

// List 按创建时间排序，status 为空时返回全部
func (s *InMemoryRequestStore) List(_ context.Context, status RequestStatus) ([]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*Request
	for _, req := range s.requests {
		if status == "" || req.Status == status {
			results = append(results, req.clone())
		}
	}
	sortByCreatedAt(results)
	return results, nil
}

func (s *InMemoryRequestStore) Update(_ context.Context, req *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrRequestNotFound, req.ID)
	}
	s.requests[req.ID] = req.clone()
	return nil
}

func sortByCreatedAt(reqs []*Request) {
	slices.SortFunc(reqs, func(a, b *Request) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
