package services

import (
	"errors"
	"fmt"
	"forklift-backend/models"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrItemNotFound     = errors.New("item not found")
	ErrAlreadyDelivered = errors.New("item already delivered")
)

// ValidationError reports which field of an add-item request was rejected.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ItemStore - 배송 물품 저장소
//
// Not safe for concurrent use on its own; DeliveryEngine guards it.
type ItemStore struct {
	grid  *models.Grid
	items []models.Item
	index map[string]int // item id -> items 인덱스
	now   func() time.Time
}

// NewItemStore - 저장소 생성
func NewItemStore(grid *models.Grid) *ItemStore {
	return &ItemStore{
		grid:  grid,
		items: make([]models.Item, 0),
		index: make(map[string]int),
		now:   time.Now,
	}
}

// Add validates and appends a new undelivered item.
// On a validation failure the store is left unchanged.
func (s *ItemStore) Add(weight float64, target models.Position, aisle string) (models.Item, error) {
	if err := s.validate(weight, target, aisle); err != nil {
		return models.Item{}, err
	}

	item := models.Item{
		ID:        "item-" + uuid.NewString(),
		Weight:    weight,
		Target:    target,
		Aisle:     strings.TrimSpace(aisle),
		Delivered: false,
		CreatedAt: s.now(),
	}

	s.index[item.ID] = len(s.items)
	s.items = append(s.items, item)
	return item, nil
}

func (s *ItemStore) validate(weight float64, target models.Position, aisle string) error {
	if math.IsNaN(weight) || math.IsInf(weight, 0) || weight <= 0 {
		return &ValidationError{Field: "weight", Message: "must be a number greater than 0"}
	}

	if strings.TrimSpace(aisle) == "" {
		return &ValidationError{Field: "aisle", Message: "must not be empty"}
	}

	if !s.grid.InBounds(target) {
		return &ValidationError{
			Field: "target",
			Message: fmt.Sprintf("coordinates must be between (0,0) and (%d,%d), got (%d,%d)",
				s.grid.Width-1, s.grid.Height-1, target.X, target.Y),
		}
	}

	return nil
}

// Undelivered - 미배송 물품 (삽입 순서)
func (s *ItemStore) Undelivered() []models.Item {
	out := make([]models.Item, 0, len(s.items))
	for _, item := range s.items {
		if !item.Delivered {
			out = append(out, item)
		}
	}
	return out
}

// MarkDelivered flips the item with id to delivered.
// A second call for the same id fails with ErrAlreadyDelivered.
func (s *ItemStore) MarkDelivered(id string) (models.Item, error) {
	i, ok := s.index[id]
	if !ok {
		return models.Item{}, fmt.Errorf("mark delivered %q: %w", id, ErrItemNotFound)
	}

	if s.items[i].Delivered {
		return models.Item{}, fmt.Errorf("mark delivered %q: %w", id, ErrAlreadyDelivered)
	}

	s.items[i].Delivered = true
	return s.items[i], nil
}

// Get - id로 물품 조회
func (s *ItemStore) Get(id string) (models.Item, bool) {
	i, ok := s.index[id]
	if !ok {
		return models.Item{}, false
	}
	return s.items[i], true
}

// All - 전체 물품 복사본 (배송 완료 포함)
func (s *ItemStore) All() []models.Item {
	out := make([]models.Item, len(s.items))
	copy(out, s.items)
	return out
}

func (s *ItemStore) Len() int { return len(s.items) }

// DeliveredCount - 배송 완료 수
func (s *ItemStore) DeliveredCount() int {
	n := 0
	for _, item := range s.items {
		if item.Delivered {
			n++
		}
	}
	return n
}

// Clear - 모든 물품 삭제
func (s *ItemStore) Clear() {
	s.items = make([]models.Item, 0)
	s.index = make(map[string]int)
}
