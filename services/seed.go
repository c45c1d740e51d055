package services

import (
	"bytes"
	"errors"
	"fmt"
	"forklift-backend/models"
	"io"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedItem - 시드 파일의 물품 한 건
type SeedItem struct {
	Weight float64 `yaml:"weight"`
	X      int     `yaml:"x"`
	Y      int     `yaml:"y"`
	Aisle  string  `yaml:"aisle"`
}

type seedFile struct {
	Items []SeedItem `yaml:"items"`
}

// LoadSeedItems reads a YAML file of the form:
//
//	items:
//	  - {weight: 10, x: 3, y: 1, aisle: A1}
func LoadSeedItems(path string) ([]SeedItem, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f seedFile
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed %q: %w", path, err)
	}
	return f.Items, nil
}

// ApplySeed - 모든 항목을 검증한 뒤 순서대로 엔진에 추가.
// 하나라도 잘못되면 아무것도 추가하지 않고 해당 인덱스와 함께 실패한다.
func ApplySeed(engine *DeliveryEngine, items []SeedItem) ([]models.Item, error) {
	check := NewItemStore(engine.Grid())
	for i, s := range items {
		if err := check.validate(s.Weight, models.Position{X: s.X, Y: s.Y}, s.Aisle); err != nil {
			return nil, fmt.Errorf("seed item %d: %w", i, err)
		}
	}

	added := make([]models.Item, 0, len(items))
	for i, s := range items {
		item, err := engine.AddItem(s.Weight, models.Position{X: s.X, Y: s.Y}, s.Aisle)
		if err != nil {
			return added, fmt.Errorf("seed item %d: %w", i, err)
		}
		added = append(added, item)
	}
	log.Printf("🌱 시드 물품 %d개 등록 완료", len(added))
	return added, nil
}
