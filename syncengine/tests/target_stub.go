package tests

import (
	"context"
	"fmt"
	"sync"

	"prodsync/syncengine/ado"
)

type titleUpdate struct {
	itemId int
	title  string
}

type rankUpdate struct {
	itemId int
	rank   int
}

type relation struct {
	parentId int
	childId  int
}

// TargetStub records every write issued against the work tracking system so
// tests can assert on call counts and ordering.
type TargetStub struct {
	mu sync.Mutex

	nextId int

	created      map[int]map[string]interface{}
	titleUpdates []titleUpdate
	rankUpdates  []rankUpdate
	relations    []relation

	failAll   bool
	failItems map[int]bool
}

func newTargetStub() *TargetStub {
	return &TargetStub{
		nextId:    100,
		created:   make(map[int]map[string]interface{}),
		failItems: make(map[int]bool),
	}
}

func (s *TargetStub) failFor(itemId int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failItems[itemId] = true
}

func (s *TargetStub) recover(itemId int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failItems, itemId)
}

func (s *TargetStub) shouldFail(itemId int) error {
	if s.failAll || s.failItems[itemId] {
		return fmt.Errorf("%w: stubbed failure for item %d", ado.ErrTargetWrite, itemId)
	}
	return nil
}

func (s *TargetStub) CreateItem(ctx context.Context, itemType string, fields map[string]interface{}) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failAll {
		return 0, fmt.Errorf("%w: stubbed create failure", ado.ErrTargetWrite)
	}

	s.nextId++
	s.created[s.nextId] = fields
	return s.nextId, nil
}

func (s *TargetStub) UpdateItemTitle(ctx context.Context, itemId int, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.shouldFail(itemId); err != nil {
		return err
	}
	s.titleUpdates = append(s.titleUpdates, titleUpdate{itemId: itemId, title: title})
	return nil
}

func (s *TargetStub) UpdateItemRank(ctx context.Context, itemId int, rank int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.shouldFail(itemId); err != nil {
		return err
	}
	s.rankUpdates = append(s.rankUpdates, rankUpdate{itemId: itemId, rank: rank})
	return nil
}

func (s *TargetStub) CreateParentChildRelationship(ctx context.Context, parentId, childId int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.shouldFail(childId); err != nil {
		return err
	}
	s.relations = append(s.relations, relation{parentId: parentId, childId: childId})
	return nil
}

func (s *TargetStub) titleUpdateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.titleUpdates)
}

func (s *TargetStub) rankUpdateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rankUpdates)
}
