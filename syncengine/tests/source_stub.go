package tests

import (
	"context"
	"sync"

	"prodsync/syncengine/source"
)

// SourceStub is an in-memory stand in for the product management system.
// Fixtures are assigned directly; Block lets a test hold a sync run open in
// the middle of its fetch phase.
type SourceStub struct {
	mu sync.Mutex

	products    []source.Product
	components  []source.Component
	initiatives []source.Initiative
	features    []source.Feature

	featuresErr error

	fetchStarted chan struct{}
	release      chan struct{}

	lastScope    source.Scope
	lastMaxDepth int
}

func (s *SourceStub) Block() (started <-chan struct{}, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	startedCh := make(chan struct{}, 1)
	releaseCh := make(chan struct{})
	s.fetchStarted = startedCh
	s.release = releaseCh
	return startedCh, func() { close(releaseCh) }
}

func (s *SourceStub) FetchProducts(ctx context.Context, scope source.Scope) ([]source.Product, error) {
	s.mu.Lock()
	started := s.fetchStarted
	release := s.release
	s.lastScope = scope
	products := s.products
	s.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if release != nil {
		<-release
	}
	return products, nil
}

func (s *SourceStub) FetchComponents(ctx context.Context, scope source.Scope) ([]source.Component, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.components, nil
}

func (s *SourceStub) FetchInitiatives(ctx context.Context, scope source.Scope) ([]source.Initiative, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initiatives, nil
}

func (s *SourceStub) FetchFeatures(ctx context.Context, scope source.Scope, maxDepth int) ([]source.Feature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastMaxDepth = maxDepth
	if s.featuresErr != nil {
		return nil, s.featuresErr
	}
	return source.TrimToDepth(s.features, maxDepth), nil
}
