package consensus

import (
	"context"
	"sync"

	"github.com/lightningnetwork/lnd/ticker"
)

// Engine runs resolution rounds on a fixed interval.
type Engine struct {
	resolver *Resolver
	ticker   ticker.Ticker

	started sync.Once
	stopped sync.Once
	quit    chan struct{}
	wg      sync.WaitGroup
}

// NewEngine creates an engine driven by t. Rounds are bounded by the
// resolver's own budget.
func NewEngine(resolver *Resolver, t ticker.Ticker) *Engine {
	return &Engine{
		resolver: resolver,
		ticker:   t,
		quit:     make(chan struct{}),
	}
}

// Start launches the resolution loop.
func (e *Engine) Start() {
	e.started.Do(func() {
		e.ticker.Resume()
		e.wg.Add(1)
		go e.loop()
	})
}

// Stop halts the loop and waits for an in-flight round to finish.
func (e *Engine) Stop() {
	e.stopped.Do(func() {
		close(e.quit)
		e.wg.Wait()
		e.ticker.Stop()
	})
}

func (e *Engine) loop() {
	defer e.wg.Done()

	for {
		select {
		case <-e.ticker.Ticks():
			e.round()

		case <-e.quit:
			return
		}
	}
}

func (e *Engine) round() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stop waiting on the round if the engine is stopped.
	go func() {
		select {
		case <-e.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	if _, err := e.resolver.Resolve(ctx); err != nil && ctx.Err() == nil {
		log.Errorf("Periodic resolution failed: %v", err)
	}
}
