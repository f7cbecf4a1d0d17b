/*
scheduler.go - Automated offer expiry sweep

PURPOSE:
  Periodically transitions lapsed offers (expires_at elapsed while still
  active or awaiting approval) to expired, releasing the holds they
  contributed. The engine only defines the transition's legality and
  effect; this sweep is the trigger.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Goes through the same guarded Service path as any other mutation,
    so the sweep can never interleave with a concurrent write
  - Reserved offers are not swept: an approved hold is released only by
    explicit cancellation or sale

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 minute)
  - Enabled: Whether the sweeper is active (default: true)

USAGE:
  sweeper := NewExpirySweeper(service)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - ledger/engine.go: ExpireLapsed and the offer state machine
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/stone-ledger/ledger"
)

// ExpirySweeper handles automated expiry of lapsed offers.
type ExpirySweeper struct {
	Service       *ledger.Service
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewExpirySweeper creates a new sweeper.
func NewExpirySweeper(service *ledger.Service) *ExpirySweeper {
	return &ExpirySweeper{
		Service:       service,
		CheckInterval: 1 * time.Minute,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the sweeper.
func (es *ExpirySweeper) Start() {
	es.mu.Lock()
	defer es.mu.Unlock()

	if !es.Enabled {
		log.Println("[Sweeper] Disabled, not starting")
		return
	}

	es.ticker = time.NewTicker(es.CheckInterval)
	es.wg.Add(1)

	go es.run()

	log.Printf("[Sweeper] Started with check interval: %v", es.CheckInterval)
}

// Stop stops the sweeper. Safe to call more than once.
func (es *ExpirySweeper) Stop() {
	es.mu.Lock()
	defer es.mu.Unlock()

	if es.ticker != nil {
		es.ticker.Stop()
		es.ticker = nil
		close(es.stop)
		es.wg.Wait()
		log.Println("[Sweeper] Stopped")
	}
}

func (es *ExpirySweeper) run() {
	defer es.wg.Done()

	// Run immediately on start
	es.sweep()

	for {
		select {
		case <-es.ticker.C:
			es.sweep()
		case <-es.stop:
			return
		}
	}
}

func (es *ExpirySweeper) sweep() {
	ctx := context.Background()

	expired, err := es.Service.ExpireLapsed(ctx)
	if err != nil {
		log.Printf("[Sweeper] Error expiring lapsed offers: %v", err)
		return
	}
	if len(expired) > 0 {
		log.Printf("[Sweeper] Expired %d lapsed offer(s)", len(expired))
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (es *ExpirySweeper) RunNow() {
	es.sweep()
}
