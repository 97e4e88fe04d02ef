package transcript

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Translator produces a refined translation of a completed utterance.
type Translator interface {
	Translate(ctx context.Context, sourceLang, targetLang, text string) (string, error)
}

// Refiner drains refinable pool items through a Translator. Claims are
// processed concurrently; a failed translation is logged and the item stays
// in-flight, keeping its streamed target text on screen.
type Refiner struct {
	pool       *Pool
	translator Translator
	sourceLang string
	targetLang string
	logger     *zap.Logger

	kicks  chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRefiner creates a stopped refiner. Call Start before Kick.
func NewRefiner(pool *Pool, translator Translator, sourceLang, targetLang string, logger *zap.Logger) *Refiner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refiner{
		pool:       pool,
		translator: translator,
		sourceLang: sourceLang,
		targetLang: targetLang,
		logger:     logger,
		kicks:      make(chan struct{}, 1),
	}
}

// Start launches the drain loop.
func (r *Refiner) Start() {
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.wg.Add(1)
	go r.loop()
}

// Stop cancels in-flight translations and waits for the loop to exit.
func (r *Refiner) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	r.wg.Wait()
}

// Kick schedules a drain pass. Never blocks; coalesces with a pending kick.
func (r *Refiner) Kick() {
	select {
	case r.kicks <- struct{}{}:
	default:
	}
}

func (r *Refiner) loop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.kicks:
			r.drain()
		}
	}
}

func (r *Refiner) drain() {
	for {
		item, ok := r.pool.ClaimNextRefinable()
		if !ok {
			return
		}
		r.wg.Add(1)
		go r.refine(item)
	}
}

func (r *Refiner) refine(item Item) {
	defer r.wg.Done()
	out, err := r.translator.Translate(r.ctx, r.sourceLang, r.targetLang, item.SourceText)
	if err != nil {
		r.logger.Warn("refinement failed",
			zap.String("item", item.ID.String()),
			zap.Error(err))
		return
	}
	if r.ctx.Err() != nil {
		return
	}
	if !r.pool.CompleteRefinement(item.ID, out) {
		r.logger.Debug("refined item no longer present", zap.String("item", item.ID.String()))
	}
}
