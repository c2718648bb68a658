package produce

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/figmark/figmark/internal/config"
	"github.com/figmark/figmark/internal/source"
)

// Director drives artifact production for a batch of slots: parallel
// across slots, fallback chain and bounded retries within a slot. Slots
// are independent, so a failed slot never aborts the batch.
type Director struct {
	producers   map[string]Producer
	fallback    map[string][]string
	maxRetries  int
	maxParallel int
	slotTimeout time.Duration
	log         *slog.Logger
}

func NewDirector(cfg config.Config, producers []Producer, log *slog.Logger) *Director {
	byName := make(map[string]Producer, len(producers))
	for _, p := range producers {
		byName[p.Name()] = p
	}
	return &Director{
		producers:   byName,
		fallback:    cfg.Sources.Fallback,
		maxRetries:  cfg.Produce.MaxRetries,
		maxParallel: cfg.Produce.MaxParallel,
		slotTimeout: time.Duration(cfg.Produce.Timeout),
		log:         log,
	}
}

// ProduceAll fills every slot concurrently and returns one outcome per
// slot, in slot order.
func (d *Director) ProduceAll(ctx context.Context, slots []Slot) []Outcome {
	outcomes := make([]Outcome, len(slots))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.maxParallel)
	for i, slot := range slots {
		i, slot := i, slot
		g.Go(func() error {
			outcomes[i] = d.produceSlot(ctx, slot)
			return nil
		})
	}
	g.Wait()

	return outcomes
}

// produceSlot walks the slot's fallback chain. Each source gets bounded
// retries on retryable errors before the next source is tried.
func (d *Director) produceSlot(ctx context.Context, slot Slot) Outcome {
	outcome := Outcome{Slot: slot}

	for _, src := range source.Chain(slot.Source, d.fallback) {
		producer, ok := d.producers[src]
		if !ok {
			outcome.Attempts = append(outcome.Attempts, Attempt{
				Source: src,
				Error:  "no producer registered",
			})
			continue
		}

		artifact, err := d.tryProducer(ctx, producer, slot)
		if err == nil {
			outcome.Attempts = append(outcome.Attempts, Attempt{Source: src})
			outcome.Artifact = artifact
			outcome.Err = nil
			return outcome
		}
		outcome.Attempts = append(outcome.Attempts, Attempt{Source: src, Error: err.Error()})
		outcome.Err = err
		d.log.Warn("producer failed, trying next source",
			"slot_index", slot.Index,
			"kind", slot.Kind,
			"source", src,
			"error", err)

		if ctx.Err() != nil {
			outcome.Err = ctx.Err()
			return outcome
		}
	}

	if outcome.Err == nil {
		outcome.Err = fmt.Errorf("no producer available for source %q", slot.Source)
	}
	return outcome
}

func (d *Director) tryProducer(ctx context.Context, producer Producer, slot Slot) (Artifact, error) {
	var lastErr error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(Backoff(attempt - 1)):
			case <-ctx.Done():
				return Artifact{}, ctx.Err()
			}
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if d.slotTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, d.slotTimeout)
		}
		artifact, err := producer.Produce(attemptCtx, slot)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return artifact, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			break
		}
		d.log.Debug("retryable producer error",
			"source", producer.Name(),
			"attempt", attempt+1,
			"error", err)
	}
	return Artifact{}, lastErr
}
