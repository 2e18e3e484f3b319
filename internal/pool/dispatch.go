package pool

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/encode"
)

// Progress is called after each collected chunk with the number of
// chunks finished so far and the total for the dispatch. It runs on
// the dispatching goroutine, so it must not block.
type Progress func(completed, total int)

// Dispatch splits texts into contiguous chunks, spreads them across
// the workers, and returns the embeddings in input order: row i is the
// vector for texts[i].
//
// The chunk size is ceil(len(texts) / workers), so every worker gets
// at most one chunk and the chunk count never exceeds the worker
// count. An empty batch returns an empty, non-nil slice without
// touching the workers.
//
// The first chunk error aborts the dispatch and is returned wrapped in
// ErrWorkerFailed. Cancelling ctx abandons the dispatch; any chunks
// already queued are cancelled through the session context and their
// results discarded.
func (p *Pool) Dispatch(ctx context.Context, texts []string, opts encode.Options) ([][]float32, error) {
	return p.DispatchWithProgress(ctx, texts, opts, nil)
}

// DispatchWithProgress is Dispatch with a per-chunk progress callback.
// A nil progress is ignored.
func (p *Pool) DispatchWithProgress(ctx context.Context, texts []string, opts encode.Options, progress Progress) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("%w: dispatch on stopped pool", ErrPoolClosed)
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	start := time.Now()
	session := uuid.New()
	chunkSize := ceilDiv(len(texts), len(p.devices))
	totalChunks := ceilDiv(len(texts), chunkSize)

	// The feeder must never outlive this call: cancelling the session
	// unblocks it if the dispatch aborts with chunks still unsent.
	sessCtx, cancel := context.WithCancel(ctx)
	feederDone := make(chan struct{})
	go p.feed(sessCtx, session, texts, chunkSize, opts, feederDone)
	defer func() {
		cancel()
		<-feederDone
	}()

	collected := make([]result, 0, totalChunks)
	for len(collected) < totalChunks {
		select {
		case res := <-p.output:
			if res.session != session {
				// Straggler from an earlier aborted dispatch.
				continue
			}
			if res.err != nil {
				err := fmt.Errorf("%w: chunk %d on %s: %w", ErrWorkerFailed, res.seq, res.device, res.err)
				p.metrics.RecordDispatch(ctx, time.Since(start), totalChunks, err)
				return nil, err
			}
			collected = append(collected, res)
			if progress != nil {
				progress(len(collected), totalChunks)
			}
		case <-ctx.Done():
			p.metrics.RecordDispatch(ctx, time.Since(start), totalChunks, ctx.Err())
			return nil, fmt.Errorf("dispatch aborted: %w", ctx.Err())
		}
	}

	sort.Slice(collected, func(i, j int) bool {
		return collected[i].seq < collected[j].seq
	})

	out := make([][]float32, 0, len(texts))
	for _, res := range collected {
		out = append(out, res.vectors...)
	}
	if len(out) != len(texts) {
		err := fmt.Errorf("%w: got %d rows for %d texts", ErrWorkerFailed, len(out), len(texts))
		p.metrics.RecordDispatch(ctx, time.Since(start), totalChunks, err)
		return nil, err
	}

	p.metrics.RecordDispatch(ctx, time.Since(start), totalChunks, nil)
	p.logger.Debug("dispatch complete",
		zap.Int("texts", len(texts)),
		zap.Int("chunks", totalChunks),
		zap.Duration("duration", time.Since(start)))
	return out, nil
}

// feed queues one chunk per contiguous slice of texts, giving up as
// soon as the session is cancelled.
func (p *Pool) feed(ctx context.Context, session uuid.UUID, texts []string, chunkSize int, opts encode.Options, done chan<- struct{}) {
	defer close(done)

	seq := 0
	for i := 0; i < len(texts); i += chunkSize {
		end := i + chunkSize
		if end > len(texts) {
			end = len(texts)
		}
		c := chunk{
			ctx:     ctx,
			session: session,
			seq:     seq,
			texts:   texts[i:end],
			opts:    opts,
		}
		select {
		case p.input <- c:
		case <-ctx.Done():
			return
		}
		seq++
	}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
