package records

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ausbildung/nachweis/internal/shared"
)

const reasonDuplicateID = "duplicate id in batch"

// BatchResult collects per-item outcomes. Succeeded plus failed always equals the input length.
type BatchResult struct {
	SucceededIDs []uuid.UUID
	FailedIDs    []uuid.UUID
	Detail       map[uuid.UUID]string
}

func newBatchResult(n int) *BatchResult {
	return &BatchResult{
		SucceededIDs: make([]uuid.UUID, 0, n),
		FailedIDs:    []uuid.UUID{},
		Detail:       map[uuid.UUID]string{},
	}
}

// SucceededCount returns the number of processed items.
func (r BatchResult) SucceededCount() int { return len(r.SucceededIDs) }

// FailedCount returns the number of failed items.
func (r BatchResult) FailedCount() int { return len(r.FailedIDs) }

// Partial reports whether any item failed.
func (r BatchResult) Partial() bool { return len(r.FailedIDs) > 0 }

// Message summarises the outcome.
func (r BatchResult) Message() string {
	return fmt.Sprintf("%d succeeded, %d failed", r.SucceededCount(), r.FailedCount())
}

// Err returns ErrPartial when items failed. Callers never treat it as a call failure.
func (r BatchResult) Err() error {
	if !r.Partial() {
		return nil
	}
	return fmt.Errorf("%w: %s", shared.ErrPartial, r.Message())
}

// DetailStrings keys Detail by the string form of the id.
func (r BatchResult) DetailStrings() map[string]string {
	out := make(map[string]string, len(r.Detail))
	for id, reason := range r.Detail {
		out[id.String()] = reason
	}
	return out
}

// failureReason hides internal errors behind a generic reason.
func failureReason(err error) string {
	if shared.CodeOf(err) == shared.CodeInternal {
		return "internal error"
	}
	return err.Error()
}

// runBatch applies fn to every id with bounded concurrency. Repeated ids fail
// without being processed a second time; their Detail entry carries the first
// occurrence's failure, if any, followed by the duplicate reason.
func (s *Service) runBatch(ctx context.Context, op string, ids []uuid.UUID, fn func(context.Context, uuid.UUID) error) BatchResult {
	result := newBatchResult(len(ids))
	var mu sync.Mutex
	seen := make(map[uuid.UUID]struct{}, len(ids))
	repeated := map[uuid.UUID]struct{}{}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			mu.Lock()
			result.FailedIDs = append(result.FailedIDs, id)
			repeated[id] = struct{}{}
			mu.Unlock()
			continue
		}
		seen[id] = struct{}{}
		g.Go(func() error {
			err := fn(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.FailedIDs = append(result.FailedIDs, id)
				result.Detail[id] = failureReason(err)
				if shared.CodeOf(err) == shared.CodeInternal {
					s.logger.Error("batch item failed", slog.String("operation", op), slog.String("id", id.String()), slog.Any("error", err))
				}
				return nil
			}
			result.SucceededIDs = append(result.SucceededIDs, id)
			return nil
		})
	}
	_ = g.Wait()

	for id := range repeated {
		if reason, failed := result.Detail[id]; failed {
			result.Detail[id] = reason + "; " + reasonDuplicateID
		} else {
			result.Detail[id] = reasonDuplicateID
		}
	}

	if s.metrics != nil {
		s.metrics.ObserveBatch(op, result.SucceededCount(), result.FailedCount())
	}
	if result.Partial() {
		s.logger.Warn("batch completed with failures",
			slog.String("operation", op),
			slog.Int("succeeded", result.SucceededCount()),
			slog.Int("failed", result.FailedCount()))
	}
	return *result
}

// BatchSetStatus moves every id to status. Only trainers and admins may call it.
func (s *Service) BatchSetStatus(ctx context.Context, p shared.Principal, ids []uuid.UUID, status Status, comment *string) (BatchResult, error) {
	if err := ValidateBatchStatusRequest(BatchStatusRequest{IDs: ids, Status: status, Comment: comment}); err != nil {
		return BatchResult{}, err
	}
	if !p.CanReview() {
		return BatchResult{}, ErrReviewerOnly
	}
	return s.runBatch(ctx, "status", ids, func(ctx context.Context, id uuid.UUID) error {
		_, err := s.SetStatus(ctx, p, id, status, comment)
		return err
	}), nil
}

// BatchApprove approves every id.
func (s *Service) BatchApprove(ctx context.Context, p shared.Principal, ids []uuid.UUID, comment *string) (BatchResult, error) {
	return s.BatchSetStatus(ctx, p, ids, StatusAngenommen, comment)
}

// BatchReject rejects every id.
func (s *Service) BatchReject(ctx context.Context, p shared.Principal, ids []uuid.UUID, comment *string) (BatchResult, error) {
	return s.BatchSetStatus(ctx, p, ids, StatusAbgelehnt, comment)
}

// BatchDelete deletes every id the principal owns, or every id for admins.
func (s *Service) BatchDelete(ctx context.Context, p shared.Principal, ids []uuid.UUID) (BatchResult, error) {
	if len(ids) == 0 {
		return BatchResult{}, ErrEmptyIDs
	}
	if err := validateStruct(BatchRequest{IDs: ids}); err != nil {
		return BatchResult{}, err
	}
	return s.runBatch(ctx, "delete", ids, func(ctx context.Context, id uuid.UUID) error {
		return s.Delete(ctx, p, id)
	}), nil
}
