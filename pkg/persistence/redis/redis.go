// Package redis provides the Redis-backed persistence implementation. Call
// records are JSON documents guarded by WATCH transactions, which gives the
// compare-and-set semantics the reducer and watchdog rely on. Due callbacks
// live in a sorted set scored by due time.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/voxflow/voxflow/pkg/models"
	"github.com/voxflow/voxflow/pkg/persistence"
)

const (
	callKeyPrefix      = "voxflow:call:"
	providerKeyPrefix  = "voxflow:call:provider:"
	callbackKeyPrefix  = "voxflow:callback:"
	callbackDueKey     = "voxflow:callbacks:due"
	workflowKeyPrefix  = "voxflow:workflow:"
	publishedSetKey    = "voxflow:workflows:published"
	executionKeyPrefix = "voxflow:execution:"
	executionSetPrefix = "voxflow:executions:workflow:"
)

// casRetries bounds optimistic-lock retries before giving up on a WATCH
// transaction that keeps losing races.
const casRetries = 5

type Persistence struct {
	client redis.UniversalClient
}

// NewPersistence connects to Redis using a redis:// URL.
func NewPersistence(ctx context.Context, redisURL string) (*Persistence, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Persistence{client: client}, nil
}

func (p *Persistence) Calls() persistence.CallRepository           { return &callRepository{p.client} }
func (p *Persistence) Callbacks() persistence.CallbackRepository   { return &callbackRepository{p.client} }
func (p *Persistence) Workflows() persistence.WorkflowRepository   { return &workflowRepository{p.client} }
func (p *Persistence) Executions() persistence.ExecutionRepository { return &executionRepository{p.client} }

func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", persistence.ErrStoreUnavailable, err)
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return p.client.Close()
}

// storeErr maps transport-level failures onto ErrStoreUnavailable so
// callers can skip a tick instead of half-processing it.
func storeErr(err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return err
	}

	if errors.Is(err, redis.TxFailedErr) {
		return err
	}

	if strings.Contains(err.Error(), "connection") || strings.Contains(err.Error(), "refused") {
		return fmt.Errorf("%w: %v", persistence.ErrStoreUnavailable, err)
	}

	return err
}

type callRepository struct {
	client redis.UniversalClient
}

func (r *callRepository) Create(ctx context.Context, record *models.CallRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return persistence.NewCallError("Create", record.ID, err)
	}

	ok, err := r.client.SetNX(ctx, callKeyPrefix+record.ID, raw, 0).Result()
	if err != nil {
		return persistence.NewCallError("Create", record.ID, storeErr(err))
	}

	if !ok {
		return persistence.NewCallError("Create", record.ID, persistence.ErrCallAlreadyExists)
	}

	if record.ProviderCallID != "" {
		if err := r.client.Set(ctx, providerKeyPrefix+record.ProviderCallID, record.ID, 0).Err(); err != nil {
			return persistence.NewCallError("Create", record.ID, storeErr(err))
		}
	}

	return nil
}

func (r *callRepository) ByID(ctx context.Context, id string) (*models.CallRecord, error) {
	raw, err := r.client.Get(ctx, callKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, persistence.NewCallError("ByID", id, persistence.ErrCallNotFound)
	}

	if err != nil {
		return nil, persistence.NewCallError("ByID", id, storeErr(err))
	}

	record := &models.CallRecord{}
	if err := json.Unmarshal(raw, record); err != nil {
		return nil, persistence.NewCallError("ByID", id, err)
	}

	return record, nil
}

func (r *callRepository) ByProviderCallID(ctx context.Context, providerCallID string) (*models.CallRecord, error) {
	id, err := r.client.Get(ctx, providerKeyPrefix+providerCallID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, persistence.NewCallError("ByProviderCallID", providerCallID, persistence.ErrCallNotFound)
	}

	if err != nil {
		return nil, persistence.NewCallError("ByProviderCallID", providerCallID, storeErr(err))
	}

	return r.ByID(ctx, id)
}

func (r *callRepository) AppendEvent(ctx context.Context, id string, event models.WebhookEvent) error {
	err := r.transform(ctx, id, func(record *models.CallRecord) error {
		record.Events = append(record.Events, event)
		record.UpdatedAt = time.Now().UTC()

		return nil
	})
	if err != nil {
		return persistence.NewCallError("AppendEvent", id, err)
	}

	return nil
}

func (r *callRepository) Mutate(ctx context.Context, id string, fn func(*models.CallRecord)) (*models.CallRecord, error) {
	var updated *models.CallRecord

	err := r.transform(ctx, id, func(record *models.CallRecord) error {
		status, events := record.Status, record.Events
		fn(record)

		// Status moves go through UpdateStatus and the audit log through
		// AppendEvent; both are restored from the stored copy.
		record.Status = status
		record.Events = events
		record.UpdatedAt = time.Now().UTC()
		updated = record

		return nil
	})
	if err != nil {
		return nil, persistence.NewCallError("Mutate", id, err)
	}

	if updated.ProviderCallID != "" {
		if err := r.client.Set(ctx, providerKeyPrefix+updated.ProviderCallID, id, 0).Err(); err != nil {
			return nil, persistence.NewCallError("Mutate", id, storeErr(err))
		}
	}

	return updated, nil
}

func (r *callRepository) UpdateStatus(
	ctx context.Context,
	id string,
	from []models.CallStatus,
	to models.CallStatus,
	mutate func(*models.CallRecord),
) (*models.CallRecord, error) {
	var updated *models.CallRecord

	err := r.transform(ctx, id, func(record *models.CallRecord) error {
		allowed := false

		for _, s := range from {
			if record.Status == s {
				allowed = true

				break
			}
		}

		if !allowed {
			return persistence.ErrStatusConflict
		}

		record.Status = to

		if mutate != nil {
			mutate(record)
		}

		record.UpdatedAt = time.Now().UTC()
		updated = record

		return nil
	})
	if err != nil {
		return nil, persistence.NewCallError("UpdateStatus", id, err)
	}

	if updated.ProviderCallID != "" {
		if err := r.client.Set(ctx, providerKeyPrefix+updated.ProviderCallID, id, 0).Err(); err != nil {
			return nil, persistence.NewCallError("UpdateStatus", id, storeErr(err))
		}
	}

	return updated, nil
}

// transform applies fn to the stored record inside a WATCH transaction,
// retrying on optimistic-lock conflicts.
func (r *callRepository) transform(ctx context.Context, id string, fn func(*models.CallRecord) error) error {
	key := callKeyPrefix + id

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return persistence.ErrCallNotFound
		}

		if err != nil {
			return storeErr(err)
		}

		record := &models.CallRecord{}
		if err := json.Unmarshal(raw, record); err != nil {
			return err
		}

		if err := fn(record); err != nil {
			return err
		}

		out, err := json.Marshal(record)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)

			return nil
		})

		return err
	}

	var err error

	for range casRetries {
		err = r.client.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}

	return err
}

type callbackRepository struct {
	client redis.UniversalClient
}

func (r *callbackRepository) Save(ctx context.Context, callback *models.ScheduledCallback) error {
	raw, err := json.Marshal(callback)
	if err != nil {
		return &persistence.CallbackError{Op: "Save", CallbackID: callback.ID, Err: err}
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, callbackKeyPrefix+callback.ID, raw, 0)
		pipe.ZAdd(ctx, callbackDueKey, redis.Z{
			Score:  float64(callback.DueAt.Unix()),
			Member: callback.ID,
		})

		return nil
	})
	if err != nil {
		return &persistence.CallbackError{Op: "Save", CallbackID: callback.ID, Err: storeErr(err)}
	}

	return nil
}

func (r *callbackRepository) ByID(ctx context.Context, id string) (*models.ScheduledCallback, error) {
	raw, err := r.client.Get(ctx, callbackKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, &persistence.CallbackError{Op: "ByID", CallbackID: id, Err: persistence.ErrCallbackNotFound}
	}

	if err != nil {
		return nil, &persistence.CallbackError{Op: "ByID", CallbackID: id, Err: storeErr(err)}
	}

	callback := &models.ScheduledCallback{}
	if err := json.Unmarshal(raw, callback); err != nil {
		return nil, &persistence.CallbackError{Op: "ByID", CallbackID: id, Err: err}
	}

	return callback, nil
}

func (r *callbackRepository) Due(ctx context.Context, now time.Time) ([]*models.ScheduledCallback, error) {
	ids, err := r.client.ZRangeByScore(ctx, callbackDueKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.Unix()),
	}).Result()
	if err != nil {
		return nil, storeErr(err)
	}

	due := make([]*models.ScheduledCallback, 0, len(ids))

	for _, id := range ids {
		callback, err := r.ByID(ctx, id)
		if err != nil {
			if persistence.IsCallbackNotFound(err) {
				// Document deleted but still indexed; drop the stale entry.
				r.client.ZRem(ctx, callbackDueKey, id)

				continue
			}

			return nil, err
		}

		due = append(due, callback)
	}

	return due, nil
}

func (r *callbackRepository) Delete(ctx context.Context, id string) error {
	deleted, err := r.client.Del(ctx, callbackKeyPrefix+id).Result()
	if err != nil {
		return &persistence.CallbackError{Op: "Delete", CallbackID: id, Err: storeErr(err)}
	}

	if deleted == 0 {
		return &persistence.CallbackError{Op: "Delete", CallbackID: id, Err: persistence.ErrCallbackNotFound}
	}

	if err := r.client.ZRem(ctx, callbackDueKey, id).Err(); err != nil {
		return &persistence.CallbackError{Op: "Delete", CallbackID: id, Err: storeErr(err)}
	}

	return nil
}

type workflowRepository struct {
	client redis.UniversalClient
}

func (r *workflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	raw, err := json.Marshal(workflow)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, workflowKeyPrefix+workflow.ID, raw, 0)

		if workflow.Status == models.WorkflowStatusPublished {
			pipe.SAdd(ctx, publishedSetKey, workflow.ID)
		} else {
			pipe.SRem(ctx, publishedSetKey, workflow.ID)
		}

		return nil
	})

	return storeErr(err)
}

func (r *workflowRepository) ByID(ctx context.Context, id string) (*models.Workflow, error) {
	raw, err := r.client.Get(ctx, workflowKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, persistence.ErrWorkflowNotFound
	}

	if err != nil {
		return nil, storeErr(err)
	}

	workflow := &models.Workflow{}
	if err := json.Unmarshal(raw, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

func (r *workflowRepository) Published(ctx context.Context) ([]*models.Workflow, error) {
	ids, err := r.client.SMembers(ctx, publishedSetKey).Result()
	if err != nil {
		return nil, storeErr(err)
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow, err := r.ByID(ctx, id)
		if err != nil {
			if errors.Is(err, persistence.ErrWorkflowNotFound) {
				r.client.SRem(ctx, publishedSetKey, id)

				continue
			}

			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

func (r *workflowRepository) Delete(ctx context.Context, id string) error {
	deleted, err := r.client.Del(ctx, workflowKeyPrefix+id).Result()
	if err != nil {
		return storeErr(err)
	}

	if deleted == 0 {
		return persistence.ErrWorkflowNotFound
	}

	return storeErr(r.client.SRem(ctx, publishedSetKey, id).Err())
}

type executionRepository struct {
	client redis.UniversalClient
}

func (r *executionRepository) Save(ctx context.Context, execution *models.WorkflowExecution) error {
	raw, err := json.Marshal(execution)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, executionKeyPrefix+execution.ID, raw, 0)
		pipe.SAdd(ctx, executionSetPrefix+execution.WorkflowID, execution.ID)

		return nil
	})

	return storeErr(err)
}

func (r *executionRepository) ByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	raw, err := r.client.Get(ctx, executionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, persistence.ErrExecutionNotFound
	}

	if err != nil {
		return nil, storeErr(err)
	}

	execution := &models.WorkflowExecution{}
	if err := json.Unmarshal(raw, execution); err != nil {
		return nil, err
	}

	return execution, nil
}

func (r *executionRepository) ByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	ids, err := r.client.SMembers(ctx, executionSetPrefix+workflowID).Result()
	if err != nil {
		return nil, storeErr(err)
	}

	executions := make([]*models.WorkflowExecution, 0, len(ids))

	for _, id := range ids {
		execution, err := r.ByID(ctx, id)
		if err != nil {
			if errors.Is(err, persistence.ErrExecutionNotFound) {
				continue
			}

			return nil, err
		}

		executions = append(executions, execution)
	}

	return executions, nil
}
