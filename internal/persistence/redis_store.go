package persistence

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/gigguin/bookflow/pkg/api"
)

// RedisPipelineStore is a PipelineStore backed by Redis.
// It uses a simple key structure:
//
//	<prefix>pipe:<eventID>       => gob-encoded pipeline record
//	<prefix>idx:all              => SET of all event IDs
//	<prefix>idx:org:<orgID>      => SET of event IDs per organization
//	<prefix>idx:stage:<stage>    => SET of event IDs per stage
//
// The indexes are best-effort; they are always updated on Save/Update,
// and ListPipelines uses them to narrow the scan before filtering
// decoded records. The optimistic version check is implemented with
// WATCH on the pipeline key.
type RedisPipelineStore struct {
	client *redis.Client
	prefix string
}

var _ PipelineStore = (*RedisPipelineStore)(nil)

// NewRedisPipelineStore creates a RedisPipelineStore.
// prefix is optional but recommended (e.g. "bookflow:").
func NewRedisPipelineStore(client *redis.Client, prefix string) *RedisPipelineStore {
	if prefix == "" {
		prefix = "bookflow:"
	}
	return &RedisPipelineStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisPipelineStore) keyPipeline(eventID string) string {
	return s.prefix + "pipe:" + eventID
}

func (s *RedisPipelineStore) keyAll() string {
	return s.prefix + "idx:all"
}

func (s *RedisPipelineStore) keyOrg(orgID string) string {
	return s.prefix + "idx:org:" + orgID
}

func (s *RedisPipelineStore) keyStage(stage api.Stage) string {
	return s.prefix + "idx:stage:" + string(stage)
}

func (s *RedisPipelineStore) SavePipeline(ctx context.Context, p *api.Pipeline) error {
	data, err := EncodePipeline(p)
	if err != nil {
		return err
	}

	ok, err := s.client.SetNX(ctx, s.keyPipeline(p.EventID), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrPipelineExists
	}

	// Update indexes (best-effort; we don't treat index failures as fatal)
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, s.keyAll(), p.EventID)
	pipe.SAdd(ctx, s.keyOrg(p.OrganizationID), p.EventID)
	pipe.SAdd(ctx, s.keyStage(p.Stage), p.EventID)
	_, _ = pipe.Exec(ctx)

	return nil
}

func (s *RedisPipelineStore) UpdatePipeline(ctx context.Context, p *api.Pipeline, expectedVersion int64) error {
	data, err := EncodePipeline(p)
	if err != nil {
		return err
	}

	key := s.keyPipeline(p.EventID)
	var oldStage api.Stage

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrPipelineNotFound
		}
		if err != nil {
			return err
		}

		stored, err := DecodePipeline(raw)
		if err != nil {
			return err
		}
		if stored.Version != expectedVersion {
			return ErrVersionConflict
		}
		oldStage = stored.Stage

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	if err := s.client.Watch(ctx, txn, key); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			// Another writer touched the key between GET and EXEC.
			return ErrVersionConflict
		}
		return err
	}

	if oldStage != p.Stage {
		pipe := s.client.TxPipeline()
		pipe.SRem(ctx, s.keyStage(oldStage), p.EventID)
		pipe.SAdd(ctx, s.keyStage(p.Stage), p.EventID)
		_, _ = pipe.Exec(ctx)
	}

	return nil
}

func (s *RedisPipelineStore) GetPipeline(ctx context.Context, eventID string) (*api.Pipeline, error) {
	raw, err := s.client.Get(ctx, s.keyPipeline(eventID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrPipelineNotFound
	}
	if err != nil {
		return nil, err
	}
	return DecodePipeline(raw)
}

func (s *RedisPipelineStore) ListPipelines(ctx context.Context, filter PipelineFilter) ([]*api.Pipeline, error) {
	ids, err := s.candidateIDs(ctx, filter)
	if err != nil {
		return nil, err
	}

	var pipelines []*api.Pipeline
	for _, id := range ids {
		p, err := s.GetPipeline(ctx, id)
		if errors.Is(err, ErrPipelineNotFound) {
			// Stale index entry; skip.
			continue
		}
		if err != nil {
			return nil, err
		}
		if matchesFilter(p, filter) {
			pipelines = append(pipelines, p)
		}
	}

	return pipelines, nil
}

func (s *RedisPipelineStore) candidateIDs(ctx context.Context, filter PipelineFilter) ([]string, error) {
	var keys []string
	if filter.OrganizationID != "" {
		keys = append(keys, s.keyOrg(filter.OrganizationID))
	}
	if filter.Stage != "" {
		keys = append(keys, s.keyStage(filter.Stage))
	}

	if len(keys) == 0 {
		return s.client.SMembers(ctx, s.keyAll()).Result()
	}
	if len(keys) == 1 {
		return s.client.SMembers(ctx, keys[0]).Result()
	}
	return s.client.SInter(ctx, keys...).Result()
}
