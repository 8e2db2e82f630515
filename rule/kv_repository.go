package rule

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/convodesk/autoreply/errors"
)

// KVRepository stores rule definitions in a JetStream KV bucket, one key per
// rule ID. The admin interface writes definitions; the engine reads them and
// only writes back usage-counter increments.
type KVRepository struct {
	kv     jetstream.KeyValue
	logger *slog.Logger
}

// NewKVRepository wraps a JetStream KV bucket as a rule repository.
func NewKVRepository(kv jetstream.KeyValue, logger *slog.Logger) *KVRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &KVRepository{
		kv:     kv,
		logger: logger.With("component", "rule-kv-repository"),
	}
}

// List reads every rule definition from the bucket. A definition that fails
// to decode or validate is logged and skipped so one bad admin write cannot
// take down the whole rule set.
func (r *KVRepository) List(ctx context.Context) ([]Rule, error) {
	lister, err := r.kv.ListKeys(ctx)
	if err != nil {
		if isNoKeysError(err) {
			return nil, nil
		}
		return nil, errors.WrapTransient(err, "KVRepository", "List", "list keys")
	}

	var rules []Rule
	for key := range lister.Keys() {
		entry, err := r.kv.Get(ctx, key)
		if err != nil {
			r.logger.Warn("Failed to read rule entry", "key", key, "error", err)
			continue
		}

		var def Definition
		if err := json.Unmarshal(entry.Value(), &def); err != nil {
			r.logger.Warn("Skipping undecodable rule definition", "key", key, "error", err)
			continue
		}

		rule, err := def.Rule()
		if err != nil {
			r.logger.Warn("Skipping invalid rule definition", "key", key, "error", err)
			continue
		}
		rules = append(rules, rule)
	}

	return rules, nil
}

// IncrementUsage performs a read-modify-write of the rule's definition with
// optimistic revision checking, retrying on concurrent updates.
func (r *KVRepository) IncrementUsage(ctx context.Context, ruleID string, firedAt time.Time) error {
	const maxAttempts = 5

	for attempt := 0; attempt < maxAttempts; attempt++ {
		entry, err := r.kv.Get(ctx, ruleID)
		if err != nil {
			return errors.WrapTransient(err, "KVRepository", "IncrementUsage", "read rule "+ruleID)
		}

		var def Definition
		if err := json.Unmarshal(entry.Value(), &def); err != nil {
			return errors.WrapInvalid(err, "KVRepository", "IncrementUsage", "decode rule "+ruleID)
		}

		def.UsageCount++
		if firedAt.After(def.LastFiredAt) {
			def.LastFiredAt = firedAt
		}

		data, err := json.Marshal(def)
		if err != nil {
			return errors.Wrap(err, "KVRepository", "IncrementUsage", "encode rule "+ruleID)
		}

		_, err = r.kv.Update(ctx, ruleID, data, entry.Revision())
		if err == nil {
			return nil
		}
		if !isRevisionConflict(err) {
			return errors.WrapTransient(err, "KVRepository", "IncrementUsage", "update rule "+ruleID)
		}
		// Revision moved under us; re-read and retry.
	}

	return errors.WrapTransient(errors.ErrStorageUnavailable, "KVRepository", "IncrementUsage",
		"update rule "+ruleID+" after retries")
}

// Watch invokes onChange whenever any rule key in the bucket changes. The
// initial replay of existing values is swallowed; only live updates notify.
// Returns a stop function.
func (r *KVRepository) Watch(ctx context.Context, onChange func()) (func(), error) {
	watcher, err := r.kv.WatchAll(ctx)
	if err != nil {
		return nil, errors.WrapTransient(err, "KVRepository", "Watch", "watch bucket")
	}

	done := make(chan struct{})
	go func() {
		replaying := true
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case update, ok := <-watcher.Updates():
				if !ok {
					return
				}
				if update == nil {
					// nil marks the end of the initial replay.
					replaying = false
					continue
				}
				if replaying {
					continue
				}
				r.logger.Debug("Rule bucket changed", "key", update.Key())
				onChange()
			}
		}
	}()

	stop := func() {
		close(done)
		if err := watcher.Stop(); err != nil {
			r.logger.Warn("Failed to stop rule watcher", "error", err)
		}
	}
	return stop, nil
}

func isNoKeysError(err error) bool {
	return stderrors.Is(err, jetstream.ErrNoKeysFound)
}

func isRevisionConflict(err error) bool {
	if stderrors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
	}
	return false
}
