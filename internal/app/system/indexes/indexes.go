// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
Errors are aggregated so every problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database, log *zap.Logger) error {
	var problems []string

	steps := []struct {
		name string
		fn   func(context.Context, *mongo.Database, *zap.Logger) error
	}{
		{"users", ensureUsers},
		{"groups", ensureGroups},
		{"prayers", ensurePrayers},
		{"prayer_updates", ensurePrayerUpdates},
		{"notifications", ensureNotifications},
	}
	for _, s := range steps {
		if err := s.fn(ctx, db, log); err != nil {
			problems = append(problems, s.name+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name string `bson:"name"`
	Key  bson.D `bson:"key"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

// listIndexes returns the collection's indexes keyed by key signature and
// by name.
func listIndexes(ctx context.Context, coll *mongo.Collection, log *zap.Logger) (bySig, byName map[string]existingIndex, err error) {
	bySig = map[string]existingIndex{}
	byName = map[string]existingIndex{}

	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return bySig, byName, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			log.Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		bySig[keySig(idx.Key)] = idx
		byName[idx.Name] = idx
	}
	return bySig, byName, cur.Err()
}

// ensureIndexSet creates each wanted index, reusing one with the same key
// pattern. An existing index whose name differs is dropped and recreated
// under the wanted name, and an index that holds the wanted name over other
// keys (e.g. fields that were since renamed) is dropped first.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, want []mongo.IndexModel, log *zap.Logger) error {
	// A collection that does not exist yet has no indexes; the error is
	// ignored and the maps come back empty.
	existing, byName, _ := listIndexes(ctx, coll, log)

	var errs []string
	for _, m := range want {
		name := ""
		if m.Options != nil && m.Options.Name != nil {
			name = *m.Options.Name
		}
		sig := keySig(m.Keys.(bson.D))
		start := time.Now()
		fields := []zap.Field{
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("keys", sig),
		}

		if ex, ok := existing[sig]; ok {
			if name == "" || ex.Name == name {
				log.Debug("reusing existing index", fields...)
				continue
			}
			log.Info("renaming index to align with desired name", append(fields, zap.String("from", ex.Name))...)
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): rename drop failed: %v", coll.Name(), name, err))
				continue
			}
		}
		if ex, ok := byName[name]; ok && name != "" && keySig(ex.Key) != sig {
			log.Info("replacing index whose keys changed", append(fields, zap.String("old_keys", keySig(ex.Key)))...)
			if _, err := coll.Indexes().DropOne(ctx, name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop stale keys failed: %v", coll.Name(), name, err))
				continue
			}
		}

		created, err := coll.Indexes().CreateOne(ctx, m)
		if err != nil {
			log.Warn("index ensure failed", append(fields, zap.Error(err))...)
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), name, err))
			continue
		}
		log.Info("index ensured", append(fields,
			zap.String("created_name", created),
			zap.String("took", time.Since(start).String()))...)
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Per-collection index sets                                                  */
/* -------------------------------------------------------------------------- */

// users holds profiles and the push-token registry. The sweep job scans
// users that hold at least one token.
func ensureUsers(ctx context.Context, db *mongo.Database, log *zap.Logger) error {
	return ensureIndexSet(ctx, db.Collection("users"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "fcmTokens", Value: 1}},
			Options: options.Index().SetName("idx_users_fcm_tokens"),
		},
	}, log)
}

func ensureGroups(ctx context.Context, db *mongo.Database, log *zap.Logger) error {
	return ensureIndexSet(ctx, db.Collection("groups"), []mongo.IndexModel{
		{
			// fan-out recipient lookup and "my groups"
			Keys:    bson.D{{Key: "members", Value: 1}, {Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_groups_members_nameci_id"),
		},
	}, log)
}

func ensurePrayers(ctx context.Context, db *mongo.Database, log *zap.Logger) error {
	return ensureIndexSet(ctx, db.Collection("prayers"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "ownerId", Value: 1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_prayers_owner_created"),
		},
		{
			Keys:    bson.D{{Key: "sharedWith", Value: 1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_prayers_shared_created"),
		},
	}, log)
}

func ensurePrayerUpdates(ctx context.Context, db *mongo.Database, log *zap.Logger) error {
	return ensureIndexSet(ctx, db.Collection("prayer_updates"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "prayerId", Value: 1}, {Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_prayer_updates_prayer_created"),
		},
	}, log)
}

func ensureNotifications(ctx context.Context, db *mongo.Database, log *zap.Logger) error {
	return ensureIndexSet(ctx, db.Collection("notifications"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "receiverId", Value: 1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_notifications_receiver_created"),
		},
		{
			Keys:    bson.D{{Key: "receiverId", Value: 1}, {Key: "read", Value: 1}},
			Options: options.Index().SetName("idx_notifications_receiver_read"),
		},
	}, log)
}
