package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"vk-comments-exporter/internal/config"
)

var (
	mongoOnce sync.Once
	mongoCli  *mongo.Client
	mongoErr  error
)

func mongoDBName() string {
	v := strings.TrimSpace(config.AppConfig.MongoDB)
	if v == "" {
		return "vk_comments"
	}
	return v
}

func mongoClient() (*mongo.Client, error) {
	if backendKind() != backendMongoDB {
		return nil, errors.New("mongodb backend disabled")
	}
	mongoOnce.Do(func() {
		uri := strings.TrimSpace(config.AppConfig.MongoURI)
		if uri == "" {
			mongoErr = errors.New("MONGO_URI is empty")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
		if err != nil {
			mongoErr = err
			return
		}
		if err := cli.Ping(ctx, readpref.Primary()); err != nil {
			_ = cli.Disconnect(ctx)
			mongoErr = err
			return
		}
		if err := initMongoSchema(ctx, cli); err != nil {
			_ = cli.Disconnect(ctx)
			mongoErr = err
			return
		}
		mongoCli = cli
	})
	return mongoCli, mongoErr
}

func initMongoSchema(ctx context.Context, cli *mongo.Client) error {
	db := cli.Database(mongoDBName())

	_, err := db.Collection("videos").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "video_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_owner_video"),
		},
	})
	if err != nil {
		return fmt.Errorf("mongo create indexes videos: %w", err)
	}

	_, err = db.Collection("comments").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "video_id", Value: 1}, {Key: "comment_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_owner_video_comment"),
		},
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "video_id", Value: 1}, {Key: "parent_id", Value: 1}},
			Options: options.Index().SetName("idx_parent"),
		},
	})
	if err != nil {
		return fmt.Errorf("mongo create indexes comments: %w", err)
	}
	return nil
}

func mongoArchive(ctx context.Context, v archivedVideo) error {
	cli, err := mongoClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	db := cli.Database(mongoDBName())
	now := time.Unix(v.UpdatedAt, 0).UTC().Format(time.RFC3339)

	_, err = db.Collection("videos").UpdateOne(ctx,
		bson.D{{Key: "owner_id", Value: v.OwnerID}, {Key: "video_id", Value: v.VideoID}},
		bson.D{{Key: "$set", Value: bson.M{
			"owner_id":        v.OwnerID,
			"video_id":        v.VideoID,
			"total_top_level": v.TotalTopLevel,
			"total_comments":  v.TotalComments,
			"updated_at":      v.UpdatedAt,
			"updated_iso":     now,
		}}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert video %d_%d: %w", v.OwnerID, v.VideoID, err)
	}
	if len(v.Comments) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(v.Comments))
	for _, c := range v.Comments {
		filter := bson.D{{Key: "owner_id", Value: v.OwnerID}, {Key: "video_id", Value: v.VideoID}, {Key: "comment_id", Value: c.CommentID}}
		update := bson.D{{Key: "$set", Value: bson.M{
			"owner_id":    v.OwnerID,
			"video_id":    v.VideoID,
			"comment_id":  c.CommentID,
			"parent_id":   nullableInt(c.ParentID),
			"reply_level": c.ReplyLevel,
			"data_json":   c.DataJSON,
			"updated_at":  v.UpdatedAt,
		}}}
		models = append(models, mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(update).SetUpsert(true))
	}
	_, err = db.Collection("comments").BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	return err
}
