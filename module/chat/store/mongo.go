package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Pabblusansky/Pelegram-sub000/module/chat/model"
)

// Mongo is the persistence half of the mutation handlers. Read-modify-write
// transitions (unread increments, conditional status flips, last-message
// recompute) are expressed as conditional/filtered updates so they stay
// correct under concurrent sends into the same chat.
type Mongo struct {
	msgs  *mongo.Collection
	chats *mongo.Collection
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{
		msgs:  db.Collection(model.MsgTableName),
		chats: db.Collection(model.ChatTableName),
	}
}

// EnsureIndexes creates the indexes pagination and chat listing depend on.
// Call once at startup; creation is idempotent.
func (s *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := s.msgs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}},
	})
	if err != nil {
		return err
	}
	_, err = s.chats.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "updated_at", Value: -1}}},
	})
	return err
}
