package store

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Pabblusansky/Pelegram-sub000/module/chat/model"
)

func (s *Mongo) CreateChat(ctx context.Context, c *model.Chat) error {
	_, err := s.chats.InsertOne(ctx, c)
	return errors.WithStack(err)
}

func (s *Mongo) GetChat(ctx context.Context, id string) (*model.Chat, error) {
	var c model.Chat
	if err := s.chats.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, errors.Wrapf(err, "get chat %s", id)
	}
	return &c, nil
}

func (s *Mongo) ListChats(ctx context.Context, userID string) ([]*model.Chat, error) {
	cur, err := s.chats.Find(ctx,
		bson.M{"participants": userID},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer func() { _ = cur.Close(ctx) }()
	var out []*model.Chat
	for cur.Next(ctx) {
		var c model.Chat
		if err := cur.Decode(&c); err != nil {
			return nil, errors.WithStack(err)
		}
		out = append(out, &c)
	}
	return out, errors.WithStack(cur.Err())
}

// ApplySend performs the whole per-send chat transition in one filtered
// update: last-message pointer, +1 unread for every participant except the
// sender, updated_at bump, message_count increment. System events skip the
// unread increment entirely.
func (s *Mongo) ApplySend(ctx context.Context, chatID string, msg *model.Message) (*model.Chat, error) {
	update := bson.M{
		"$set": bson.M{"last_message": msg, "updated_at": msg.CreatedAt},
		"$inc": bson.M{"message_count": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if msg.Category == model.CategoryUserContent {
		update["$inc"] = bson.M{
			"message_count":                1,
			"unread_counts.$[other].count": 1,
		}
		opts = opts.SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{"other.user_id": bson.M{"$ne": msg.SenderID}}},
		})
	}
	res := s.chats.FindOneAndUpdate(ctx, bson.M{"_id": chatID}, update, opts)
	var c model.Chat
	if err := res.Decode(&c); err != nil {
		return nil, errors.Wrapf(err, "apply send on chat %s", chatID)
	}
	return &c, nil
}

// RecomputeLastMessage re-points last_message at the newest remaining
// message, or clears it when none remain.
func (s *Mongo) RecomputeLastMessage(ctx context.Context, chatID string) (*model.Chat, error) {
	cur, err := s.msgs.Find(ctx, bson.M{"chat_id": chatID}, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(1))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	latest, err := decodeMessages(ctx, cur)
	if err != nil {
		return nil, err
	}

	var update bson.M
	if len(latest) == 0 {
		update = bson.M{"$unset": bson.M{"last_message": ""}}
	} else {
		update = bson.M{"$set": bson.M{"last_message": latest[0]}}
	}
	res := s.chats.FindOneAndUpdate(ctx, bson.M{"_id": chatID}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After))
	var c model.Chat
	if err := res.Decode(&c); err != nil {
		return nil, errors.Wrapf(err, "recompute last message on chat %s", chatID)
	}
	return &c, nil
}

func (s *Mongo) ResetUnread(ctx context.Context, chatID, userID string) (*model.Chat, error) {
	res := s.chats.FindOneAndUpdate(ctx,
		bson.M{"_id": chatID},
		bson.M{"$set": bson.M{"unread_counts.$[me].count": 0}},
		options.FindOneAndUpdate().
			SetArrayFilters(options.ArrayFilters{
				Filters: []interface{}{bson.M{"me.user_id": userID}},
			}).
			SetReturnDocument(options.After),
	)
	var c model.Chat
	if err := res.Decode(&c); err != nil {
		return nil, errors.Wrapf(err, "reset unread on chat %s", chatID)
	}
	return &c, nil
}

func (s *Mongo) SetPinned(ctx context.Context, chatID, messageID string) (*model.Chat, error) {
	var update bson.M
	if messageID == "" {
		update = bson.M{"$unset": bson.M{"pinned_message_id": ""}}
	} else {
		update = bson.M{"$set": bson.M{"pinned_message_id": messageID}}
	}
	res := s.chats.FindOneAndUpdate(ctx, bson.M{"_id": chatID}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After))
	var c model.Chat
	if err := res.Decode(&c); err != nil {
		return nil, errors.Wrapf(err, "set pinned on chat %s", chatID)
	}
	return &c, nil
}

// ClearPinnedIf unpins only while the pointer still equals messageID, so a
// pin changed concurrently is left alone.
func (s *Mongo) ClearPinnedIf(ctx context.Context, chatID, messageID string) (*model.Chat, error) {
	_, err := s.chats.UpdateOne(ctx,
		bson.M{"_id": chatID, "pinned_message_id": messageID},
		bson.M{"$unset": bson.M{"pinned_message_id": ""}},
	)
	if err != nil && err != mongo.ErrNoDocuments {
		return nil, errors.WithStack(err)
	}
	return s.GetChat(ctx, chatID)
}

func (s *Mongo) DeleteChat(ctx context.Context, chatID string) error {
	if _, err := s.msgs.DeleteMany(ctx, bson.M{"chat_id": chatID}); err != nil {
		return errors.WithStack(err)
	}
	_, err := s.chats.DeleteOne(ctx, bson.M{"_id": chatID})
	return errors.WithStack(err)
}

func (s *Mongo) RemoveParticipant(ctx context.Context, chatID, userID string) (*model.Chat, error) {
	res := s.chats.FindOneAndUpdate(ctx,
		bson.M{"_id": chatID},
		bson.M{"$pull": bson.M{
			"participants":  userID,
			"unread_counts": bson.M{"user_id": userID},
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var c model.Chat
	if err := res.Decode(&c); err != nil {
		return nil, errors.Wrapf(err, "remove participant from chat %s", chatID)
	}
	return &c, nil
}
