package store

import (
	"context"
	"regexp"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Pabblusansky/Pelegram-sub000/module/chat/model"
)

func (s *Mongo) InsertMessage(ctx context.Context, m *model.Message) error {
	_, err := s.msgs.InsertOne(ctx, m)
	return errors.WithStack(err)
}

func (s *Mongo) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	var m model.Message
	if err := s.msgs.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return nil, errors.Wrapf(err, "get message %s", id)
	}
	return &m, nil
}

func (s *Mongo) UpdateMessageContent(ctx context.Context, id, content string, editedAt int64) (*model.Message, error) {
	res := s.msgs.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"content": content, "edited": true, "edited_at": editedAt}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var m model.Message
	if err := res.Decode(&m); err != nil {
		return nil, errors.Wrapf(err, "edit message %s", id)
	}
	return &m, nil
}

func (s *Mongo) DeleteMessages(ctx context.Context, chatID string, ids []string) (int64, error) {
	res, err := s.msgs.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}, "chat_id": chatID})
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return res.DeletedCount, nil
}

// SetMessageStatusIf flips the status only while it is still exactly `from`.
// The filter-level guard is what keeps a fast client-side `read` from being
// clobbered back to `delivered` by the async delivery timer.
func (s *Mongo) SetMessageStatusIf(ctx context.Context, id string, from, to model.MessageStatus) (bool, error) {
	res, err := s.msgs.UpdateOne(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to}},
	)
	if err != nil {
		return false, errors.WithStack(err)
	}
	return res.ModifiedCount == 1, nil
}

func (s *Mongo) MarkChatRead(ctx context.Context, chatID, readerID string) ([]string, error) {
	filter := bson.M{
		"chat_id":   chatID,
		"sender_id": bson.M{"$ne": readerID},
		"status":    bson.M{"$ne": model.StatusRead},
		"category":  model.CategoryUserContent,
	}
	cur, err := s.msgs.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var ids []string
	for cur.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&doc); err == nil {
			ids = append(ids, doc.ID)
		}
	}
	_ = cur.Close(ctx)
	if len(ids) == 0 {
		return nil, nil
	}
	_, err = s.msgs.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"status": model.StatusRead}},
	)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return ids, nil
}

// ToggleReaction: same reaction -> remove; different -> replace; absent ->
// add. Each branch is a single filtered update, so two devices of the same
// user racing each other settle on one of the legal outcomes.
func (s *Mongo) ToggleReaction(ctx context.Context, messageID, userID, emoji string, now int64) (*model.Message, error) {
	// toggle off if the identical reaction exists
	res, err := s.msgs.UpdateOne(ctx,
		bson.M{"_id": messageID, "reactions": bson.M{"$elemMatch": bson.M{"user_id": userID, "emoji": emoji}}},
		bson.M{"$pull": bson.M{"reactions": bson.M{"user_id": userID}}},
	)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if res.ModifiedCount == 0 {
		// replace-or-add: drop any previous reaction by this user, then push
		if _, err := s.msgs.UpdateOne(ctx,
			bson.M{"_id": messageID},
			bson.M{"$pull": bson.M{"reactions": bson.M{"user_id": userID}}},
		); err != nil {
			return nil, errors.WithStack(err)
		}
		if _, err := s.msgs.UpdateOne(ctx,
			bson.M{"_id": messageID},
			bson.M{"$push": bson.M{"reactions": model.Reaction{UserID: userID, Emoji: emoji, UpdatedAt: now}}},
		); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return s.GetMessage(ctx, messageID)
}

// ListMessages returns up to limit messages older than beforeID (all newest
// when beforeID is empty), ascending by creation time. The anchor pair
// (created_at, _id) avoids relying on lexicographic id order.
func (s *Mongo) ListMessages(ctx context.Context, chatID, beforeID string, limit int) ([]*model.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	filter := bson.M{"chat_id": chatID}
	if beforeID != "" {
		anchor, err := s.GetMessage(ctx, beforeID)
		if err != nil {
			return nil, err
		}
		filter["$or"] = bson.A{
			bson.M{"created_at": bson.M{"$lt": anchor.CreatedAt}},
			bson.M{"created_at": anchor.CreatedAt, "_id": bson.M{"$lt": anchor.ID}},
		}
	}
	cur, err := s.msgs.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit)))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	out, err := decodeMessages(ctx, cur)
	if err != nil {
		return nil, err
	}
	reverse(out)
	return out, nil
}

// ContextAround returns the anchor message with up to radius neighbours on
// each side, ascending. A missing anchor is the caller's not-found case.
func (s *Mongo) ContextAround(ctx context.Context, chatID, messageID string, radius int) ([]*model.Message, error) {
	if radius <= 0 {
		radius = 25
	}
	anchor, err := s.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if anchor.ChatID != chatID {
		return nil, errors.Errorf("message %s not in chat %s", messageID, chatID)
	}

	beforeFilter := bson.M{"chat_id": chatID, "$or": bson.A{
		bson.M{"created_at": bson.M{"$lt": anchor.CreatedAt}},
		bson.M{"created_at": anchor.CreatedAt, "_id": bson.M{"$lt": anchor.ID}},
	}}
	cur, err := s.msgs.Find(ctx, beforeFilter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(radius)))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	before, err := decodeMessages(ctx, cur)
	if err != nil {
		return nil, err
	}
	reverse(before)

	afterFilter := bson.M{"chat_id": chatID, "$or": bson.A{
		bson.M{"created_at": bson.M{"$gt": anchor.CreatedAt}},
		bson.M{"created_at": anchor.CreatedAt, "_id": bson.M{"$gt": anchor.ID}},
	}}
	cur, err = s.msgs.Find(ctx, afterFilter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(radius)))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	after, err := decodeMessages(ctx, cur)
	if err != nil {
		return nil, err
	}

	out := make([]*model.Message, 0, len(before)+1+len(after))
	out = append(out, before...)
	out = append(out, anchor)
	out = append(out, after...)
	return out, nil
}

// SearchMessages is a case-insensitive substring match, timestamp-ordered.
func (s *Mongo) SearchMessages(ctx context.Context, chatID, query string, limit int) ([]*model.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	filter := bson.M{
		"chat_id": chatID,
		"content": bson.M{"$regex": primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}},
	}
	cur, err := s.msgs.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return decodeMessages(ctx, cur)
}

func decodeMessages(ctx context.Context, cur *mongo.Cursor) ([]*model.Message, error) {
	defer func() { _ = cur.Close(ctx) }()
	var out []*model.Message
	for cur.Next(ctx) {
		var m model.Message
		if err := cur.Decode(&m); err != nil {
			return nil, errors.WithStack(err)
		}
		out = append(out, &m)
	}
	return out, errors.WithStack(cur.Err())
}

func reverse(ms []*model.Message) {
	for i, j := 0, len(ms)-1; i < j; i, j = i+1, j-1 {
		ms[i], ms[j] = ms[j], ms[i]
	}
}
