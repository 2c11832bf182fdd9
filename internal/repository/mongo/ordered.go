package mongo

import (
	"alcyxob/program-studio/internal/domain"
	"alcyxob/program-studio/internal/repository"
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// maxBatchOps is the largest number of writes sent in one bulk request.
const maxBatchOps = 500

// orderedCollection holds the queries shared by collections whose documents
// are ordered children of a parent document.
type orderedCollection struct {
	collection  *mongo.Collection
	parentField string
}

func insertDocument(ctx context.Context, collection *mongo.Collection, doc interface{}) (primitive.ObjectID, error) {
	result, err := collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

func (o orderedCollection) findByID(ctx context.Context, id primitive.ObjectID, out interface{}) error {
	err := o.collection.FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return repository.ErrNotFound
		}
		return err
	}
	return nil
}

// listByParent decodes every child of parentID, sorted by order.
func (o orderedCollection) listByParent(ctx context.Context, parentID primitive.ObjectID, out interface{}) error {
	filter := bson.M{o.parentField: parentID}
	findOptions := options.Find().SetSort(bson.D{{Key: "order", Value: 1}})

	cursor, err := o.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, out); err != nil {
		return err
	}
	return cursor.Err()
}

// nextOrder returns the position a new child of parentID should take.
func (o orderedCollection) nextOrder(ctx context.Context, parentID primitive.ObjectID) (int, error) {
	n, err := o.collection.CountDocuments(ctx, bson.M{o.parentField: parentID})
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// SetOrders rewrites order fields with unordered bulk writes, maxBatchOps at a time.
func (o orderedCollection) SetOrders(ctx context.Context, updates []domain.OrderUpdate) error {
	for start := 0; start < len(updates); start += maxBatchOps {
		end := start + maxBatchOps
		if end > len(updates) {
			end = len(updates)
		}
		models := make([]mongo.WriteModel, 0, end-start)
		for _, u := range updates[start:end] {
			models = append(models, mongo.NewUpdateOneModel().
				SetFilter(bson.M{"_id": u.ID}).
				SetUpdate(bson.M{"$set": bson.M{"order": u.Order}}))
		}
		result, err := o.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
		if err != nil {
			return fmt.Errorf("%w: %v", repository.ErrUpdateFailed, err)
		}
		if result.MatchedCount < int64(len(models)) {
			return repository.ErrNotFound
		}
	}
	return nil
}

// SetCompleteness stores or clears the denormalized isComplete flag.
func (o orderedCollection) SetCompleteness(ctx context.Context, id primitive.ObjectID, isComplete *bool) error {
	var update bson.M
	if isComplete == nil {
		update = bson.M{"$unset": bson.M{"isComplete": ""}}
	} else {
		update = bson.M{"$set": bson.M{"isComplete": *isComplete}}
	}
	result, err := o.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (o orderedCollection) updateFields(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	if id == primitive.NilObjectID {
		return errors.New("document ID is required for update")
	}
	result, err := o.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (o orderedCollection) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := o.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ensureOrderedIndexes creates the (parent, order) index every child collection needs.
func ensureOrderedIndexes(ctx context.Context, collection *mongo.Collection, parentField string, extra ...mongo.IndexModel) error {
	indexes := append([]mongo.IndexModel{
		{
			Keys:    bson.D{{Key: parentField, Value: 1}, {Key: "order", Value: 1}},
			Options: options.Index(),
		},
	}, extra...)
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
