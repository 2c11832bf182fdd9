package mongo

import (
	"alcyxob/program-studio/internal/realtime"
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// changeStreamSource implements realtime.ChangeSource with database change streams.
// Requires a replica set.
type changeStreamSource struct {
	db *mongo.Database
}

func NewChangeStreamSource(db *mongo.Database) realtime.ChangeSource {
	return &changeStreamSource{db: db}
}

// WatchProgram follows inserts, updates and deletes on the modules, sessions
// and exercises of one program. Deletes carry no document, so every delete on
// those collections is passed through.
func (c *changeStreamSource) WatchProgram(ctx context.Context, programID primitive.ObjectID) (realtime.Stream, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"ns.coll": bson.M{"$in": bson.A{moduleCollectionName, sessionCollectionName, exerciseCollectionName}},
			"$or": bson.A{
				bson.M{"fullDocument.programId": programID},
				bson.M{"operationType": "delete"},
			},
		}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	cs, err := c.db.Watch(ctx, pipeline, opts)
	if err != nil {
		return nil, err
	}
	return &changeStream{cs: cs}, nil
}

type changeStream struct {
	cs      *mongo.ChangeStream
	current realtime.ChangeEvent
	err     error
}

type changeDocument struct {
	OperationType string `bson:"operationType"`
	NS            struct {
		Coll string `bson:"coll"`
	} `bson:"ns"`
	DocumentKey struct {
		ID primitive.ObjectID `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument struct {
		ModuleID  primitive.ObjectID `bson:"moduleId"`
		SessionID primitive.ObjectID `bson:"sessionId"`
	} `bson:"fullDocument"`
	UpdateDescription struct {
		UpdatedFields bson.Raw `bson:"updatedFields"`
		RemovedFields []string `bson:"removedFields"`
	} `bson:"updateDescription"`
}

// updated lists the top-level names an update set.
func (d *changeDocument) updated() []string {
	elems, err := d.UpdateDescription.UpdatedFields.Elements()
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(elems))
	for _, el := range elems {
		out = append(out, el.Key())
	}
	return out
}

func (s *changeStream) Next(ctx context.Context) bool {
	if !s.cs.Next(ctx) {
		return false
	}
	var doc changeDocument
	if err := s.cs.Decode(&doc); err != nil {
		s.err = err
		return false
	}
	s.current = realtime.ChangeEvent{
		Collection: doc.NS.Coll,
		Operation:  doc.OperationType,
		DocumentID: doc.DocumentKey.ID,
		ModuleID:   doc.FullDocument.ModuleID,
		SessionID:  doc.FullDocument.SessionID,
		Fields:     doc.updated(),
		Removed:    doc.UpdateDescription.RemovedFields,
	}
	return true
}

func (s *changeStream) Event() realtime.ChangeEvent { return s.current }

func (s *changeStream) Err() error {
	if s.err != nil {
		return s.err
	}
	return s.cs.Err()
}

func (s *changeStream) Close(ctx context.Context) error { return s.cs.Close(ctx) }
