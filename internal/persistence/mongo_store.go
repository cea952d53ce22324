package persistence

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/gigguin/bookflow/pkg/api"
)

// MongoPipelineStore is a PipelineStore backed by MongoDB. The original
// platform keeps its pipeline records in a document database, so the
// document-store port is first-class here.
//
// Documents are keyed by event ID and carry the gob payload plus the
// columns the filters need:
//
//	{_id, organization_id, stage, version, hold_expires_at, offer_expires_at, payload}
//
// The optimistic version check rides on a conditional UpdateOne whose
// filter includes the expected version.
type MongoPipelineStore struct {
	coll *mongo.Collection
}

var _ PipelineStore = (*MongoPipelineStore)(nil)

type mongoPipelineDoc struct {
	EventID        string           `bson:"_id"`
	OrganizationID string           `bson:"organization_id"`
	Stage          string           `bson:"stage"`
	Version        int64            `bson:"version"`
	HoldExpiresAt  int64            `bson:"hold_expires_at"`
	OfferExpiresAt int64            `bson:"offer_expires_at"`
	Payload        primitive.Binary `bson:"payload"`
}

// NewMongoPipelineStore creates a MongoPipelineStore using the
// "pipelines" collection of the given database.
func NewMongoPipelineStore(db *mongo.Database) *MongoPipelineStore {
	return &MongoPipelineStore{coll: db.Collection("pipelines")}
}

func newMongoDoc(p *api.Pipeline) (mongoPipelineDoc, error) {
	payload, err := EncodePipeline(p)
	if err != nil {
		return mongoPipelineDoc{}, err
	}
	return mongoPipelineDoc{
		EventID:        p.EventID,
		OrganizationID: p.OrganizationID,
		Stage:          string(p.Stage),
		Version:        p.Version,
		HoldExpiresAt:  expiryUnix(p.HoldExpiresAt),
		OfferExpiresAt: expiryUnix(p.OfferExpiresAt),
		Payload:        primitive.Binary{Data: payload},
	}, nil
}

func (s *MongoPipelineStore) SavePipeline(ctx context.Context, p *api.Pipeline) error {
	doc, err := newMongoDoc(p)
	if err != nil {
		return err
	}

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrPipelineExists
		}
		return err
	}
	return nil
}

func (s *MongoPipelineStore) UpdatePipeline(ctx context.Context, p *api.Pipeline, expectedVersion int64) error {
	doc, err := newMongoDoc(p)
	if err != nil {
		return err
	}

	res, err := s.coll.ReplaceOne(ctx,
		bson.M{"_id": p.EventID, "version": expectedVersion},
		doc,
	)
	if err != nil {
		return err
	}

	if res.MatchedCount == 0 {
		// Distinguish a lost race from a missing record.
		count, err := s.coll.CountDocuments(ctx, bson.M{"_id": p.EventID})
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrPipelineNotFound
		}
		return ErrVersionConflict
	}

	return nil
}

func (s *MongoPipelineStore) GetPipeline(ctx context.Context, eventID string) (*api.Pipeline, error) {
	var doc mongoPipelineDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": eventID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrPipelineNotFound
	}
	if err != nil {
		return nil, err
	}
	return DecodePipeline(doc.Payload.Data)
}

func (s *MongoPipelineStore) ListPipelines(ctx context.Context, filter PipelineFilter) ([]*api.Pipeline, error) {
	query := bson.M{}
	if filter.OrganizationID != "" {
		query["organization_id"] = filter.OrganizationID
	}
	if filter.Stage != "" {
		query["stage"] = string(filter.Stage)
	}
	if !filter.DueBefore.IsZero() {
		due := filter.DueBefore.Unix()
		query["$or"] = bson.A{
			bson.M{"stage": string(api.StageHold), "hold_expires_at": bson.M{"$gt": 0, "$lte": due}},
			bson.M{"stage": string(api.StageOffer), "offer_expires_at": bson.M{"$gt": 0, "$lte": due}},
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cur, err := s.coll.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var pipelines []*api.Pipeline
	for cur.Next(ctx) {
		var doc mongoPipelineDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		p, err := DecodePipeline(doc.Payload.Data)
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, p)
	}

	if err := cur.Err(); err != nil {
		return nil, err
	}

	return pipelines, nil
}
