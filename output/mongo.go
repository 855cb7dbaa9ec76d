package output

import (
	"context"
	"fmt"

	"github.com/paulmach/orb/geojson"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"osmextract/boundaries"
	"osmextract/osmprocessing"
	"osmextract/streets"
)

const mongoBatchSize = 1000

// MongoSink stores records as documents of one collection. Geometries are
// stored as GeoJSON so the collection can carry a 2dsphere index.
type MongoSink struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func OpenMongo(ctx context.Context, uri, database, collection string) (*MongoSink, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", uri, err)
	}
	return &MongoSink{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

func (s *MongoSink) Insert(ctx context.Context, docs []any) error {
	for start := 0; start < len(docs); start += mongoBatchSize {
		end := min(start+mongoBatchSize, len(docs))
		if _, err := s.collection.InsertMany(ctx, docs[start:end]); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", s.collection.Name(), err)
		}
	}
	return nil
}

func (s *MongoSink) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func ObjectDocuments(objects []osmprocessing.Object) []any {
	docs := make([]any, len(objects))
	for i, o := range objects {
		b := osmprocessing.BoundsOf(o.Bound)
		doc := bson.M{
			"osm_id":   o.ID,
			"type":     o.Type,
			"tags":     o.Tags,
			"centroid": geojson.NewGeometry(o.Centroid),
			"bounds":   bson.M{"e": b.E, "n": b.N, "s": b.S, "w": b.W},
		}
		docs[i] = doc
	}
	return docs
}

func StreetDocuments(ss []streets.Street) []any {
	docs := make([]any, len(ss))
	for i, s := range ss {
		doc := bson.M{
			"street_id": s.ID,
			"name":      s.Name,
			"way_ids":   s.WayIDs,
			"length":    s.Length,
			"loc":       geojson.NewGeometry(s.Loc),
			"geometry":  geojson.NewGeometry(s.Geometry),
		}
		if s.Boundary != "" {
			doc["boundary"] = s.Boundary
		}
		docs[i] = doc
	}
	return docs
}

func BoundaryDocuments(bs []boundaries.Boundary) []any {
	docs := make([]any, len(bs))
	for i, b := range bs {
		doc := bson.M{
			"relation_id": int64(b.RelationID),
			"name":        b.Name,
			"admin_level": b.AdminLevel,
			"bbox":        geojson.NewGeometry(b.Bound.ToPolygon()),
			"incomplete":  b.Incomplete,
		}
		if len(b.Geometry) > 0 {
			doc["geometry"] = geojson.NewGeometry(b.Geometry)
		}
		docs[i] = doc
	}
	return docs
}
