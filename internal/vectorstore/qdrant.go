package vectorstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Config holds connection settings for a Qdrant instance.
type Config struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Collection string `json:"collection"`
}

// Client wraps gRPC connections to Qdrant's collections and points services.
type Client struct {
	conn        *grpc.ClientConn
	collections pb.CollectionsClient
	points      pb.PointsClient
	collection  string
}

// Payload is the metadata stored alongside each composite vector. It
// carries everything the ranker needs so re-ranking never has to
// hydrate records from the relational store.
type Payload struct {
	OwnerID          string
	EmotionLabel     string
	EmotionIntensity float64
	CreatedAt        time.Time
}

// Hit is a single nearest-neighbor result.
type Hit struct {
	ID      string
	Score   float32 // cosine similarity in [-1,1], 1 = identical
	Payload Payload
}

// NewClient dials the Qdrant gRPC endpoint and returns a ready Client.
func NewClient(cfg Config) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect %s: %w", addr, err)
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "memories"
	}
	return &Client{
		conn:        conn,
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
		collection:  collection,
	}, nil
}

// EnsureCollection creates the memory collection if it does not already
// exist. dimension must equal the embedder dimension plus the prosody
// tail and is constant for a deployment.
func (c *Client) EnsureCollection(ctx context.Context, dimension uint64) error {
	_, err := c.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: c.collection})
	if err == nil {
		return nil
	}
	_, err = c.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: c.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     dimension,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", c.collection, err)
	}
	return nil
}

// Upsert inserts or updates one memory point.
func (c *Client) Upsert(ctx context.Context, id string, vector []float32, payload Payload) error {
	_, err := c.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: c.collection,
		Points: []*pb.PointStruct{
			{
				Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}},
				Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vector}}},
				Payload: encodePayload(payload),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("upsert %s: %w", id, err)
	}
	return nil
}

// Query performs a nearest-neighbor search scoped to one owner and
// returns up to k hits sorted by descending similarity.
func (c *Client) Query(ctx context.Context, ownerID string, vector []float32, k uint64) ([]Hit, error) {
	resp, err := c.points.Search(ctx, &pb.SearchPoints{
		CollectionName: c.collection,
		Vector:         vector,
		Limit:          k,
		Filter: &pb.Filter{
			Must: []*pb.Condition{
				{
					ConditionOneOf: &pb.Condition_Field{
						Field: &pb.FieldCondition{
							Key: "owner_id",
							Match: &pb.Match{
								MatchValue: &pb.Match_Keyword{Keyword: ownerID},
							},
						},
					},
				},
			},
		},
		WithPayload: &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", c.collection, err)
	}
	hits := make([]Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, Hit{
			ID:      r.Id.GetUuid(),
			Score:   r.Score,
			Payload: decodePayload(r.Payload),
		})
	}
	return hits, nil
}

// Delete removes one point from the collection.
func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: c.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{
					Ids: []*pb.PointId{
						{PointIdOptions: &pb.PointId_Uuid{Uuid: id}},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

// Close tears down the underlying gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func encodePayload(p Payload) map[string]*pb.Value {
	return map[string]*pb.Value{
		"owner_id":          {Kind: &pb.Value_StringValue{StringValue: p.OwnerID}},
		"emotion_label":     {Kind: &pb.Value_StringValue{StringValue: p.EmotionLabel}},
		"emotion_intensity": {Kind: &pb.Value_DoubleValue{DoubleValue: p.EmotionIntensity}},
		"created_at":        {Kind: &pb.Value_StringValue{StringValue: p.CreatedAt.UTC().Format(time.RFC3339Nano)}},
	}
}

func decodePayload(raw map[string]*pb.Value) Payload {
	var p Payload
	if v, ok := raw["owner_id"]; ok {
		p.OwnerID = v.GetStringValue()
	}
	if v, ok := raw["emotion_label"]; ok {
		p.EmotionLabel = v.GetStringValue()
	}
	if v, ok := raw["emotion_intensity"]; ok {
		switch kind := v.Kind.(type) {
		case *pb.Value_DoubleValue:
			p.EmotionIntensity = kind.DoubleValue
		case *pb.Value_StringValue:
			p.EmotionIntensity, _ = strconv.ParseFloat(kind.StringValue, 64)
		}
	}
	if v, ok := raw["created_at"]; ok {
		p.CreatedAt, _ = time.Parse(time.RFC3339Nano, v.GetStringValue())
	}
	return p
}
