package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nexthire/nexthire-api/internal/core/domain"
)

const collectionJobs = "jobs"

type JobRepository struct {
	col *mongo.Collection
}

func NewJobRepository(db *mongo.Database) *JobRepository {
	return &JobRepository{col: db.Collection(collectionJobs)}
}

type jobDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Position    string             `bson:"Position"`
	Company     string             `bson:"Company"`
	Phase       string             `bson:"Phase"`
	CL          bool               `bson:"CL"`
	Status      bool               `bson:"Status"`
	Note        string             `bson:"Note,omitempty"`
	AppliedDate string             `bson:"Applied date"`
	Owner       primitive.ObjectID `bson:"owner"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (d jobDoc) toDomain() domain.Job {
	return domain.Job{
		ID:          d.ID.Hex(),
		Position:    d.Position,
		Company:     d.Company,
		Phase:       d.Phase,
		CL:          d.CL,
		Status:      d.Status,
		Note:        d.Note,
		AppliedDate: d.AppliedDate,
		OwnerID:     d.Owner.Hex(),
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

// Create inserts a new job document.
func (r *JobRepository) Create(ctx context.Context, j *domain.Job) (*domain.Job, error) {
	owner, err := primitive.ObjectIDFromHex(j.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid owner id", domain.ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := jobDoc{
		Position:    j.Position,
		Company:     j.Company,
		Phase:       j.Phase,
		CL:          j.CL,
		Status:      j.Status,
		Note:        j.Note,
		AppliedDate: j.AppliedDate,
		Owner:       owner,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	doc.ID, _ = res.InsertedID.(primitive.ObjectID)

	out := doc.toDomain()
	return &out, nil
}

func (r *JobRepository) FindAll(ctx context.Context) ([]domain.Job, error) {
	return r.find(ctx, bson.M{})
}

func (r *JobRepository) FindByOwner(ctx context.Context, ownerID string) ([]domain.Job, error) {
	owner, err := primitive.ObjectIDFromHex(ownerID)
	if err != nil {
		return nil, nil
	}
	return r.find(ctx, bson.M{"owner": owner})
}

// FindOwned retrieves a job only when it belongs to ownerID.
func (r *JobRepository) FindOwned(ctx context.Context, id, ownerID string) (*domain.Job, error) {
	filter, ok := ownedFilter(id, ownerID)
	if !ok {
		return nil, domain.ErrJobNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc jobDoc
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("find job: %w", err)
	}
	out := doc.toDomain()
	return &out, nil
}

func (r *JobRepository) Update(ctx context.Context, j *domain.Job) error {
	filter, ok := ownedFilter(j.ID, j.OwnerID)
	if !ok {
		return domain.ErrJobNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"Position":     j.Position,
		"Company":      j.Company,
		"Phase":        j.Phase,
		"CL":           j.CL,
		"Status":       j.Status,
		"Note":         j.Note,
		"Applied date": j.AppliedDate,
		"updatedAt":    j.UpdatedAt,
	}}
	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *JobRepository) DeleteOwned(ctx context.Context, id, ownerID string) error {
	filter, ok := ownedFilter(id, ownerID)
	if !ok {
		return domain.ErrJobNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

// EnsureIndexes creates necessary indexes on the jobs collection.
func (r *JobRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "owner", Value: 1}}})
	return err
}

func (r *JobRepository) find(ctx context.Context, filter bson.M) ([]domain.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find jobs: %w", err)
	}
	defer cur.Close(ctx)

	var docs []jobDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode jobs: %w", err)
	}

	jobs := make([]domain.Job, 0, len(docs))
	for _, d := range docs {
		jobs = append(jobs, d.toDomain())
	}
	return jobs, nil
}

func ownedFilter(id, ownerID string) (bson.M, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, false
	}
	owner, err := primitive.ObjectIDFromHex(ownerID)
	if err != nil {
		return nil, false
	}
	return bson.M{"_id": oid, "owner": owner}, true
}
