package repository

import (
	"context"
	"errors"
	"time"

	"grading_backend/internal/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const resultCollection = "assessment_results"

type markDoc struct {
	ID           string    `bson:"id"`
	SubmissionID string    `bson:"submission"`
	MarkerID     string    `bson:"marker"`
	Score        float64   `bson:"score"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

type resultDoc struct {
	ID           string    `bson:"_id"`
	AssessmentID string    `bson:"assessment"`
	StudentID    string    `bson:"student"`
	AverageScore float64   `bson:"average_score"`
	Marks        []markDoc `bson:"marks"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func (d *resultDoc) toModel() *model.AssessmentResult {
	out := &model.AssessmentResult{
		UUIDBase:     model.UUIDBase{ID: d.ID, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt},
		AssessmentID: d.AssessmentID,
		StudentID:    d.StudentID,
		AverageScore: d.AverageScore,
		Marks:        make([]model.MarkEntry, 0, len(d.Marks)),
	}
	for _, m := range d.Marks {
		out.Marks = append(out.Marks, model.MarkEntry{
			UUIDBase:           model.UUIDBase{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
			AssessmentResultID: d.ID,
			SubmissionID:       m.SubmissionID,
			MarkerID:           m.MarkerID,
			Score:              m.Score,
		})
	}
	return out
}

// MongoResultRepository keeps each result with its marks embedded in one document, so
// every mark write is a single-document atomic update.
type MongoResultRepository struct {
	Coll *mongo.Collection
}

func NewMongoResultRepository(db *mongo.Database) *MongoResultRepository {
	return &MongoResultRepository{Coll: db.Collection(resultCollection)}
}

// EnsureIndexes 建立 (assessment, student) 唯一索引
func (r *MongoResultRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.Coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "assessment", Value: 1}, {Key: "student", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *MongoResultRepository) FindOrCreate(ctx context.Context, assessmentID, studentID string) (*model.AssessmentResult, error) {
	now := time.Now()
	filter := bson.M{"assessment": assessmentID, "student": studentID}
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":           uuid.New().String(),
			"average_score": 0.0,
			"marks":         bson.A{},
			"created_at":    now,
			"updated_at":    now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc resultDoc
	err := r.Coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// 并发插入失败的一方直接读取胜出的文档
		err = r.Coll.FindOne(ctx, filter).Decode(&doc)
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (r *MongoResultRepository) Find(ctx context.Context, assessmentID, studentID string) (*model.AssessmentResult, error) {
	return r.findOne(ctx, bson.M{"assessment": assessmentID, "student": studentID})
}

func (r *MongoResultRepository) FindByID(ctx context.Context, id string) (*model.AssessmentResult, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoResultRepository) findOne(ctx context.Context, filter bson.M) (*model.AssessmentResult, error) {
	var doc resultDoc
	err := r.Coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (r *MongoResultRepository) FindByAssessment(ctx context.Context, assessmentID string) ([]model.AssessmentResult, error) {
	cur, err := r.Coll.Find(ctx, bson.M{"assessment": assessmentID}, options.Find().SetSort(bson.D{{Key: "student", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []resultDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]model.AssessmentResult, 0, len(docs))
	for i := range docs {
		out = append(out, *docs[i].toModel())
	}
	return out, nil
}

func (r *MongoResultRepository) UpsertMark(ctx context.Context, resultID, submissionID, markerID string, score float64) error {
	matched, err := r.setMark(ctx, resultID, submissionID, markerID, score)
	if err != nil || matched {
		return err
	}

	now := time.Now()
	// $ne 保证并发追加时同一提交只留一条
	_, err = r.Coll.UpdateOne(ctx,
		bson.M{"_id": resultID, "marks.submission": bson.M{"$ne": submissionID}},
		bson.M{
			"$push": bson.M{"marks": markDoc{
				ID:           uuid.New().String(),
				SubmissionID: submissionID,
				MarkerID:     markerID,
				Score:        score,
				CreatedAt:    now,
				UpdatedAt:    now,
			}},
			"$set": bson.M{"updated_at": now},
		},
	)
	if err != nil {
		return err
	}

	// 追加落空说明另一方刚写入，再覆盖一次
	_, err = r.setMark(ctx, resultID, submissionID, markerID, score)
	return err
}

func (r *MongoResultRepository) UpdateMark(ctx context.Context, resultID, submissionID, markerID string, score float64) error {
	matched, err := r.setMark(ctx, resultID, submissionID, markerID, score)
	if err != nil {
		return err
	}
	if !matched {
		return ErrMarkEntryNotFound
	}
	return nil
}

func (r *MongoResultRepository) setMark(ctx context.Context, resultID, submissionID, markerID string, score float64) (bool, error) {
	now := time.Now()
	res, err := r.Coll.UpdateOne(ctx,
		bson.M{"_id": resultID, "marks.submission": submissionID},
		bson.M{"$set": bson.M{
			"marks.$.marker":     markerID,
			"marks.$.score":      score,
			"marks.$.updated_at": now,
			"updated_at":         now,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *MongoResultRepository) SaveAverage(ctx context.Context, resultID string, average float64) error {
	_, err := r.Coll.UpdateOne(ctx,
		bson.M{"_id": resultID},
		bson.M{"$set": bson.M{"average_score": average, "updated_at": time.Now()}},
	)
	return err
}
