package repository

import (
	"context"
	"errors"
	"time"

	"trivia-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LeaderboardCap bounds how many rows a top query may return.
const LeaderboardCap = 100

type GameRepository struct {
	Col *mongo.Collection
}

func NewGameRepository(db *mongo.Database) *GameRepository {
	return &GameRepository{Col: db.Collection("games")}
}

func (r *GameRepository) Create(ctx context.Context, game *models.Game) error {
	game.ID = ""
	res, err := r.Col.InsertOne(ctx, game)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		game.ID = oid.Hex()
	}
	return nil
}

func (r *GameRepository) FindByID(ctx context.Context, id string) (*models.Game, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var game models.Game
	err = r.Col.FindOne(ctx, bson.M{"_id": objID}).Decode(&game)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &game, nil
}

func (r *GameRepository) FindAll(ctx context.Context) ([]models.Game, error) {
	cur, err := r.Col.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var games []models.Game
	for cur.Next(ctx) {
		var g models.Game
		if err := cur.Decode(&g); err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, cur.Err()
}

// FinalizeActive flips an active game to finished and applies the graded
// outcome in one conditional update. The state guard in the filter is the
// compare-and-swap that serializes concurrent submissions: only one caller
// ever matches the active document, every later one gets ErrAlreadyFinished.
func (r *GameRepository) FinalizeActive(ctx context.Context, id string, completion models.GameCompletion) (*models.Game, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var finished models.Game
	err = r.Col.FindOneAndUpdate(
		ctx,
		bson.M{"_id": objID, "state": models.GameActive},
		bson.M{"$set": finalizeUpdate(completion)},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&finished)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Either the game never existed or it lost the race.
		if _, findErr := r.FindByID(ctx, id); findErr != nil {
			return nil, findErr
		}
		return nil, ErrAlreadyFinished
	}
	if err != nil {
		return nil, err
	}
	return &finished, nil
}

func finalizeUpdate(completion models.GameCompletion) bson.M {
	return bson.M{
		"user":                    completion.User,
		"questions":               completion.Questions,
		"victory":                 completion.Victory,
		"duration":                completion.Duration,
		"timed_out":               completion.TimedOut,
		"total_correct_answers":   completion.TotalCorrectAnswers,
		"total_incorrect_answers": completion.TotalIncorrectAnswers,
		"state":                   models.GameFinished,
		"finished_at":             time.Now(),
	}
}

// FindTop returns the leaderboard: finished games that were not timed out and
// actually took time, best correct count first, fastest first on ties. The
// read is intentionally non-transactional; in-flight finishes show up on the
// next refresh.
func (r *GameRepository) FindTop(ctx context.Context, limit int64) ([]models.Game, error) {
	if limit <= 0 || limit > LeaderboardCap {
		limit = LeaderboardCap
	}

	cur, err := r.Col.Find(
		ctx,
		leaderboardFilter(),
		options.Find().SetSort(leaderboardSort()).SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var games []models.Game
	for cur.Next(ctx) {
		var g models.Game
		if err := cur.Decode(&g); err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, cur.Err()
}

func leaderboardFilter() bson.M {
	return bson.M{
		"state":     models.GameFinished,
		"timed_out": false,
		"duration":  bson.M{"$gt": 0},
	}
}

func leaderboardSort() bson.D {
	return bson.D{
		{Key: "total_correct_answers", Value: -1},
		{Key: "duration", Value: 1},
	}
}

func (r *GameRepository) CountFinished(ctx context.Context) (int64, error) {
	return r.Col.CountDocuments(ctx, bson.M{"state": models.GameFinished})
}
