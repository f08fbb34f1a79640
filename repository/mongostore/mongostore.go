// Package mongostore implements repository.Store on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"forum/database"
	"forum/models"
	"forum/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	client *mongo.Client
	users  *mongo.Collection
	posts  *mongo.Collection
	drafts *mongo.Collection
	favs   *mongo.Collection
}

var _ repository.Store = (*Store)(nil)

// New binds the store to dbName and makes sure the indexes exist.
func New(ctx context.Context, client *mongo.Client, dbName string) (*Store, error) {
	db := client.Database(dbName)
	s := &Store{
		client: client,
		users:  db.Collection("users"),
		posts:  db.Collection("posts"),
		drafts: db.Collection("drafts"),
		favs:   db.Collection("favorites"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("users index: %w", err)
	}
	if _, err := s.posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "public", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "public", Value: 1}, {Key: "updatedAt", Value: -1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("posts index: %w", err)
	}
	if _, err := s.drafts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "updatedAt", Value: -1}},
	}); err != nil {
		return fmt.Errorf("drafts index: %w", err)
	}
	if _, err := s.favs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "postId", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("favorites index: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return database.DisconnectMongo(ctx, s.client)
}

func newID() string {
	return primitive.NewObjectID().Hex()
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = newID()
	}
	if _, err := s.users.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	err := s.users.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *Store) UpdateProfile(ctx context.Context, id string, p models.ProfileUpdate) error {
	set := bson.M{}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Bio != nil {
		set["bio"] = *p.Bio
	}
	if len(set) == 0 {
		_, err := s.FindUserByID(ctx, id)
		return err
	}

	res, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) CreatePost(ctx context.Context, p *models.Post) error {
	if p.ID == "" {
		p.ID = newID()
	}
	_, err := s.posts.InsertOne(ctx, p)
	return err
}

// authorStages joins the owner's public profile onto each post.
func authorStages() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "users"},
			{Key: "localField", Value: "userId"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "user"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$user"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "user.email", Value: 0},
			{Key: "user.passwordHash", Value: 0},
			{Key: "user.createdAt", Value: 0},
		}}},
	}
}

func (s *Store) FindPublicPost(ctx context.Context, id string) (*models.PostWithAuthor, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "_id", Value: id}, {Key: "public", Value: true}}}},
		{{Key: "$limit", Value: 1}},
	}
	pipeline = append(pipeline, authorStages()...)

	cursor, err := s.posts.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var posts []models.PostWithAuthor
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, repository.ErrNotFound
	}
	return &posts[0], nil
}

// publicFilter builds the $match for listings; the visibility clause is unconditional.
func publicFilter(keywords *string) bson.D {
	filter := bson.D{{Key: "public", Value: true}}
	if keywords != nil && *keywords != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(*keywords), Options: "i"}
		filter = append(filter, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "title", Value: pattern}},
			bson.D{{Key: "text", Value: pattern}},
		}})
	}
	return filter
}

func (s *Store) ListPublicPosts(ctx context.Context, q repository.PostQuery) ([]models.PostWithAuthor, error) {
	dir := 1
	if q.Descending {
		dir = -1
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: publicFilter(q.Keywords)}},
		{{Key: "$sort", Value: bson.D{{Key: q.SortField, Value: dir}, {Key: "_id", Value: dir}}}},
		{{Key: "$skip", Value: int64(q.Offset)}},
		{{Key: "$limit", Value: int64(q.Limit)}},
	}
	pipeline = append(pipeline, authorStages()...)

	cursor, err := s.posts.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []models.PostWithAuthor{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *Store) ListPostsByOwner(ctx context.Context, ownerID string) ([]models.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.posts.Find(ctx, bson.M{"userId": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *Store) DeletePost(ctx context.Context, ownerID, id string) error {
	res, err := s.posts.DeleteOne(ctx, bson.M{"_id": id, "userId": ownerID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	_, err = s.favs.DeleteMany(ctx, bson.M{"postId": id})
	return err
}

func (s *Store) CreateDraft(ctx context.Context, d *models.Draft) error {
	if d.ID == "" {
		d.ID = newID()
	}
	_, err := s.drafts.InsertOne(ctx, d)
	return err
}

func (s *Store) FindDraft(ctx context.Context, ownerID, id string) (*models.Draft, error) {
	var d models.Draft
	err := s.drafts.FindOne(ctx, bson.M{"_id": id, "userId": ownerID}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) UpdateDraft(ctx context.Context, d *models.Draft) error {
	res, err := s.drafts.UpdateOne(ctx,
		bson.M{"_id": d.ID, "userId": d.UserID},
		bson.M{"$set": bson.M{
			"title":     d.Title,
			"text":      d.Text,
			"html":      d.HTML,
			"tags":      d.Tags,
			"private":   d.Private,
			"updatedAt": d.UpdatedAt,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) ListDraftsByOwner(ctx context.Context, ownerID string) ([]models.Draft, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	cursor, err := s.drafts.Find(ctx, bson.M{"userId": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	drafts := []models.Draft{}
	if err := cursor.All(ctx, &drafts); err != nil {
		return nil, err
	}
	return drafts, nil
}

func (s *Store) DeleteDraft(ctx context.Context, ownerID, id string) error {
	res, err := s.drafts.DeleteOne(ctx, bson.M{"_id": id, "userId": ownerID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) AddFavorite(ctx context.Context, f *models.Favorite) error {
	err := s.posts.FindOne(ctx, bson.M{"_id": f.PostID, "public": true}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.ErrNotFound
	}
	if err != nil {
		return err
	}

	if _, err := s.favs.InsertOne(ctx, f); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	_, err = s.posts.UpdateOne(ctx, bson.M{"_id": f.PostID}, bson.M{"$inc": bson.M{"favorites": 1}})
	return err
}

func (s *Store) RemoveFavorite(ctx context.Context, userID, postID string) error {
	res, err := s.favs.DeleteOne(ctx, bson.M{"userId": userID, "postId": postID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	_, err = s.posts.UpdateOne(ctx,
		bson.M{"_id": postID, "favorites": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"favorites": -1}})
	return err
}

func (s *Store) ListFavoritePosts(ctx context.Context, userID string) ([]models.PostWithAuthor, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "userId", Value: userID}}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}, {Key: "postId", Value: -1}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "posts"},
			{Key: "localField", Value: "postId"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "post"},
		}}},
		{{Key: "$unwind", Value: "$post"}},
		{{Key: "$replaceRoot", Value: bson.D{{Key: "newRoot", Value: "$post"}}}},
		{{Key: "$match", Value: bson.D{{Key: "public", Value: true}}}},
	}
	pipeline = append(pipeline, authorStages()...)

	cursor, err := s.favs.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []models.PostWithAuthor{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}
