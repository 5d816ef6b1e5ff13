package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/peerlearn/peerlearn/internal/domain"
	"github.com/peerlearn/peerlearn/pkg/log"
)

type accountDocument struct {
	ID            primitive.ObjectID     `bson:"_id,omitempty"`
	Email         string                 `bson:"email"`
	Username      string                 `bson:"username,omitempty"`
	Name          string                 `bson:"name"`
	Password      string                 `bson:"password"`
	Phone         string                 `bson:"phone,omitempty"`
	Github        string                 `bson:"github,omitempty"`
	Instagram     string                 `bson:"instagram,omitempty"`
	X             string                 `bson:"x,omitempty"`
	BackgroundURL string                 `bson:"backgroundUrl,omitempty"`
	Description   string                 `bson:"description,omitempty"`
	Groups        []accountGroupDocument `bson:"groups"`
	StudySessions []studySessionDocument `bson:"studySessions"`
	ProfileID     string                 `bson:"supabaseId,omitempty"`
	CreatedAt     time.Time              `bson:"createdAt"`
	UpdatedAt     time.Time              `bson:"updatedAt"`
}

type accountGroupDocument struct {
	Name    string   `bson:"name"`
	Members []string `bson:"members"`
}

type studySessionDocument struct {
	Topic       string    `bson:"topic"`
	Duration    int       `bson:"duration"`
	CompletedAt time.Time `bson:"completedAt"`
}

// MongoAccountRepository implements AccountRepository on a MongoDB collection.
type MongoAccountRepository struct {
	coll *mongo.Collection
}

// NewMongoClient connects to MongoDB and verifies the connection with a ping.
func NewMongoClient(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return client, nil
}

// NewMongoAccountRepository creates the repository and ensures its indexes.
func NewMongoAccountRepository(ctx context.Context, db *mongo.Database, collection string) (*MongoAccountRepository, error) {
	coll := db.Collection(collection)

	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("username_unique"),
		},
		{
			Keys:    bson.D{{Key: "supabaseId", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("supabase_id"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create account indexes: %w", err)
	}

	return &MongoAccountRepository{coll: coll}, nil
}

// Create inserts a new account document.
func (r *MongoAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	account.CreatedAt = now
	account.UpdatedAt = now

	doc := accountToDocument(account)
	doc.ID = primitive.NewObjectID()

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return duplicateKeyError(err)
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to insert account")
		return err
	}

	account.ID = doc.ID.Hex()
	return nil
}

// GetByID retrieves an account by its hex ObjectID.
func (r *MongoAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrAccountNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

// GetByEmail retrieves an account by email.
func (r *MongoAccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// GetByProfileID retrieves the account linked to a profile.
func (r *MongoAccountRepository) GetByProfileID(ctx context.Context, profileID string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"supabaseId": profileID})
}

// Update applies the non-nil fields and returns the updated account.
func (r *MongoAccountRepository) Update(ctx context.Context, id string, update *domain.AccountUpdate) (*domain.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrAccountNotFound
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc accountDocument
	err = r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, buildAccountUpdate(update, time.Now().UTC()), opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAccountNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, duplicateKeyError(err)
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to update account")
		return nil, err
	}
	return doc.toDomain(), nil
}

// SetUsernameByProfileID copies an onboarding username onto the account.
// An empty username is unset, as in buildAccountUpdate.
func (r *MongoAccountRepository) SetUsernameByProfileID(ctx context.Context, profileID, username string) error {
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"supabaseId": profileID},
		buildAccountUpdate(&domain.AccountUpdate{Username: &username}, time.Now().UTC()),
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrUsernameExists
		}
		return err
	}
	if result.MatchedCount == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Delete removes an account document.
func (r *MongoAccountRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrAccountNotFound
	}
	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to delete account")
		return err
	}
	if result.DeletedCount == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *MongoAccountRepository) findOne(ctx context.Context, filter bson.M) (*domain.Account, error) {
	var doc accountDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

// buildAccountUpdate turns a partial update into $set/$unset operators. An
// empty username is unset so the sparse unique index ignores the document.
func buildAccountUpdate(update *domain.AccountUpdate, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	unset := bson.M{}

	setString := func(field string, value *string) {
		if value != nil {
			set[field] = *value
		}
	}
	setString("name", update.Name)
	setString("email", update.Email)
	setString("password", update.PasswordHash)
	setString("phone", update.Phone)
	setString("github", update.Github)
	setString("instagram", update.Instagram)
	setString("x", update.X)
	setString("backgroundUrl", update.BackgroundURL)
	setString("description", update.Description)

	if update.Username != nil {
		if *update.Username == "" {
			unset["username"] = ""
		} else {
			set["username"] = *update.Username
		}
	}

	doc := bson.M{"$set": set}
	if len(unset) > 0 {
		doc["$unset"] = unset
	}
	return doc
}

func duplicateKeyError(err error) error {
	if strings.Contains(err.Error(), "username") {
		return ErrUsernameExists
	}
	return ErrEmailExists
}

func accountToDocument(a *domain.Account) *accountDocument {
	groups := make([]accountGroupDocument, 0, len(a.Groups))
	for _, g := range a.Groups {
		groups = append(groups, accountGroupDocument{Name: g.Name, Members: g.Members})
	}
	sessions := make([]studySessionDocument, 0, len(a.StudySessions))
	for _, s := range a.StudySessions {
		sessions = append(sessions, studySessionDocument{Topic: s.Topic, Duration: s.Duration, CompletedAt: s.CompletedAt})
	}

	return &accountDocument{
		Email:         a.Email,
		Username:      a.Username,
		Name:          a.Name,
		Password:      a.PasswordHash,
		Phone:         a.Phone,
		Github:        a.Github,
		Instagram:     a.Instagram,
		X:             a.X,
		BackgroundURL: a.BackgroundURL,
		Description:   a.Description,
		Groups:        groups,
		StudySessions: sessions,
		ProfileID:     a.ProfileID,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func (d *accountDocument) toDomain() *domain.Account {
	groups := make([]domain.AccountGroup, 0, len(d.Groups))
	for _, g := range d.Groups {
		groups = append(groups, domain.AccountGroup{Name: g.Name, Members: g.Members})
	}
	sessions := make([]domain.StudySession, 0, len(d.StudySessions))
	for _, s := range d.StudySessions {
		sessions = append(sessions, domain.StudySession{Topic: s.Topic, Duration: s.Duration, CompletedAt: s.CompletedAt})
	}

	return &domain.Account{
		ID:            d.ID.Hex(),
		Email:         d.Email,
		Username:      d.Username,
		Name:          d.Name,
		PasswordHash:  d.Password,
		Phone:         d.Phone,
		Github:        d.Github,
		Instagram:     d.Instagram,
		X:             d.X,
		BackgroundURL: d.BackgroundURL,
		Description:   d.Description,
		Groups:        groups,
		StudySessions: sessions,
		ProfileID:     d.ProfileID,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}
