package repo

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/savitara/auth-service/internal/domain"
	"github.com/savitara/auth-service/internal/log"
)

const (
	connectAttempts   = 5
	initialRetryDelay = time.Second
	maxRetryDelay     = 30 * time.Second
)

type Options struct {
	URI     string
	DB      string
	MinPool uint64
	MaxPool uint64
}

type Mongo struct {
	Client *mongo.Client
	DB     *mongo.Database
}

var _ Store = (*Mongo)(nil)

// Connect dials Mongo with bounded retry and exponential backoff, pings, and
// creates the indexes the store's invariants depend on. Fails for good after
// connectAttempts.
func Connect(ctx context.Context, o Options) (*Mongo, error) {
	delay := initialRetryDelay
	var lastErr error

	for attempt := 1; attempt <= connectAttempts; attempt++ {
		log.L().Info("connecting to mongo",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", connectAttempts),
			zap.String("uri", maskURI(o.URI)),
			zap.String("db", o.DB),
		)

		m, err := dial(ctx, o)
		if err == nil {
			if err = m.EnsureIndexes(ctx); err == nil {
				return m, nil
			}
			_ = m.Close(ctx)
		}
		lastErr = err
		log.L().Error("mongo connect failed", zap.Int("attempt", attempt), zap.Error(err))

		if attempt == connectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
	return nil, lastErr
}

func dial(ctx context.Context, o Options) (*Mongo, error) {
	cli, err := mongo.Connect(ctx, options.Client().
		ApplyURI(o.URI).
		SetMinPoolSize(o.MinPool).
		SetMaxPoolSize(o.MaxPool).
		SetServerSelectionTimeout(5*time.Second).
		SetConnectTimeout(10*time.Second).
		SetRetryWrites(true).
		SetRetryReads(true).
		SetHeartbeatInterval(10*time.Second).
		SetMaxConnIdleTime(30*time.Second),
	)
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(ctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, err
	}
	return &Mongo{Client: cli, DB: cli.Database(o.DB)}, nil
}

var credsRe = regexp.MustCompile(`://([^:/@]+):([^@]+)@`)

func maskURI(uri string) string {
	return credsRe.ReplaceAllString(uri, "://$1:***@")
}

func (m *Mongo) users() *mongo.Collection { return m.DB.Collection("users") }

func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := m.users().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_email"),
		},
		{
			Keys:    bson.D{{Key: "google_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("uniq_google_id"),
		},
		{
			Keys:    bson.D{{Key: "role", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("role_status"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetName("created_at"),
		},
	})
	if err != nil {
		return err
	}

	for _, role := range []domain.Role{domain.RoleGrihasta, domain.RoleAcharya} {
		_, err = m.DB.Collection(role.ProfileCollection()).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_user_id"),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// IsDup reports a Mongo unique-index violation (code 11000).
func IsDup(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	return false
}

func (m *Mongo) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.users.find_by_email")
	defer sp.Finish()

	var u domain.User
	err := m.users().FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		sp.SetTag("error", err)
		return nil, err
	}
	return &u, nil
}

func (m *Mongo) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.users.find_by_id")
	defer sp.Finish()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	var u domain.User
	err = m.users().FindOne(ctx, bson.M{"_id": oid}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		sp.SetTag("error", err)
		return nil, err
	}
	return &u, nil
}

func (m *Mongo) CreateUser(ctx context.Context, u *domain.User) error {
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.users.insert",
		tracer.Tag("role", string(u.Role)),
	)
	defer sp.Finish()

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.DeviceTokens == nil {
		u.DeviceTokens = []string{}
	}
	res, err := m.users().InsertOne(ctx, u)
	if err != nil {
		sp.SetTag("error", err)
		if IsDup(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		u.ID = oid
	}
	return nil
}

func (m *Mongo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	_, err = m.users().UpdateOne(ctx, bson.M{"_id": oid},
		bson.M{"$set": bson.M{"last_login": at.UTC(), "updated_at": at.UTC()}})
	return err
}

func (m *Mongo) UpdateOAuthLink(ctx context.Context, email, googleID, picture string, at time.Time) error {
	set := bson.M{
		"google_id":  googleID,
		"last_login": at.UTC(),
		"updated_at": at.UTC(),
	}
	if picture != "" {
		set["profile_picture"] = picture
	}
	_, err := m.users().UpdateOne(ctx, bson.M{"email": email}, bson.M{"$set": set})
	return err
}

func (m *Mongo) SetUserStatus(ctx context.Context, id string, st domain.Status) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	_, err = m.users().UpdateOne(ctx, bson.M{"_id": oid},
		bson.M{"$set": bson.M{"status": st, "updated_at": time.Now().UTC()}})
	return err
}

func (m *Mongo) HasProfile(ctx context.Context, userID string, role domain.Role) (bool, error) {
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.profiles.exists",
		tracer.Tag("role", string(role)),
	)
	defer sp.Finish()

	n, err := m.DB.Collection(role.ProfileCollection()).
		CountDocuments(ctx, bson.M{"user_id": userID}, options.Count().SetLimit(1))
	if err != nil {
		sp.SetTag("error", err)
		return false, err
	}
	return n > 0, nil
}

func (m *Mongo) CreateProfile(ctx context.Context, userID string, role domain.Role) error {
	_, err := m.DB.Collection(role.ProfileCollection()).InsertOne(ctx, domain.Profile{
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	})
	if IsDup(err) {
		return nil
	}
	return err
}

func (m *Mongo) CountUsers(ctx context.Context) (int64, error) {
	return m.users().CountDocuments(ctx, bson.M{})
}

func (m *Mongo) DeleteAllUsers(ctx context.Context) (int64, error) {
	res, err := m.users().DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return m.Client.Ping(ctx, nil)
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}
