// Package mongodb implements store.Store on MongoDB. Documents use the
// camelCase field names of the users and meetings collections.
package mongodb

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
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"meeting-scheduler-api/internal/model"
	"meeting-scheduler-api/internal/store"
)

const DefaultDatabase = "meeting-scheduler"

type Store struct {
	client   *mongo.Client
	users    *mongo.Collection
	meetings *mongo.Collection
}

var _ store.Store = (*Store)(nil)

// Open connects to uri and ensures indexes exist. The database is taken from
// the URI path, falling back to DefaultDatabase.
func Open(ctx context.Context, uri string) (*Store, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return nil, fmt.Errorf("mongodb uri: %w", err)
	}
	dbName := cs.Database
	if dbName == "" {
		dbName = DefaultDatabase
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	s := New(client.Database(dbName))
	s.client = client
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// New wraps an existing database handle. Close is a no-op for stores built this way.
func New(db *mongo.Database) *Store {
	return &Store{
		users:    db.Collection("users"),
		meetings: db.Collection("meetings"),
	}
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("users index: %w", err)
	}
	_, err = s.meetings.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "startTime", Value: 1}}},
		{Keys: bson.D{{Key: "createdBy", Value: 1}}},
		{Keys: bson.D{{Key: "attendees", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("meetings index: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.users.Database().Client().Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

type userDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email"`
	Password  string             `bson:"password"`
	ImageURL  *string            `bson:"imageUrl,omitempty"`
	Address   string             `bson:"address"`
	DOB       *time.Time         `bson:"dob,omitempty"`
	Role      string             `bson:"role"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d *userDoc) model() *model.User {
	u := &model.User{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.Password,
		ImageURL:     d.ImageURL,
		Address:      d.Address,
		DOB:          d.DOB,
		Role:         model.Role(d.Role),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if u.DOB != nil {
		t := u.DOB.UTC()
		u.DOB = &t
	}
	return u
}

type meetingDoc struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty"`
	Title       string               `bson:"title"`
	Description string               `bson:"description"`
	StartTime   time.Time            `bson:"startTime"`
	EndTime     time.Time            `bson:"endTime"`
	Attendees   []primitive.ObjectID `bson:"attendees"`
	CreatedBy   primitive.ObjectID   `bson:"createdBy"`
	CreatedAt   time.Time            `bson:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt"`
}

func (d *meetingDoc) model() *model.Meeting {
	m := &model.Meeting{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		StartTime:   d.StartTime.UTC(),
		EndTime:     d.EndTime.UTC(),
		CreatedBy:   d.CreatedBy.Hex(),
		AttendeeIDs: make([]string, len(d.Attendees)),
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
	for i, a := range d.Attendees {
		m.AttendeeIDs[i] = a.Hex()
	}
	return m
}

func objectIDs(ids []string) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			out = append(out, oid)
		}
	}
	return out
}

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	doc := userDoc{
		ID:        primitive.NewObjectID(),
		Name:      u.Name,
		Email:     strings.ToLower(u.Email),
		Password:  u.PasswordHash,
		ImageURL:  u.ImageURL,
		Address:   u.Address,
		DOB:       u.DOB,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicateEmail
		}
		return fmt.Errorf("mongodb.CreateUser: %w", err)
	}
	u.ID = doc.ID.Hex()
	return nil
}

func (s *Store) findUser(ctx context.Context, filter bson.M, op string) (*model.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return doc.model(), nil
}

func (s *Store) UserByID(ctx context.Context, id string) (*model.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrNotFound
	}
	return s.findUser(ctx, bson.M{"_id": oid}, "mongodb.UserByID")
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findUser(ctx, bson.M{"email": strings.ToLower(email)}, "mongodb.UserByEmail")
}

func (s *Store) UsersByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	oids := objectIDs(ids)
	if len(oids) == 0 {
		return nil, nil
	}
	return s.findUsers(ctx, bson.M{"_id": bson.M{"$in": oids}}, nil)
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.findUsers(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (s *Store) findUsers(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]model.User, error) {
	cur, err := s.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb.findUsers: %w", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongodb.findUsers: %w", err)
	}
	out := make([]model.User, len(docs))
	for i := range docs {
		out[i] = *docs[i].model()
	}
	return out, nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, p model.ProfileUpdate) (*model.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrNotFound
	}

	set, unset := bson.M{}, bson.M{}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Address != nil {
		set["address"] = *p.Address
	}
	if p.ImageURL != nil {
		if *p.ImageURL == "" {
			unset["imageUrl"] = ""
		} else {
			set["imageUrl"] = *p.ImageURL
		}
	}
	if p.ClearDOB {
		unset["dob"] = ""
	} else if p.DOB != nil {
		set["dob"] = *p.DOB
	}
	if !p.UpdatedAt.IsZero() {
		set["updatedAt"] = p.UpdatedAt
	}

	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if len(update) == 0 {
		return s.UserByID(ctx, id)
	}

	var doc userDoc
	err = s.users.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("mongodb.UpdateUser: %w", err)
	}
	return doc.model(), nil
}

func (s *Store) CreateMeeting(ctx context.Context, m *model.Meeting) error {
	creator, err := primitive.ObjectIDFromHex(m.CreatedBy)
	if err != nil {
		return fmt.Errorf("mongodb.CreateMeeting: creator id: %w", err)
	}
	doc := meetingDoc{
		ID:          primitive.NewObjectID(),
		Title:       m.Title,
		Description: m.Description,
		StartTime:   m.StartTime,
		EndTime:     m.EndTime,
		Attendees:   objectIDs(m.AttendeeIDs),
		CreatedBy:   creator,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if _, err := s.meetings.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongodb.CreateMeeting: %w", err)
	}
	m.ID = doc.ID.Hex()
	return nil
}

func (s *Store) MeetingByID(ctx context.Context, id string) (*model.Meeting, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrNotFound
	}
	var doc meetingDoc
	if err := s.meetings.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("mongodb.MeetingByID: %w", err)
	}
	return doc.model(), nil
}

func (s *Store) ListMeetings(ctx context.Context, f model.MeetingFilter) ([]model.Meeting, error) {
	filter := bson.M{}
	if f.ParticipantID != "" {
		oid, err := primitive.ObjectIDFromHex(f.ParticipantID)
		if err != nil {
			return nil, nil
		}
		filter["$or"] = bson.A{bson.M{"createdBy": oid}, bson.M{"attendees": oid}}
	}

	cur, err := s.meetings.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "startTime", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongodb.ListMeetings: %w", err)
	}
	var docs []meetingDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongodb.ListMeetings: %w", err)
	}
	out := make([]model.Meeting, len(docs))
	for i := range docs {
		out[i] = *docs[i].model()
	}
	return out, nil
}

func (s *Store) DeleteMeeting(ctx context.Context, id string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}
	res, err := s.meetings.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, fmt.Errorf("mongodb.DeleteMeeting: %w", err)
	}
	return res.DeletedCount > 0, nil
}
