package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mamadbah2/kurban/internal/domain/models"
)

const reportsCollection = "daily_reports"

// MongoDBRepository stores animals in a MongoDB collection and publishes
// changes through a change stream. Change streams need a replica set.
type MongoDBRepository struct {
	client   *mongo.Client
	dbName   string
	collName string
	now      func() time.Time
	logger   *zap.Logger

	retryDelay    time.Duration
	maxRetryDelay time.Duration
}

// NewMongoDBRepository connects, pings and prepares the indexes.
func NewMongoDBRepository(ctx context.Context, uri, dbName, collName string, logger *zap.Logger) (*MongoDBRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	repo := &MongoDBRepository{
		client:   client,
		dbName:   dbName,
		collName: collName,
		now:      time.Now,
		logger:   logger,

		retryDelay:    time.Second,
		maxRetryDelay: 30 * time.Second,
	}

	if err := repo.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return repo, nil
}

type animalDocument struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty"`
	Type          models.AnimalType   `bson:"type"`
	AnimalNumber  int                 `bson:"animalNumber"`
	Name          string              `bson:"name"`
	TotalPrice    float64             `bson:"totalPrice"`
	BuyingPrice   *float64            `bson:"buyingPrice"`
	TotalShares   int                 `bson:"totalShares"`
	DeliveryType  models.DeliveryType `bson:"deliveryType"`
	SoldShares    int                 `bson:"soldShares"`
	Shares        []models.Share      `bson:"shares"`
	PhotoURL      string              `bson:"photoUrl"`
	QueueNo       string              `bson:"queueNo"`
	SlaughterTime string              `bson:"slaughterTime"`
	Notes         string              `bson:"notes"`
	CreatedAt     time.Time           `bson:"createdAt"`
	Revision      int64               `bson:"revision"`
}

func (d animalDocument) toModel() models.Animal {
	shares := d.Shares
	if shares == nil {
		shares = []models.Share{}
	}
	return models.Animal{
		ID:            d.ID.Hex(),
		Type:          d.Type,
		AnimalNumber:  d.AnimalNumber,
		Name:          d.Name,
		TotalPrice:    d.TotalPrice,
		BuyingPrice:   d.BuyingPrice,
		TotalShares:   d.TotalShares,
		DeliveryType:  d.DeliveryType,
		SoldShares:    d.SoldShares,
		Shares:        shares,
		PhotoURL:      d.PhotoURL,
		QueueNo:       d.QueueNo,
		SlaughterTime: d.SlaughterTime,
		Notes:         d.Notes,
		CreatedAt:     d.CreatedAt,
		Revision:      d.Revision,
	}
}

func inputFields(in models.AnimalInput) bson.M {
	return bson.M{
		"type":          in.Type,
		"animalNumber":  in.AnimalNumber,
		"name":          in.Name,
		"totalPrice":    in.TotalPrice,
		"buyingPrice":   in.BuyingPrice,
		"totalShares":   in.TotalShares,
		"deliveryType":  in.DeliveryType,
		"photoUrl":      in.PhotoURL,
		"queueNo":       in.QueueNo,
		"slaughterTime": in.SlaughterTime,
		"notes":         in.Notes,
	}
}

func (r *MongoDBRepository) animals() *mongo.Collection {
	return r.client.Database(r.dbName).Collection(r.collName)
}

func (r *MongoDBRepository) ensureIndexes(ctx context.Context) error {
	_, err := r.animals().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "type", Value: 1}, {Key: "animalNumber", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("type_number_unique"),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("created_desc"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create animal indexes: %w", err)
	}
	return nil
}

func objectID(op, id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, &models.StoreError{Op: op, ID: id, Err: models.ErrNotFound}
	}
	return oid, nil
}

func storeErr(op, id string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		err = models.ErrDuplicateNumber
	}
	return &models.StoreError{Op: op, ID: id, Err: err}
}

// Subscribe pushes the whole inventory, newest first, now and after every
// change in the collection. A broken change stream is reopened, resuming where
// it stopped when the server still has the position, followed by a full
// reload. The returned function stops the stream and waits for the watcher to
// exit; it must not be called from inside fn.
func (r *MongoDBRepository) Subscribe(ctx context.Context, fn func([]models.Animal)) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)

	// open the stream before the first read so no change falls in between
	stream, err := r.animals().Watch(subCtx, mongo.Pipeline{})
	if err != nil {
		cancel()
		return nil, storeErr("subscribe", "", err)
	}

	initial, err := r.FindAll(subCtx)
	if err != nil {
		_ = stream.Close(context.Background())
		cancel()
		return nil, err
	}
	fn(initial)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			resumeToken := r.follow(subCtx, stream, fn)
			if subCtx.Err() != nil {
				return
			}

			stream = r.reopen(subCtx, resumeToken)
			if stream == nil {
				return
			}

			animals, err := r.FindAll(subCtx)
			if err != nil {
				if subCtx.Err() == nil {
					r.logger.Error("reload after reconnect failed", zap.Error(err))
				}
				continue
			}
			fn(animals)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

// follow reloads the inventory after every event until the stream ends, then
// closes it and returns the last resume token.
func (r *MongoDBRepository) follow(ctx context.Context, stream *mongo.ChangeStream, fn func([]models.Animal)) bson.Raw {
	defer func() { _ = stream.Close(context.Background()) }()

	for stream.Next(ctx) {
		// drain events already buffered so a burst costs a single read
		for stream.RemainingBatchLength() > 0 && stream.Next(ctx) {
		}

		animals, err := r.FindAll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error("reload after change failed", zap.Error(err))
			continue
		}
		fn(animals)
	}

	if ctx.Err() == nil {
		if err := stream.Err(); err != nil {
			r.logger.Warn("animal change stream broke, reconnecting", zap.Error(err))
		} else {
			r.logger.Warn("animal change stream ended, reconnecting")
		}
	}
	return stream.ResumeToken()
}

// reopen watches the collection again, backing off between failed attempts.
// It returns nil once ctx ends.
func (r *MongoDBRepository) reopen(ctx context.Context, resumeToken bson.Raw) *mongo.ChangeStream {
	delay := r.retryDelay
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		if resumeToken != nil {
			stream, err := r.animals().Watch(ctx, mongo.Pipeline{}, options.ChangeStream().SetResumeAfter(resumeToken))
			if err == nil {
				r.logger.Info("animal change stream resumed")
				return stream
			}
			// the position may be gone from the oplog or the stream was invalidated
			r.logger.Warn("resume failed, starting a fresh change stream", zap.Error(err))
			resumeToken = nil
		}

		stream, err := r.animals().Watch(ctx, mongo.Pipeline{})
		if err == nil {
			r.logger.Info("animal change stream reopened")
			return stream
		}
		if ctx.Err() != nil {
			return nil
		}

		r.logger.Error("reopening change stream failed", zap.Duration("retry_in", delay), zap.Error(err))
		delay *= 2
		if delay > r.maxRetryDelay {
			delay = r.maxRetryDelay
		}
	}
}

// Create inserts a new animal with no shares sold and returns its id.
func (r *MongoDBRepository) Create(ctx context.Context, in models.AnimalInput) (string, error) {
	doc := inputFields(in)
	doc["soldShares"] = 0
	doc["shares"] = []models.Share{}
	doc["createdAt"] = r.now().UTC()
	doc["revision"] = int64(1)

	res, err := r.animals().InsertOne(ctx, doc)
	if err != nil {
		return "", storeErr("create", "", err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", &models.StoreError{Op: "create", Err: fmt.Errorf("unexpected inserted id %v", res.InsertedID)}
	}
	return oid.Hex(), nil
}

// Update overwrites the editable fields of an animal in one conditional write
// that only applies while the animal is still at revision.
func (r *MongoDBRepository) Update(ctx context.Context, id string, revision int64, in models.AnimalInput) error {
	oid, err := objectID("update", id)
	if err != nil {
		return err
	}

	res, err := r.animals().UpdateOne(ctx, revisionFilter(oid, revision), bson.M{
		"$set": inputFields(in),
		"$inc": bson.M{"revision": 1},
	})
	if err != nil {
		return storeErr("update", id, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	return r.missedWrite(ctx, "update", id, oid)
}

// UpdateShares replaces shares and soldShares in one conditional write that
// only applies while the animal is still at revision.
func (r *MongoDBRepository) UpdateShares(ctx context.Context, id string, revision int64, shares []models.Share) error {
	oid, err := objectID("update shares", id)
	if err != nil {
		return err
	}
	if shares == nil {
		shares = []models.Share{}
	}

	res, err := r.animals().UpdateOne(ctx, revisionFilter(oid, revision), bson.M{
		"$set": bson.M{"shares": shares, "soldShares": len(shares)},
		"$inc": bson.M{"revision": 1},
	})
	if err != nil {
		return storeErr("update shares", id, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	return r.missedWrite(ctx, "update shares", id, oid)
}

func revisionFilter(oid primitive.ObjectID, revision int64) bson.M {
	if revision == 0 {
		// documents written before revisions existed
		return bson.M{"_id": oid, "$or": bson.A{
			bson.M{"revision": 0},
			bson.M{"revision": bson.M{"$exists": false}},
		}}
	}
	return bson.M{"_id": oid, "revision": revision}
}

// missedWrite tells a deleted animal from one that moved to another revision.
func (r *MongoDBRepository) missedWrite(ctx context.Context, op, id string, oid primitive.ObjectID) error {
	count, err := r.animals().CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return storeErr(op, id, err)
	}
	if count == 0 {
		return &models.StoreError{Op: op, ID: id, Err: models.ErrNotFound}
	}
	return &models.StoreError{Op: op, ID: id, Err: models.ErrRevisionConflict}
}

// Delete removes an animal permanently.
func (r *MongoDBRepository) Delete(ctx context.Context, id string) error {
	oid, err := objectID("delete", id)
	if err != nil {
		return err
	}

	res, err := r.animals().DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return storeErr("delete", id, err)
	}
	if res.DeletedCount == 0 {
		return &models.StoreError{Op: "delete", ID: id, Err: models.ErrNotFound}
	}
	return nil
}

// Get loads one animal.
func (r *MongoDBRepository) Get(ctx context.Context, id string) (models.Animal, error) {
	oid, err := objectID("get", id)
	if err != nil {
		return models.Animal{}, err
	}

	var doc animalDocument
	if err := r.animals().FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Animal{}, &models.StoreError{Op: "get", ID: id, Err: models.ErrNotFound}
		}
		return models.Animal{}, storeErr("get", id, err)
	}
	return doc.toModel(), nil
}

// FindAll reads the whole inventory, newest first.
func (r *MongoDBRepository) FindAll(ctx context.Context) ([]models.Animal, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.animals().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, storeErr("find all", "", err)
	}
	defer cursor.Close(ctx)

	var docs []animalDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, storeErr("find all", "", err)
	}

	animals := make([]models.Animal, 0, len(docs))
	for _, doc := range docs {
		animals = append(animals, doc.toModel())
	}
	return animals, nil
}

// SaveDailyReport saves a daily report to the database.
func (r *MongoDBRepository) SaveDailyReport(ctx context.Context, report models.DailyReport) error {
	collection := r.client.Database(r.dbName).Collection(reportsCollection)
	_, err := collection.InsertOne(ctx, report)
	if err != nil {
		return fmt.Errorf("failed to insert daily report: %w", err)
	}
	return nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
