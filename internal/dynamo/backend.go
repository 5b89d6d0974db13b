// Package dynamo implements a board store on Amazon DynamoDB.
//
// The whole board snapshot is stored as a single item keyed by board id.
// Writes are conditional on the stored revision being older, so a slow
// writer never overwrites a newer board.
//
// Table requirements:
//   - PK: board_id (string)
package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

// API is the subset of *dynamodb.Client used by the backend.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// boardItem is the stored form of a snapshot.
type boardItem struct {
	BoardID  string `dynamodbav:"board_id"`
	Revision int64  `dynamodbav:"revision"`
	Payload  string `dynamodbav:"payload"`
	SavedAt  string `dynamodbav:"saved_at"`
}

// Backend implements types.Backend on a DynamoDB table.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	api      API
	newAPI   func(ctx context.Context, cfg types.Config) (API, error)
	table    string
	boardID  string
	now      func() time.Time
}

// NewBackend creates a detached DynamoDB backend. Attach builds the client
// from the config and the environment.
func NewBackend() *Backend {
	return &Backend{newAPI: newClient, now: time.Now}
}

// NewBackendWithAPI creates a detached backend that uses api instead of
// building a client on Attach.
func NewBackendWithAPI(api API) *Backend {
	return &Backend{
		newAPI: func(context.Context, types.Config) (API, error) { return api, nil },
		now:    time.Now,
	}
}

// Attach validates config and connects the client.
func (b *Backend) Attach(cfg types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	api, err := b.newAPI(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("creating dynamodb client: %w", err)
	}
	b.api = api
	b.table = cfg.GetDynamoTable()
	b.boardID = cfg.GetDynamoBoardID()
	b.attached = true
	return nil
}

// Detach releases the client. Idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.api = nil
	b.attached = false
	return nil
}

// EnsureTable creates the board table with on-demand billing when it does
// not exist yet.
func (b *Backend) EnsureTable(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return types.ErrBackendDetached
	}

	_, err := b.api.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(b.table),
		AttributeDefinitions: []ddbtypes.AttributeDefinition{
			{AttributeName: aws.String("board_id"), AttributeType: ddbtypes.ScalarAttributeTypeS},
		},
		KeySchema: []ddbtypes.KeySchemaElement{
			{AttributeName: aws.String("board_id"), KeyType: ddbtypes.KeyTypeHash},
		},
		BillingMode: ddbtypes.BillingModePayPerRequest,
	})
	var inUse *ddbtypes.ResourceInUseException
	if errors.As(err, &inUse) {
		return nil
	}
	return err
}

// Save writes snap unless the table already holds the same or a newer
// revision, in which case it returns nil.
func (b *Backend) Save(ctx context.Context, snap types.Snapshot) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return types.ErrBackendDetached
	}

	snap.Change = nil
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	av, err := attributevalue.MarshalMap(boardItem{
		BoardID:  b.boardID,
		Revision: snap.Revision,
		Payload:  string(payload),
		SavedAt:  b.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	_, err = b.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(b.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(#board_id) OR #revision < :revision"),
		ExpressionAttributeNames: map[string]string{
			"#board_id": "board_id",
			"#revision": "revision",
		},
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":revision": &ddbtypes.AttributeValueMemberN{Value: strconv.FormatInt(snap.Revision, 10)},
		},
	})
	var stale *ddbtypes.ConditionalCheckFailedException
	if errors.As(err, &stale) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("putting board %s: %w", b.boardID, err)
	}
	return nil
}

// Load returns the stored snapshot, or nil when the board has never been
// saved.
func (b *Backend) Load(ctx context.Context) (*types.Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrBackendDetached
	}

	out, err := b.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(b.table),
		Key: map[string]ddbtypes.AttributeValue{
			"board_id": &ddbtypes.AttributeValueMemberS{Value: b.boardID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting board %s: %w", b.boardID, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var it boardItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidData, err)
	}
	var snap types.Snapshot
	if err := json.Unmarshal([]byte(it.Payload), &snap); err != nil {
		return nil, fmt.Errorf("%w: board payload: %v", types.ErrInvalidData, err)
	}
	snap.Revision = it.Revision
	if snap.Records == nil {
		snap.Records = map[string]types.Record{}
	}
	return &snap, nil
}

// newClient builds a DynamoDB client. Config values win over the
// environment (AWS_REGION, DYNAMODB_ENDPOINT, AWS_ACCESS_KEY_ID,
// AWS_SECRET_ACCESS_KEY). Static credentials default to "local" so the
// client works against DynamoDB Local.
func newClient(ctx context.Context, cfg types.Config) (API, error) {
	region := cfg.DynamoDB.Region
	if region == "" {
		region = getenvDefault("AWS_REGION", "us-east-1")
	}
	endpoint := cfg.DynamoDB.Endpoint
	if endpoint == "" {
		endpoint = os.Getenv("DYNAMODB_ENDPOINT")
	}

	creds := credentials.NewStaticCredentialsProvider(
		getenvDefault("AWS_ACCESS_KEY_ID", "local"),
		getenvDefault("AWS_SECRET_ACCESS_KEY", "local"),
		"",
	)
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
