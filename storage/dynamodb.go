package storage

import (
	"context"
	"fmt"
	"time"

	"contact-metrics/metrics"
	"contact-metrics/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
)

const (
	// maxBatchWrite is the BatchWriteItem request limit.
	maxBatchWrite = 25
	// maxUnprocessedRetries bounds resubmission of throttled batch items.
	maxUnprocessedRetries = 5
)

// DynamoDBStore implements Store using AWS DynamoDB
type DynamoDBStore struct {
	client *dynamodb.Client
	config DynamoConfig
	logger zerolog.Logger
}

// NewDynamoDBStore creates a new DynamoDB store
func NewDynamoDBStore(ctx context.Context, cfg DynamoConfig, logger zerolog.Logger) (*DynamoDBStore, error) {
	var client *dynamodb.Client

	if cfg.Mode == DynamoModeLocal {
		// LoadDefaultConfig probes the EC2 IMDS endpoint, which hangs when
		// static credentials are intended.
		client = dynamodb.New(dynamodb.Options{
			Region:       cfg.Region,
			BaseEndpoint: aws.String(cfg.Endpoint),
			Credentials:  credentials.NewStaticCredentialsProvider("local", "local", ""),
		})
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client = dynamodb.NewFromConfig(awsCfg)
	}

	store := &DynamoDBStore{
		client: client,
		config: cfg,
		logger: logger.With().Str("component", "store").Logger(),
	}

	if cfg.Mode == DynamoModeLocal {
		if err := CreateTablesIfNotExist(ctx, client, cfg, logger); err != nil {
			return nil, err
		}
	}

	logger.Info().
		Str("mode", string(cfg.Mode)).
		Str("region", cfg.Region).
		Msg("DynamoDB store initialized")

	return store, nil
}

// SaveReport writes the capacity rows and recurrence profiles of one run.
func (s *DynamoDBStore) SaveReport(ctx context.Context, runID string, report *models.Report, storedAt time.Time) error {
	capacity := CapacityItems(runID, report.Capacity, storedAt)
	capacityMaps := make([]map[string]dbtypes.AttributeValue, 0, len(capacity))
	for _, item := range capacity {
		av, err := attributevalue.MarshalMap(item)
		if err != nil {
			metrics.StoreErrorsTotal.WithLabelValues("marshal").Inc()
			return fmt.Errorf("failed to marshal capacity item: %w", err)
		}
		capacityMaps = append(capacityMaps, av)
	}

	recurrence := RecurrenceItems(runID, report.Recurrence.Profiles, storedAt)
	recurrenceMaps := make([]map[string]dbtypes.AttributeValue, 0, len(recurrence))
	for _, item := range recurrence {
		av, err := attributevalue.MarshalMap(item)
		if err != nil {
			metrics.StoreErrorsTotal.WithLabelValues("marshal").Inc()
			return fmt.Errorf("failed to marshal recurrence item: %w", err)
		}
		recurrenceMaps = append(recurrenceMaps, av)
	}

	if err := s.batchPut(ctx, s.config.CapacityTable, capacityMaps); err != nil {
		return err
	}
	if err := s.batchPut(ctx, s.config.RecurrenceTable, recurrenceMaps); err != nil {
		return err
	}

	s.logger.Info().
		Str("run_id", runID).
		Int("capacity_rows", len(capacityMaps)).
		Int("recurrence_rows", len(recurrenceMaps)).
		Msg("report persisted")
	return nil
}

func (s *DynamoDBStore) batchPut(ctx context.Context, tableName string, items []map[string]dbtypes.AttributeValue) error {
	for _, r := range batches(len(items), maxBatchWrite) {
		requests := make([]dbtypes.WriteRequest, 0, r[1]-r[0])
		for _, item := range items[r[0]:r[1]] {
			requests = append(requests, dbtypes.WriteRequest{
				PutRequest: &dbtypes.PutRequest{Item: item},
			})
		}

		pending := map[string][]dbtypes.WriteRequest{tableName: requests}
		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt > maxUnprocessedRetries {
				metrics.StoreErrorsTotal.WithLabelValues("batch_write").Inc()
				return fmt.Errorf("failed to write %s: %d items left unprocessed", tableName, len(pending[tableName]))
			}
			out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: pending,
			})
			if err != nil {
				metrics.StoreErrorsTotal.WithLabelValues("batch_write").Inc()
				return fmt.Errorf("failed to write %s: %w", tableName, err)
			}
			pending = out.UnprocessedItems
		}
	}
	return nil
}

// GetAgentHistory returns every persisted capacity row of one agent, oldest first.
func (s *DynamoDBStore) GetAgentHistory(ctx context.Context, agentID string) ([]CapacityItem, error) {
	keyCond := expression.Key("AgentID").Equal(expression.Value(normalizeAgent(agentID)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	var items []CapacityItem
	var lastKey map[string]dbtypes.AttributeValue
	for {
		input := &dynamodb.QueryInput{
			TableName:                 aws.String(s.config.CapacityTable),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		}
		if lastKey != nil {
			input.ExclusiveStartKey = lastKey
		}

		result, err := s.client.Query(ctx, input)
		if err != nil {
			metrics.StoreErrorsTotal.WithLabelValues("query").Inc()
			return nil, fmt.Errorf("failed to query agent history: %w", err)
		}

		var page []CapacityItem
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal agent history: %w", err)
		}
		items = append(items, page...)

		lastKey = result.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}
	return items, nil
}

// NewStore creates the appropriate store based on configuration
func NewStore(ctx context.Context, logger zerolog.Logger) (Store, error) {
	cfg := LoadDynamoConfig()

	switch cfg.Mode {
	case DynamoModeLocal, DynamoModeAWS:
		return NewDynamoDBStore(ctx, cfg, logger)
	default:
		logger.Info().Msg("DynamoDB disabled (DYNAMO_MODE=none)")
		return NewNoopStore(), nil
	}
}
