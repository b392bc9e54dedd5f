package dynamo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/pdoodle/doodle/models"
)

type DynamoArchiveStore struct {
	client    *dynamodb.Client
	tableName string
}

func NewDynamoArchiveStore(ctx context.Context, devMode bool, dynamodbEndpoint string, tableName string) (*DynamoArchiveStore, error) {
	client, err := newDynamoDBClient(context.Background(), devMode, dynamodbEndpoint)
	if err != nil {
		return nil, err
	}

	tables, err := getTables(client, ctx)
	if err != nil {
		return nil, err
	}

	foundTable := false
	for _, table := range tables {
		if table == tableName {
			foundTable = true
			break
		}
	}
	if !foundTable {
		return nil, fmt.Errorf("given table name '%s' not found in dynamodb", tableName)
	}

	return &DynamoArchiveStore{client: client, tableName: tableName}, nil
}

func (archive *DynamoArchiveStore) WriteStrokeBatch(ctx context.Context, records []models.StrokeRecord) ([]models.StrokeRecord, error) {
	var writeRequests []types.WriteRequest
	for _, record := range records {
		ds, err := strokeRecordToDynamo(record)
		if err != nil {
			return nil, err
		}
		avMap, err := attributevalue.MarshalMap(ds)
		if err != nil {
			return nil, fmt.Errorf("marshal error: %w", err)
		}

		writeRequests = append(writeRequests, types.WriteRequest{
			PutRequest: &types.PutRequest{
				Item: avMap,
			},
		})
	}

	unprocessed, err := writeBatchRequests[dynamoStroke](archive, ctx, writeRequests)

	unbatched := make([]models.StrokeRecord, 0, len(unprocessed))
	for _, u := range unprocessed {
		record, convErr := strokeRecordFromDynamo(u)
		if convErr != nil {
			continue
		}
		unbatched = append(unbatched, record)
	}

	return unbatched, err
}

func (archive *DynamoArchiveStore) DeleteStroke(ctx context.Context, roomCode string, strokeId string, userId string) error {
	return deleteItemWithCondition(archive, ctx, "ROOM#"+roomCode, strokeId, "UserId", userId)
}

// DeleteRoomStrokes purges a room's archive page by page. Deletion is
// throttled so a large room cannot monopolize table capacity.
func (archive *DynamoArchiveStore) DeleteRoomStrokes(ctx context.Context, roomCode string) error {
	return batchDeleteByPKThrottled(archive, ctx, "ROOM#"+roomCode, 250*time.Millisecond)
}

func (archive *DynamoArchiveStore) GetRoomStrokes(ctx context.Context, roomCode string) ([]models.StrokeSnapshot, error) {
	dynamoStrokes, err := queryAllByPK[dynamoStroke](archive, ctx, "ROOM#"+roomCode, true, maxArchivedStrokes)
	if err != nil {
		return []models.StrokeSnapshot{}, err
	}

	// SK is the client-assigned stroke id, so query order is not
	// chronological; sort by the completion timestamp instead.
	sort.Slice(dynamoStrokes, func(i, j int) bool {
		if dynamoStrokes[i].CompletedAt != dynamoStrokes[j].CompletedAt {
			return dynamoStrokes[i].CompletedAt < dynamoStrokes[j].CompletedAt
		}
		return dynamoStrokes[i].SK < dynamoStrokes[j].SK
	})

	strokes := make([]models.StrokeSnapshot, 0, len(dynamoStrokes))
	for _, ds := range dynamoStrokes {
		snap, convErr := strokeFromDynamo(ds)
		if convErr != nil {
			continue
		}
		strokes = append(strokes, snap)
	}

	return strokes, nil
}

func (archive *DynamoArchiveStore) IncrementRoomStrokeCount(ctx context.Context, roomCode string, count int) error {
	return incrementCounter(archive, ctx, "ROOM#"+roomCode, "META", "ArchivedStrokes", count)
}
