package dynamo

import (
	"encoding/json"
	"strings"

	"github.com/pdoodle/doodle/models"
)

// A room's archive is capped; anything beyond this is simply not served back.
const maxArchivedStrokes int32 = 2000

type dynamoStroke struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	UserId      string `dynamodbav:"UserId"`
	CompletedAt int64  `dynamodbav:"CompletedAt"`
	Stroke      []byte `dynamodbav:"Stroke"`
}

// Map domain StrokeRecord -> Dynamo. The snapshot is stored as a JSON blob;
// the attributes the store itself needs (owner for conditional deletes,
// completion time for ordering) are lifted into their own fields.
func strokeRecordToDynamo(sr models.StrokeRecord) (dynamoStroke, error) {
	blob, err := json.Marshal(sr.Stroke)
	if err != nil {
		return dynamoStroke{}, err
	}

	return dynamoStroke{
		PK:          "ROOM#" + sr.RoomCode,
		SK:          sr.Stroke.StrokeId,
		UserId:      sr.Stroke.UserId,
		CompletedAt: sr.CompletedAt,
		Stroke:      blob,
	}, nil
}

// Map Dynamo -> domain StrokeRecord
func strokeRecordFromDynamo(ds dynamoStroke) (models.StrokeRecord, error) {
	snap, err := strokeFromDynamo(ds)
	if err != nil {
		return models.StrokeRecord{}, err
	}

	return models.StrokeRecord{
		RoomCode:    strings.TrimPrefix(ds.PK, "ROOM#"),
		Stroke:      snap,
		CompletedAt: ds.CompletedAt,
	}, nil
}

func strokeFromDynamo(ds dynamoStroke) (models.StrokeSnapshot, error) {
	var snap models.StrokeSnapshot
	if err := json.Unmarshal(ds.Stroke, &snap); err != nil {
		return models.StrokeSnapshot{}, err
	}
	snap.StrokeId = ds.SK
	snap.UserId = ds.UserId
	return snap, nil
}
