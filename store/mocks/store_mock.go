package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/pdoodle/doodle/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) WriteStrokeBatch(ctx context.Context, records []models.StrokeRecord) ([]models.StrokeRecord, error) {
	args := m.Called(ctx, records)
	return args.Get(0).([]models.StrokeRecord), args.Error(1)
}

func (m *MockStore) DeleteStroke(ctx context.Context, roomCode string, strokeId string, userId string) error {
	args := m.Called(ctx, roomCode, strokeId, userId)
	return args.Error(0)
}

func (m *MockStore) DeleteRoomStrokes(ctx context.Context, roomCode string) error {
	args := m.Called(ctx, roomCode)
	return args.Error(0)
}

func (m *MockStore) GetRoomStrokes(ctx context.Context, roomCode string) ([]models.StrokeSnapshot, error) {
	args := m.Called(ctx, roomCode)
	return args.Get(0).([]models.StrokeSnapshot), args.Error(1)
}

func (m *MockStore) IncrementRoomStrokeCount(ctx context.Context, roomCode string, count int) error {
	args := m.Called(ctx, roomCode, count)
	return args.Error(0)
}
