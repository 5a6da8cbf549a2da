package book

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_List(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRepo := NewMockRepository(ctrl)
	service := NewService(mockRepo)

	t.Run("returns books in repository order", func(t *testing.T) {
		books := []Book{{ID: 1, Name: "Dune"}, {ID: 2, Name: "Emma"}}
		mockRepo.EXPECT().FindAll(gomock.Any()).Return(books, nil)

		got, err := service.List(context.Background())
		require.NoError(t, err)
		assert.Equal(t, books, got)
	})

	t.Run("empty collection is not an error", func(t *testing.T) {
		mockRepo.EXPECT().FindAll(gomock.Any()).Return(nil, nil)

		got, err := service.List(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("deadline becomes timeout", func(t *testing.T) {
		mockRepo.EXPECT().FindAll(gomock.Any()).Return(nil, context.DeadlineExceeded)

		_, err := service.List(context.Background())
		assert.ErrorIs(t, err, ErrTimeout)
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("driver error becomes store unavailable", func(t *testing.T) {
		mockRepo.EXPECT().FindAll(gomock.Any()).Return(nil, errors.New("connection refused"))

		_, err := service.List(context.Background())
		assert.ErrorIs(t, err, ErrStoreUnavailable)
		assert.NotErrorIs(t, err, ErrTimeout)
	})
}

func TestService_Create(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRepo := NewMockRepository(ctrl)
	service := NewService(mockRepo)

	t.Run("success", func(t *testing.T) {
		in := Input{Name: "Dune", Description: "Sci-fi"}
		mockRepo.EXPECT().Insert(gomock.Any(), in).Return(Book{ID: 7, Name: "Dune", Description: "Sci-fi"}, nil)

		got, err := service.Create(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, int64(7), got.ID)
	})

	t.Run("name is trimmed before storing", func(t *testing.T) {
		mockRepo.EXPECT().Insert(gomock.Any(), Input{Name: "Dune", Description: ""}).Return(Book{ID: 8, Name: "Dune"}, nil)

		_, err := service.Create(context.Background(), Input{Name: "  Dune  "})
		require.NoError(t, err)
	})

	tests := []struct {
		name    string
		input   Input
		message string
	}{
		{name: "missing name", input: Input{Description: "x"}, message: "name is required"},
		{name: "blank name", input: Input{Name: "   "}, message: "name is required"},
		{name: "name too long", input: Input{Name: strings.Repeat("a", 256)}, message: "name must be at most 255 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Create(context.Background(), tt.input)
			require.ErrorIs(t, err, ErrInvalidInput)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "name", verr.Field)
			assert.Equal(t, tt.message, verr.Message)
		})
	}
}

func TestService_Update(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRepo := NewMockRepository(ctrl)
	service := NewService(mockRepo)

	t.Run("success", func(t *testing.T) {
		in := Input{Name: "Dune Messiah", Description: "Sequel"}
		mockRepo.EXPECT().Replace(gomock.Any(), int64(1), in).Return(Book{ID: 1, Name: in.Name, Description: in.Description}, nil)

		got, err := service.Update(context.Background(), 1, in)
		require.NoError(t, err)
		assert.Equal(t, Book{ID: 1, Name: "Dune Messiah", Description: "Sequel"}, got)
	})

	t.Run("not found", func(t *testing.T) {
		mockRepo.EXPECT().Replace(gomock.Any(), int64(99), gomock.Any()).Return(Book{}, ErrNotFound)

		_, err := service.Update(context.Background(), 99, Input{Name: "x"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty name never reaches the store", func(t *testing.T) {
		_, err := service.Update(context.Background(), 1, Input{Name: "", Description: "x"})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestService_Delete(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRepo := NewMockRepository(ctrl)
	service := NewService(mockRepo)

	t.Run("returns pre-delete snapshot", func(t *testing.T) {
		snapshot := Book{ID: 3, Name: "Emma", Description: "Austen"}
		mockRepo.EXPECT().Remove(gomock.Any(), int64(3)).Return(snapshot, nil)

		got, err := service.Delete(context.Background(), 3)
		require.NoError(t, err)
		assert.Equal(t, snapshot, got)
	})

	t.Run("not found", func(t *testing.T) {
		mockRepo.EXPECT().Remove(gomock.Any(), int64(3)).Return(Book{}, ErrNotFound)

		_, err := service.Delete(context.Background(), 3)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
