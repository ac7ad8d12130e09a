package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	apperrors "genstudio/internal/errors"
	"genstudio/internal/model"
)

func TestUserService_GetUser(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name    string
		user    *model.User
		repoErr error
		wantErr error
	}{
		{name: "found", user: &model.User{ID: id, Email: "a@b.com"}},
		{name: "not found", repoErr: gorm.ErrRecordNotFound, wantErr: apperrors.ErrUserNotFound},
		{name: "repository failure", repoErr: errors.New("connection reset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockUserRepository)
			repo.On("FindByID", mock.Anything, id).Return(tt.user, tt.repoErr)
			svc := NewUserService(repo, nil)

			user, err := svc.GetUser(context.Background(), id)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.repoErr != nil:
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.repoErr)
				assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
			default:
				require.NoError(t, err)
				assert.Equal(t, "a@b.com", user.Email)
			}
			repo.AssertExpectations(t)
		})
	}
}
