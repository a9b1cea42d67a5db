package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

func TestUserServiceCreateAndList(t *testing.T) {
	db := setupServiceDB(t)
	activity := &recordingActivity{}
	svc := NewUserService(repository.NewUserRepository(db), testValidator(), activity, testLogger())
	ctx := context.Background()
	admin := Actor{ID: 1, Role: "admin"}

	created, err := svc.Create(ctx, admin, dto.UserCreateRequest{Name: "Sinta", Email: " Sinta@Example.com ", Role: "Teacher"})
	require.NoError(t, err)
	require.Equal(t, "sinta@example.com", created.Email)
	require.Equal(t, "teacher", created.Role)
	require.Equal(t, []string{"user.created"}, activity.actions())

	_, err = svc.Create(ctx, admin, dto.UserCreateRequest{Name: "Sinta 2", Email: "sinta@example.com", Role: "student"})
	require.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.Create(ctx, admin, dto.UserCreateRequest{Name: "X", Email: "nope", Role: "janitor"})
	require.Error(t, err)

	_, err = svc.Create(ctx, admin, dto.UserCreateRequest{Name: "Andi", Email: "andi@example.com", Role: "student"})
	require.NoError(t, err)

	teachers, err := svc.List(ctx, dto.UserListRequest{Role: "teacher"})
	require.NoError(t, err)
	require.Len(t, teachers.Items, 1)
	require.Equal(t, int64(1), teachers.Pagination.TotalItems)

	all, err := svc.List(ctx, dto.UserListRequest{})
	require.NoError(t, err)
	require.Len(t, all.Items, 2)
}
