package storage

import (
	"context"
	"errors"
	"github.com/practice-sem-2/chat-client/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"testing"
	"time"
)

type GroupsStorageTestSuite struct {
	PostgresTestSuite
}

func (s *GroupsStorageTestSuite) SetupTest() {
	s.seedProfiles()
}

func (s *GroupsStorageTestSuite) TearDownTest() {
	s.truncate()
}

func TestGroupsStorageTestSuite(t *testing.T) {
	suite.Run(t, &GroupsStorageTestSuite{})
}

func (s *GroupsStorageTestSuite) Test_CreateGroup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := NewGroupsStorage(s.db)
	group, err := store.CreateGroup(ctx, models.GroupCreate{Name: "Book club", CreatedBy: aliceId})
	require.NoError(s.T(), err, "should correctly create group")
	assert.NotEmpty(s.T(), group.ID)
	assert.Equal(s.T(), "Book club", group.Name)
	require.NotNil(s.T(), group.CreatedBy)
	assert.Equal(s.T(), aliceId, *group.CreatedBy)
}

func (s *GroupsStorageTestSuite) Test_CreateGroup_CorrectErrorIfCreatorDoesNotExist() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := NewGroupsStorage(s.db)
	_, err := store.CreateGroup(ctx, models.GroupCreate{Name: "Ghosts", CreatedBy: "9e0f4c39-8e51-4b53-a0a3-10a3e3a8cb0e"})
	assert.ErrorIs(s.T(), err, ErrProfileNotFound)
}

func (s *GroupsStorageTestSuite) Test_AddGroupMember() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := NewGroupsStorage(s.db)
	group, err := store.CreateGroup(ctx, models.GroupCreate{Name: "Book club", CreatedBy: aliceId})
	require.NoError(s.T(), err)

	require.NoError(s.T(), store.AddGroupMember(ctx, group.ID, aliceId))
	assert.ErrorIs(s.T(), store.AddGroupMember(ctx, group.ID, aliceId), ErrAlreadyAMember)
	assert.ErrorIs(s.T(), store.AddGroupMember(ctx, "9e0f4c39-8e51-4b53-a0a3-10a3e3a8cb0e", aliceId), ErrGroupNotFound)
}

func (s *GroupsStorageTestSuite) Test_GetUserGroups() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := NewGroupsStorage(s.db)
	books, err := store.CreateGroup(ctx, models.GroupCreate{Name: "Books", CreatedBy: aliceId})
	require.NoError(s.T(), err)
	hiking, err := store.CreateGroup(ctx, models.GroupCreate{Name: "Hiking", CreatedBy: bobId})
	require.NoError(s.T(), err)

	require.NoError(s.T(), store.AddGroupMember(ctx, books.ID, aliceId))
	require.NoError(s.T(), store.AddGroupMember(ctx, hiking.ID, bobId))
	require.NoError(s.T(), store.AddGroupMember(ctx, hiking.ID, aliceId))

	groups, err := store.GetUserGroups(ctx, aliceId)
	require.NoError(s.T(), err)
	require.Len(s.T(), groups, 2)
	assert.ElementsMatch(s.T(), []string{books.ID, hiking.ID}, []string{groups[0].ID, groups[1].ID})

	groups, err = store.GetUserGroups(ctx, carolId)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), groups)
}

func (s *GroupsStorageTestSuite) Test_CreateGroup_Atomic() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	registry := NewRegistry(s.db, nil, &UpdatesStoreConfig{})

	err := registry.Atomic(ctx, func(r Registry) error {
		store := r.GetGroupsStore()
		group, err := store.CreateGroup(ctx, models.GroupCreate{Name: "Doomed", CreatedBy: aliceId})
		require.NoError(s.T(), err, "should correctly create group")

		err = store.AddGroupMember(ctx, group.ID, aliceId)
		require.NoError(s.T(), err)
		return errors.New("bang")
	})

	assert.Error(s.T(), err, "should return error")

	count := -1
	err = s.db.GetContext(ctx, &count, "SELECT count(*) FROM groups WHERE name = 'Doomed'")
	assert.NoError(s.T(), err, "rows count should be correctly scanned")
	assert.Equal(s.T(), 0, count, "whole transaction should be rolled back")
}
