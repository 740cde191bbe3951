package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/storyline/internal/model"
)

func TestFeeds_EmptyWhenFollowingNobody(t *testing.T) {
	api := newTestAPI(t)
	_, alice := api.register(t, "alice")
	api.createStory(t, alice, "mine")
	api.createPost(t, alice, "mine")

	for _, path := range []string{"/api/feed/stories", "/api/feed/posts", "/api/notifications"} {
		rec := api.get(t, path, alice)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, `[]`, rec.Body.String(), path)
	}
}

func TestStoriesFeed(t *testing.T) {
	api := newTestAPI(t)
	_, alice := api.register(t, "alice")
	bobID, bob := api.register(t, "bob")
	carolID, carol := api.register(t, "carol")
	_, dave := api.register(t, "dave")

	for _, id := range []string{bobID, carolID} {
		rec := api.do(t, http.MethodPost, "/api/users/"+id+"/follow", alice, nil, "")
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	old := api.createStory(t, bob, "old")
	api.now = api.now.Add(2 * time.Hour)
	fresh := api.createStory(t, carol, "fresh")
	api.createStory(t, dave, "not followed")

	rec := api.get(t, "/api/feed/stories", alice)
	require.Equal(t, http.StatusOK, rec.Code)

	var stories []model.Story
	decode(t, rec, &stories)
	require.Len(t, stories, 2)
	assert.Equal(t, fresh.ID, stories[0].ID)
	assert.Equal(t, old.ID, stories[1].ID)

	// bob's story expires first; no sweep needed.
	api.now = old.ExpiresAt
	rec = api.get(t, "/api/feed/stories", alice)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &stories)
	require.Len(t, stories, 1)
	assert.Equal(t, fresh.ID, stories[0].ID)
}

func TestPostsFeed(t *testing.T) {
	api := newTestAPI(t)
	_, alice := api.register(t, "alice")
	bobID, bob := api.register(t, "bob")
	_, carol := api.register(t, "carol")

	rec := api.do(t, http.MethodPost, "/api/users/"+bobID+"/follow", alice, nil, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	first := api.createPost(t, bob, "first")
	second := api.createPost(t, bob, "second")
	api.createPost(t, carol, "not followed")

	rec = api.get(t, "/api/feed/posts", alice)
	require.Equal(t, http.StatusOK, rec.Code)

	var posts []model.Post
	decode(t, rec, &posts)
	require.Len(t, posts, 2)
	assert.Equal(t, second.ID, posts[0].ID)
	assert.Equal(t, first.ID, posts[1].ID)

	rec = api.get(t, "/api/feed/posts?pageSize=1&page=2", alice)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &posts)
	require.Len(t, posts, 1)
	assert.Equal(t, first.ID, posts[0].ID)
}

func TestStoriesFeed_DeletedStoryDisappears(t *testing.T) {
	api := newTestAPI(t)
	_, alice := api.register(t, "alice")
	bobID, bob := api.register(t, "bob")

	rec := api.do(t, http.MethodPost, "/api/users/"+bobID+"/follow", alice, nil, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	story := api.createStory(t, bob, "soon gone")

	var stories []model.Story
	rec = api.get(t, "/api/feed/stories", alice)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &stories)
	require.Len(t, stories, 1)

	rec = api.do(t, http.MethodDelete, "/api/stories/"+story.ID, bob, nil, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{story.Media.ID}, api.files.deleted)

	rec = api.get(t, "/api/feed/stories", alice)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
