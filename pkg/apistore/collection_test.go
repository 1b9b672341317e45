package apistore_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ratio1/apistore_sdk_go/pkg/apistore"
	"github.com/Ratio1/apistore_sdk_go/pkg/apistore/mock"
)

func TestCollectionNoDepaginate(t *testing.T) {
	ctx := context.Background()
	s, m := newFixture(t)

	res, err := s.Find(ctx, "user", "", &apistore.FindOptions{NoDepaginate: true})
	require.NoError(t, err)
	col := res.(*apistore.Collection)
	assert.Equal(t, 2, col.Len())
	assert.NotEmpty(t, col.PageFor("next"))
	assert.False(t, s.HaveAll("user"), "a single page is not the whole listing")

	page, err := col.FollowPagination(ctx, "next")
	require.NoError(t, err)
	next := page.(*apistore.Collection)
	assert.Equal(t, []string{"3"}, ids(next.Records()))
	assert.Equal(t, 2, col.Len(), "following a cursor leaves the first page alone")

	require.NoError(t, col.Depaginate(ctx))
	assert.Equal(t, []string{"1", "2", "3"}, ids(col.Records()))
	assert.Empty(t, col.PageFor("next"))
	assert.Equal(t, 3, m.Calls(http.MethodGet, "user"), "first page, cursor and depagination")

	_, err = col.FollowPagination(ctx, "prev")
	assert.ErrorIs(t, err, apistore.ErrUnknownLink)
}

func TestDepaginateDetectsLoop(t *testing.T) {
	ctx := context.Background()
	m := mock.New()
	loop := map[string]any{
		"type":         "collection",
		"resourceType": "thing",
		"pagination":   map[string]any{"next": "things?page=2"},
		"data":         []any{},
	}
	m.Handle(http.MethodGet, "things", mock.Response{Body: loop})
	m.Handle(http.MethodGet, "things?page=2", mock.Response{Body: loop})
	s := apistore.New(apistore.WithBackend(m))

	_, err := s.Request(ctx, &apistore.RequestOptions{URL: "things"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pagination loop")
}

func TestDepaginateRejectsNonCollectionPage(t *testing.T) {
	ctx := context.Background()
	m := mock.New()
	m.Handle(http.MethodGet, "things", mock.Response{Body: map[string]any{
		"type":       "collection",
		"pagination": map[string]any{"next": "things?page=2"},
		"data":       []any{},
	}})
	m.Handle(http.MethodGet, "things?page=2", mock.Response{Body: map[string]any{"type": "thing", "id": "x"}})
	s := apistore.New(apistore.WithBackend(m))

	_, err := s.Request(ctx, &apistore.RequestOptions{URL: "things"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a collection")
}

func TestCollectionAccessors(t *testing.T) {
	ctx := context.Background()
	s, m := newFixture(t)
	res, err := s.Find(ctx, "user", "", nil)
	require.NoError(t, err)
	col := res.(*apistore.Collection)

	assert.Equal(t, "collection", col.Type())
	assert.Equal(t, "user", col.ResourceType())
	assert.Equal(t, "user", col.ActionFor("create"))
	assert.Same(t, s.GetByID("user", "2"), col.GetByID("2"))
	assert.Nil(t, col.GetByID("nope"))
	assert.True(t, col.Includes(s.GetByID("user", "1")))
	assert.Equal(t, "collection:user[3]", col.String())

	created, err := col.DoAction(ctx, "create", &apistore.RequestOptions{Body: map[string]any{"name": "erin"}})
	require.NoError(t, err)
	rec := created.(apistore.Model)
	assert.Same(t, rec, s.GetByID("user", rec.Base().ID()))
	assert.False(t, col.Includes(rec))
	col.Push(rec)
	assert.True(t, col.Includes(rec))
	assert.Equal(t, 1, m.Calls(http.MethodPost, "user"))

	_, err = col.DoAction(ctx, "nope", nil)
	assert.ErrorIs(t, err, apistore.ErrUnknownAction)

	raw, err := json.Marshal(col)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "user", out["resourceType"])
	assert.Len(t, out["data"], 4)
}

func TestRegistryNamesStores(t *testing.T) {
	reg := apistore.NewRegistry(apistore.WithDefaultPageSize(10))

	a := reg.NewStore()
	b := reg.NewStore()
	assert.Equal(t, "store-0", a.Name())
	assert.Equal(t, "store-1", b.Name())

	named := reg.Store("main")
	assert.Same(t, named, reg.Store("main", apistore.WithName("ignored")))
	assert.Equal(t, "main", named.Name())

	reg.Store("store-2")
	assert.Equal(t, "store-3", reg.NewStore().Name())
	assert.Equal(t, []string{"main", "store-0", "store-1", "store-2", "store-3"}, reg.Names())

	got, ok := reg.Lookup("store-1")
	require.True(t, ok)
	assert.Same(t, b, got)

	reg.Remove("store-1")
	_, ok = reg.Lookup("store-1")
	assert.False(t, ok)
	assert.NotSame(t, b, reg.Store("store-1"))
}
