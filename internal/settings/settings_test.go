package settings

import (
	"context"
	"testing"

	"lazychat/internal/database"
	"lazychat/internal/models"
	"lazychat/internal/saas"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	store := New(database.NewTest(t).DB)

	st, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Active)
	assert.False(t, st.LoggedIn())
	assert.True(t, st.ProductWebhooks)
	assert.True(t, st.OrderWebhooks)
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := New(database.NewTest(t).DB)

	in := Settings{
		AuthToken:       "tok",
		ShopID:          "42",
		ShopName:        "Corner Shop",
		Active:          true,
		ConsumerKey:     "ck_abc",
		PendingShops:    []PendingShop{{ID: "1", Name: "A", Token: "t1"}},
		ProductWebhooks: true,
		OrderWebhooks:   false,
	}
	require.NoError(t, store.Save(ctx, in))
	// second save must upsert rather than collide on the primary key
	require.NoError(t, store.Save(ctx, in))

	out, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	creds, err := store.Credentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, saas.Credentials{Token: "tok", ShopID: "42"}, creds)
}

func TestUpdateAndClear(t *testing.T) {
	ctx := context.Background()
	store := New(database.NewTest(t).DB)

	_, err := store.Update(ctx, func(st *Settings) error {
		st.AuthToken = "tok"
		st.ShopID = "9"
		st.Active = true
		st.ProductWebhooks = false
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, store.Clear(ctx))

	st, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.AuthToken)
	assert.False(t, st.Active)
	assert.False(t, st.ProductWebhooks, "webhook preference survives logout")
}

func TestLegacyFlagValues(t *testing.T) {
	ctx := context.Background()
	db := database.NewTest(t).DB
	require.NoError(t, db.Create(&models.Option{Name: KeyPluginActive, Value: "1"}).Error)
	require.NoError(t, db.Create(&models.Option{Name: KeyOrderWebhooks, Value: "garbage"}).Error)

	st, err := New(db).Load(ctx)
	require.NoError(t, err)
	assert.True(t, st.Active)
	assert.True(t, st.OrderWebhooks)
}

func TestFindPending(t *testing.T) {
	st := Settings{PendingShops: []PendingShop{{ID: "3", Name: "Three"}}}

	shop, err := st.FindPending("3")
	require.NoError(t, err)
	assert.Equal(t, "Three", shop.Name)

	_, err = st.FindPending("4")
	assert.ErrorIs(t, err, ErrNoPendingShop)
}

func TestCorruptPendingShops(t *testing.T) {
	ctx := context.Background()
	db := database.NewTest(t).DB
	require.NoError(t, db.Create(&models.Option{Name: KeyPendingShops, Value: "[{broken"}).Error)
	require.NoError(t, db.Create(&models.Option{Name: KeyOrderWebhooks, Value: "no"}).Error)
	store := New(db)

	_, err := store.Load(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), KeyPendingShops)

	_, err = store.Update(ctx, func(*Settings) error { return nil })
	require.Error(t, err)

	require.NoError(t, store.Clear(ctx), "a logout still recovers")
	st, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.PendingShops)
	assert.False(t, st.OrderWebhooks)
}
