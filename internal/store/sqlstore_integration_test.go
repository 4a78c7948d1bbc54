//go:build integration

package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/iliyamo/mall-admin/internal/database"
	"github.com/iliyamo/mall-admin/internal/repository"
	"github.com/iliyamo/mall-admin/internal/service"
	"github.com/iliyamo/mall-admin/internal/store"
)

func setupMySQL(t *testing.T) *store.SQLStore {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase("mall"),
		tcmysql.WithUsername("admin"),
		tcmysql.WithPassword("admin"),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "parseTime=true", "loc=UTC")
	require.NoError(t, err)
	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = database.Migrate(ctx, db)
	require.NoError(t, err)
	return store.NewSQLStore(db, repository.Schema())
}

func TestSQLStoreAgainstMySQL(t *testing.T) {
	st := setupMySQL(t)
	ctx := context.Background()

	t.Run("rows round trip", func(t *testing.T) {
		row, err := st.Insert(ctx, repository.TableCurrencies, store.Row{
			"name": "US Dollar", "code": "USD", "numeric_code": "840", "precision_digits": 2,
			"payment_enabled": true, "is_pivot": true, "rate": decimal.RequireFromString("1"),
		})
		require.NoError(t, err)
		assert.NotZero(t, row.ID())
		assert.False(t, row.Time("created_at").IsZero())

		_, err = st.Insert(ctx, repository.TableCurrencies, store.Row{
			"name": "Dup", "code": "USD", "numeric_code": "999", "precision_digits": 2,
			"payment_enabled": false, "is_pivot": false, "rate": decimal.RequireFromString("2"),
		})
		assert.True(t, store.IsDuplicate(err), "got %v", err)

		eur, err := st.Insert(ctx, repository.TableCurrencies, store.Row{
			"name": "Euro", "code": "EUR", "numeric_code": "978", "precision_digits": 2,
			"payment_enabled": true, "is_pivot": false, "rate": decimal.RequireFromString("0.9123456789"),
		})
		require.NoError(t, err)
		assert.Equal(t, "0.9123456789", eur.Decimal("rate").String())

		n, err := st.Count(ctx, repository.TableCurrencies, store.Where(store.Eq("is_pivot", true)))
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		_, err = st.Update(ctx, repository.TableCurrencies, store.Where(store.Eq("id", 9999)), store.Row{"name": "x"})
		assert.True(t, store.IsNotFound(err))
	})

	t.Run("null filters", func(t *testing.T) {
		_, err := st.InsertMany(ctx, repository.TableEventDetails, []store.Row{
			{"event_id": 1, "mall_id": 1},
			{"event_id": 1, "mall_id": 1, "boutique_id": 2},
			{"event_id": 1, "mall_id": 1, "boutique_id": 2, "designer_id": 3},
		})
		require.NoError(t, err)
		rows, err := st.Find(ctx, repository.TableEventDetails,
			store.Where(store.Eq("event_id", 1), store.IsNull("boutique_id")), store.FindOptions{})
		require.NoError(t, err)
		assert.Len(t, rows, 1)
		n, err := st.Delete(ctx, repository.TableEventDetails, store.Where(store.NotNull("designer_id")))
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	})

	t.Run("transactions roll back", func(t *testing.T) {
		boom := errors.New("boom")
		err := st.WithinTx(ctx, func(tx store.Store) error {
			if _, err := tx.Insert(ctx, repository.TableMalls, store.Row{"name": "ghost"}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		n, err := st.Count(ctx, repository.TableMalls, store.Where(store.Eq("name", "ghost")))
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("pivot change is atomic", func(t *testing.T) {
		m := service.NewCurrencyPivotManager(st, service.Options{Atomic: true})
		cs, err := m.List(ctx)
		require.NoError(t, err)
		var usd, eur uint64
		for _, c := range cs {
			switch c.Code {
			case "USD":
				usd = c.ID
			case "EUR":
				eur = c.ID
			}
		}
		out, err := m.SetPivot(ctx, eur, map[uint64]decimal.Decimal{usd: decimal.RequireFromString("1.0961")})
		require.NoError(t, err)
		require.Len(t, out, 2)

		p, err := m.CurrentPivot(ctx)
		require.NoError(t, err)
		assert.Equal(t, "EUR", p.Code)
		assert.True(t, p.Rate.Equal(decimal.NewFromInt(1)))
	})
}
