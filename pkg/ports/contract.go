package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/itpbot/pkg/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	key := "contract-test-session-" + time.Now().Format("20060102150405")
	now := time.Now().UTC().Truncate(time.Second)

	t.Run("Save and Load", func(t *testing.T) {
		year := 2020
		session := domain.NewSession(key, now).Advance(domain.AwaitingModel{
			Maker: "toyota",
			Year:  &year,
			Cars: []domain.Vehicle{
				{ID: "a", Maker: "toyota", Model: "Corolla", Year: 2020, FuelType: domain.FuelHybrid},
				{ID: "b", Maker: "toyota", Model: "RAV4", Year: 2020, FuelType: domain.FuelHybrid},
			},
		}, now)

		err := store.Save(ctx, key, session)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, domain.StepModelSelection, loaded.Step())

		stage, ok := loaded.Stage.(domain.AwaitingModel)
		require.True(t, ok, "stage type must survive persistence, got %T", loaded.Stage)
		assert.Equal(t, "toyota", stage.Maker)
		require.NotNil(t, stage.Year)
		assert.Equal(t, 2020, *stage.Year)
		require.Len(t, stage.Cars, 2)
		assert.Equal(t, "RAV4", stage.Cars[1].Model)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+key)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, key, domain.NewSession(key, now)))
		require.NoError(t, store.Save(ctx, key, domain.NewSession(key, now).Advance(domain.AwaitingYear{Maker: "seat"}, now)))

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, domain.AwaitingYear{Maker: "seat"}, loaded.Stage)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, key, domain.NewSession(key, now))
		require.NoError(t, err)

		err = store.Delete(ctx, key)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, key)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, key), "deleting a missing session is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := key + "-1"
		id2 := key + "-2"
		_ = store.Save(ctx, id1, domain.NewSession(id1, now))
		_ = store.Save(ctx, id2, domain.NewSession(id2, now))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}

// ContractVehicles is the fixture used by RunCatalogContract.
func ContractVehicles() []domain.Vehicle {
	return []domain.Vehicle{
		{Maker: " Toyota ", Model: "Corolla", Year: 2020, FiscalPower: 11.5, FiscalValue: 18000, FuelType: domain.FuelHybrid},
		{Maker: "toyota", Model: "Yaris", Year: 2019, FiscalPower: 9, FiscalValue: 11000, FuelType: domain.FuelGasoline},
		{Maker: "TOYOTA", Model: "RAV4", Year: 2020, FiscalPower: 14.2, FiscalValue: 27000, FuelType: domain.FuelHybrid},
		{Maker: "tesla", Model: "Model 3", Year: 2021, FiscalPower: 0, FiscalValue: 35000, FuelType: domain.FuelElectric},
	}
}

// RunCatalogContract verifies search ordering, filtering and lookup semantics.
// The catalog must be empty when passed in.
func RunCatalogContract(t *testing.T, catalog interface {
	VehicleCatalog
	CatalogSeeder
}) {
	ctx := context.Background()

	seeded, err := catalog.Seed(ctx, ContractVehicles())
	require.NoError(t, err)
	require.Len(t, seeded, 4)
	for _, v := range seeded {
		assert.NotEmpty(t, v.ID, "seed must assign ids")
	}

	t.Run("Seed normalizes makers", func(t *testing.T) {
		assert.Equal(t, "toyota", seeded[0].Maker)
		assert.Equal(t, "toyota", seeded[2].Maker)
	})

	t.Run("Search all years keeps insertion order", func(t *testing.T) {
		got, err := catalog.Search(ctx, "  TOYOTA", nil)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "Corolla", got[0].Model)
		assert.Equal(t, "Yaris", got[1].Model)
		assert.Equal(t, "RAV4", got[2].Model)
	})

	t.Run("Search by year", func(t *testing.T) {
		year := 2020
		got, err := catalog.Search(ctx, "toyota", &year)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "Corolla", got[0].Model)
		assert.Equal(t, "RAV4", got[1].Model)
	})

	t.Run("No match is empty, not an error", func(t *testing.T) {
		got, err := catalog.Search(ctx, "lada", nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Get", func(t *testing.T) {
		v, err := catalog.Get(ctx, seeded[3].ID)
		require.NoError(t, err)
		assert.Equal(t, "Model 3", v.Model)
		assert.Equal(t, domain.FuelElectric, v.FuelType)
		assert.InDelta(t, 35000, v.FiscalValue, 0.001)
	})

	t.Run("Get unknown", func(t *testing.T) {
		_, err := catalog.Get(ctx, "does-not-exist")
		assert.ErrorIs(t, err, domain.ErrVehicleNotFound)
	})

	t.Run("Seed rejects invalid vehicles", func(t *testing.T) {
		_, err := catalog.Seed(ctx, []domain.Vehicle{{Maker: "seat", Model: "Ibiza", Year: 2018, FuelType: "steam"}})
		assert.ErrorIs(t, err, domain.ErrInvalidVehicle)
	})
}

// RunLedgerContract verifies the append-only ledger.
func RunLedgerContract(t *testing.T, ledger TransferLedger) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first := domain.TransferRecord{
		ID: "r1", VehicleID: "v1", Region: "Madrid",
		AppliedRate: decimal.RequireFromString("0.04"), ComputedTax: decimal.RequireFromString("720.00"),
		CreatedAt: base,
	}
	second := domain.TransferRecord{
		ID: "r2", VehicleID: "v2", Region: "Ceuta",
		AppliedRate: decimal.RequireFromString("0.02"), ComputedTax: decimal.RequireFromString("300.50"),
		CreatedAt: base.Add(time.Minute),
	}
	third := first
	third.ID = "r3"
	third.CreatedAt = base.Add(2 * time.Minute)

	for _, r := range []domain.TransferRecord{first, second, third} {
		require.NoError(t, ledger.Append(ctx, r))
	}

	all, err := ledger.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "r1", all[0].ID)
	assert.Equal(t, "r3", all[2].ID)

	v1, err := ledger.List(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, v1, 2)
	assert.True(t, v1[0].AppliedRate.Equal(decimal.RequireFromString("0.04")))
	assert.True(t, v1[0].ComputedTax.Equal(decimal.RequireFromString("720")))
	assert.True(t, v1[0].CreatedAt.Equal(base))
	assert.Equal(t, "Madrid", v1[1].Region)

	none, err := ledger.List(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}
