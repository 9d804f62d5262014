package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/itpbot/pkg/adapters/sqlite"
	"github.com/aretw0/itpbot/pkg/domain"
	"github.com/aretw0/itpbot/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSQLiteCatalog_Contract(t *testing.T) {
	ports.RunCatalogContract(t, openMemory(t).Catalog())
}

func TestSQLiteLedger_Contract(t *testing.T) {
	ports.RunLedgerContract(t, openMemory(t).Ledger())
}

func TestSQLiteCatalog_ReseedKeepsPosition(t *testing.T) {
	ctx := context.Background()
	catalog := openMemory(t).Catalog()

	_, err := catalog.Seed(ctx, []domain.Vehicle{
		{ID: "a", Maker: "seat", Model: "Ibiza", Year: 2018, FiscalPower: 10, FiscalValue: 9000, FuelType: domain.FuelGasoline},
		{ID: "b", Maker: "seat", Model: "Leon", Year: 2019, FiscalPower: 12, FiscalValue: 14000, FuelType: domain.FuelDiesel},
	})
	require.NoError(t, err)

	_, err = catalog.Seed(ctx, []domain.Vehicle{
		{ID: "a", Maker: "SEAT", Model: "Ibiza FR", Year: 2018, FiscalPower: 11, FiscalValue: 9500, FuelType: domain.FuelGasoline},
	})
	require.NoError(t, err)

	got, err := catalog.Search(ctx, "seat", nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Ibiza FR", got[0].Model)
	assert.Equal(t, "Leon", got[1].Model)

	n, err := catalog.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLiteCatalog_InvalidSeedIsAtomic(t *testing.T) {
	ctx := context.Background()
	catalog := openMemory(t).Catalog()

	_, err := catalog.Seed(ctx, []domain.Vehicle{
		{Maker: "seat", Model: "Ibiza", Year: 2018, FuelType: domain.FuelGasoline},
		{Maker: "seat", Model: "", Year: 2018, FuelType: domain.FuelGasoline},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidVehicle)

	n, err := catalog.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLite_FileDatabaseSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")

	db, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	seeded, err := db.Catalog().Seed(ctx, ports.ContractVehicles())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = sqlite.Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	version, err := db.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, sqlite.SchemaVersion, version)

	v, err := db.Catalog().Get(ctx, seeded[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "Yaris", v.Model)
}
