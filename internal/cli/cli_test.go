package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pricelens/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCSV = "Product Title,Price,Rating (⭐ out of 5),No. of Ratings,Source\n" +
	"Acme X200,\"₹1,000\",4.2,50,Flipkart\n" +
	"Acme X200,\"₹1,100\",4.2,50,Croma\n" +
	"Acme X200,₹900,4.2,50,Reliance Digital\n" +
	"Zenith Blender 500W,Not Available,No Rating,No Data,Croma\n"

func writeCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.csv")
	require.NoError(t, os.WriteFile(path, []byte(testCSV), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRecommendCommand(t *testing.T) {
	csvPath := writeCSV(t)

	t.Run("prints a recommendation", func(t *testing.T) {
		out, _, err := run(t, "recommend", "--catalog", csvPath, "-n", "Acme X200", "-c", "700")
		require.NoError(t, err)
		assert.Contains(t, out, "Recommended price:")
		assert.Contains(t, out, "Acme X200 (100%, exact)")
	})

	t.Run("json output", func(t *testing.T) {
		out, _, err := run(t, "recommend", "--catalog", csvPath, "-n", "acme x200", "-c", "700", "--json")
		require.NoError(t, err)

		var rec domain.Recommendation
		require.NoError(t, json.Unmarshal([]byte(out), &rec))
		assert.Equal(t, "Acme X200", rec.BestTitle)
		assert.Equal(t, 1000.0, rec.CompetitorPrice)
	})

	t.Run("requires name and cost", func(t *testing.T) {
		_, _, err := run(t, "recommend", "--catalog", csvPath, "-n", "Acme X200")
		assert.Error(t, err)
	})

	t.Run("unknown brand fails", func(t *testing.T) {
		_, _, err := run(t, "recommend", "--catalog", csvPath, "-n", "Nokia 3310", "-c", "700")
		assert.ErrorIs(t, err, domain.ErrNoBrandMatch)
	})
}

func TestResolveCommand(t *testing.T) {
	csvPath := writeCSV(t)

	out, _, err := run(t, "resolve", "--catalog", csvPath, "-n", "Acme X200")
	require.NoError(t, err)
	assert.Contains(t, out, "Acme X200\t100%\texact\t3 listings")
}

func TestImportAndSummaryCommands(t *testing.T) {
	csvPath := writeCSV(t)
	dbPath := filepath.Join(t.TempDir(), "catalog.db")

	out, _, err := run(t, "import", "--csv", csvPath, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 4 listings")

	out, _, err = run(t, "summary", "--catalog-type", "sqlite", "--catalog", dbPath, "--json")
	require.NoError(t, err)

	var summary domain.CatalogSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, "4-4", summary.Version)
	assert.Equal(t, 3, summary.TotalRecords)
	assert.Equal(t, 1, summary.DroppedRows)
	assert.Len(t, summary.Sources, 3)

	out, _, err = run(t, "summary", "--catalog-type", "sqlite", "--catalog", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "SOURCE")
	assert.Contains(t, out, "Flipkart")
}

func TestImportCommandRequiresDatabase(t *testing.T) {
	_, _, err := run(t, "import", "--csv", writeCSV(t))
	assert.Error(t, err)
}
