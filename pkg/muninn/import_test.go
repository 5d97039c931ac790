package muninn

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportJSONL(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Edges listed before the nodes they join: order must not matter.
	input := strings.Join([]string{
		`{"kind":"edge","id":"e1","source":"a","target":"b","type":"KNOWS"}`,
		`{"kind":"node","id":"a","labels":["Person"],"properties":{"key":"alice"}}`,
		``,
		`{"kind":"node","id":"b","labels":["Person"],"properties":{"key":"bob"}}`,
	}, "\n")

	stats, err := db.ImportJSONL(ctx, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, ImportStats{Nodes: 2, Edges: 1}, stats)

	require.NoError(t, db.Refresh(ctx))
	path, err := db.ShortestPath(ctx, "alice", "bob", 3)
	require.NoError(t, err)
	require.Len(t, path, 2)
	assert.Equal(t, "KNOWS", path[1].Relation)
}

func TestImportJSONL_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("malformed json names the line", func(t *testing.T) {
		db := newTestDB(t)
		input := `{"kind":"node","id":"a"}` + "\n" + `{not json}`
		_, err := db.ImportJSONL(ctx, strings.NewReader(input))
		assert.ErrorContains(t, err, "line 2")
	})

	t.Run("unknown kind rejected", func(t *testing.T) {
		db := newTestDB(t)
		_, err := db.ImportJSONL(ctx, strings.NewReader(`{"kind":"vertex","id":"a"}`))
		assert.ErrorContains(t, err, `unknown kind "vertex"`)
	})

	t.Run("edge to a missing node fails the batch", func(t *testing.T) {
		db := newTestDB(t)
		input := strings.Join([]string{
			`{"kind":"node","id":"a"}`,
			`{"kind":"edge","id":"e1","source":"a","target":"ghost","type":"KNOWS"}`,
		}, "\n")
		_, err := db.ImportJSONL(ctx, strings.NewReader(input))
		assert.ErrorContains(t, err, "import edges")
	})

	t.Run("closed db", func(t *testing.T) {
		db := newTestDB(t)
		require.NoError(t, db.Close())
		_, err := db.ImportJSONL(ctx, strings.NewReader(""))
		assert.ErrorIs(t, err, ErrClosed)
	})
}

func TestImportJSONL_LargeBatches(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Cross the batch boundary to exercise the chunked bulk writes.
	var sb strings.Builder
	total := importBatchSize + 250
	for i := 0; i < total; i++ {
		fmt.Fprintf(&sb, `{"kind":"node","id":"n%04d"}`+"\n", i)
	}

	stats, err := db.ImportJSONL(ctx, strings.NewReader(sb.String()))
	require.NoError(t, err)
	assert.Equal(t, total, stats.Nodes)

	require.NoError(t, db.Refresh(ctx))
	assert.Equal(t, total, db.Status().NodeCount)
}
