package testfixture_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/dflow/internal/testfixture"
)

func TestParseOrdersCellsByArchiveFileOrder(t *testing.T) {
	data := []byte(`simple stale scenario
-- 1 --
x = 1
-- 2 --
y = x + 1
-- 3 --
print(y)
`)
	sc, err := testfixture.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "simple stale scenario\n", sc.Description)
	require.Len(t, sc.Cells, 3)
	assert.Equal(t, "1", sc.Cells[0].ID)
	assert.Equal(t, "y = x + 1\n", sc.Cells[1].Source)
}

func TestParseRejectsEmptyArchive(t *testing.T) {
	_, err := testfixture.Parse([]byte("no files here\n"))
	assert.Error(t, err)
}
