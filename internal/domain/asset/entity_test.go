package asset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"paper":              KindPaper,
		"histogram":          KindHistogram,
		"test_pic":           KindPaper,
		"test_pic_histogram": KindHistogram,
	} {
		got, err := ParseKind(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseKind("answer_key")
	assert.Error(t, err)
}

func TestBundlePaths(t *testing.T) {
	b := Bundle{ID: "tpic_1141_file_1"}
	assert.Empty(t, b.Paths())

	now := time.Now()
	b.SetPath(KindHistogram, "/data/h.png", now)
	assert.Equal(t, "/data/h.png", b.PathFor(KindHistogram))
	assert.Empty(t, b.PathFor(KindPaper))
	assert.Equal(t, []string{"/data/h.png"}, b.Paths())
}
