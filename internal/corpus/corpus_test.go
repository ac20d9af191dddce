package corpus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedCorpus(t *testing.T) {
	crp, err := Load()
	require.NoError(t, err)

	assert.Greater(t, crp.Len(), 0)
	assert.Len(t, crp.IDs(), crp.Len())

	for _, id := range crp.IDs() {
		pair, ok := crp.Get(id)
		require.Truef(t, ok, "id %s listed but not resolvable", id)
		assert.NotEmpty(t, pair.Real)
		assert.NotEmpty(t, pair.Fake)
		assert.NotEqual(t, pair.Real, pair.Fake)
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err, "empty corpus must be rejected")

	_, err = New([]PromptPair{{ID: "", Real: "r", Fake: "f"}})
	assert.Error(t, err, "empty id must be rejected")

	_, err = New([]PromptPair{{ID: "a", Real: "", Fake: "f"}})
	assert.Error(t, err, "missing variant must be rejected")

	_, err = New([]PromptPair{
		{ID: "a", Real: "r1", Fake: "f1"},
		{ID: "a", Real: "r2", Fake: "f2"},
	})
	assert.Error(t, err, "duplicate ids must be rejected")
}

func TestGet_UnknownID(t *testing.T) {
	crp, err := New([]PromptPair{{ID: "a", Real: "r", Fake: "f"}})
	require.NoError(t, err)

	_, ok := crp.Get("missing")
	assert.False(t, ok)
}

func TestLoadFile_MissingPath(t *testing.T) {
	_, err := LoadFile("does-not-exist.json")
	assert.Error(t, err)
}
