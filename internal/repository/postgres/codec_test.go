// internal/repository/postgres/codec_test.go
package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postflow-service/internal/domain/campaign"
)

func TestUnmarshalPlatformIDs(t *testing.T) {
	ids, err := unmarshalPlatformIDs([]byte(`{"instagram":"ig-1","facebook":"fb-2"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"instagram": "ig-1", "facebook": "fb-2"}, ids)

	ids, err = unmarshalPlatformIDs(nil)
	require.NoError(t, err)
	assert.Nil(t, ids)
}

func TestUnmarshalPlatformIDsCorruptColumn(t *testing.T) {
	_, err := unmarshalPlatformIDs([]byte(`{"instagram":`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "platform post ids")
}

func TestUnmarshalContentItems(t *testing.T) {
	items, err := unmarshalContentItems([]byte(`[{"caption":"hello","hashtags":["a","b"]}]`))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, campaign.ContentItem{Caption: "hello", Hashtags: []string{"a", "b"}}, items[0])

	items, err = unmarshalContentItems(nil)
	require.NoError(t, err)
	assert.Nil(t, items)
}

func TestUnmarshalContentItemsCorruptColumn(t *testing.T) {
	_, err := unmarshalContentItems([]byte(`not json`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content items")
}
