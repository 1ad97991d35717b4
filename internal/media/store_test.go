package media

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_UploadAndRead(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/media/")
	require.NoError(t, err)

	owner := uuid.New()
	obj, err := store.Upload(context.Background(), owner, []byte("jpeg-bytes"), "image/jpeg")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(obj.Key, owner.String()+"/"))
	assert.True(t, strings.HasSuffix(obj.Key, ".jpg"))
	assert.Equal(t, "/media/"+obj.Key, obj.URL)
	assert.Equal(t, 10, obj.Size)

	data, err := store.Read(context.Background(), obj.Key)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
}

func TestLocalStore_RejectsEmptyAndTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/media")
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), uuid.New(), nil, "image/jpeg")
	assert.ErrorIs(t, err, ErrEmptyObject)

	_, err = store.Read(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = store.Read(context.Background(), uuid.NewString()+"/missing.jpg")
	assert.ErrorIs(t, err, ErrObjectMissing)
}
