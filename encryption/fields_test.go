package encryption

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/ironseal/envelope"
	"github.com/jmcleod/ironseal/keystore"
)

func TestPrepareForStorage_Disabled(t *testing.T) {
	svc, _ := newTestService(t)

	f, err := svc.PrepareForStorage("title", "details")
	require.NoError(t, err)
	assert.Equal(t, Fields{Primary: "title", Secondary: "details"}, f)

	primary, secondary, err := svc.Extract(f)
	require.NoError(t, err)
	assert.Equal(t, "title", primary)
	assert.Equal(t, "details", secondary)
}

func TestPrepareForStorage_Enabled(t *testing.T) {
	svc, _ := newTestService(t)
	setupKey(t, svc)

	f, err := svc.PrepareForStorage("title", "details")
	require.NoError(t, err)
	assert.Empty(t, f.Primary)
	assert.Empty(t, f.Secondary)
	require.NotNil(t, f.PrimaryEnc)
	require.NotNil(t, f.SecondaryEnc)

	primary, secondary, err := svc.Extract(f)
	require.NoError(t, err)
	assert.Equal(t, "title", primary)
	assert.Equal(t, "details", secondary)
}

func TestPrepareForStorage_EmptySecondary(t *testing.T) {
	svc, _ := newTestService(t)
	setupKey(t, svc)

	f, err := svc.PrepareForStorage("title", "")
	require.NoError(t, err)
	require.NotNil(t, f.PrimaryEnc)
	assert.Nil(t, f.SecondaryEnc)

	primary, secondary, err := svc.Extract(f)
	require.NoError(t, err)
	assert.Equal(t, "title", primary)
	assert.Empty(t, secondary)
}

func TestPrepareForStorage_InvalidKey(t *testing.T) {
	store := keystore.NewMemoryStorage()
	store.Corrupt([]byte("garbage"))
	svc := New(store)
	defer svc.Close()

	assert.False(t, svc.Enabled())

	f, err := svc.PrepareForStorage("title", "details")
	require.NoError(t, err)
	assert.Equal(t, Fields{Primary: "title", Secondary: "details"}, f)

	primary, secondary, err := svc.Extract(f)
	require.NoError(t, err)
	assert.Equal(t, "title", primary)
	assert.Equal(t, "details", secondary)
}

func TestExtract_DisabledPassesThrough(t *testing.T) {
	writer, _ := newTestService(t)
	setupKey(t, writer)

	f, err := writer.PrepareForStorage("title", "details")
	require.NoError(t, err)
	f.Primary = "legacy title"

	tests := []struct {
		name  string
		store *keystore.MemoryStorage
	}{
		{"no key", keystore.NewMemoryStorage()},
		{"invalid key", func() *keystore.MemoryStorage {
			s := keystore.NewMemoryStorage()
			s.Corrupt([]byte("garbage"))
			return s
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(tt.store)
			defer svc.Close()
			require.False(t, svc.Enabled())

			primary, secondary, err := svc.Extract(f)
			require.NoError(t, err)
			assert.Equal(t, "legacy title", primary)
			assert.Empty(t, secondary)
		})
	}
}

func TestExtract_LegacyPlaintext(t *testing.T) {
	svc, _ := newTestService(t)
	setupKey(t, svc)

	primary, secondary, err := svc.Extract(Fields{Primary: "old title", Secondary: "old details"})
	require.NoError(t, err)
	assert.Equal(t, "old title", primary)
	assert.Equal(t, "old details", secondary)
}

func TestExtract_Errors(t *testing.T) {
	svc, _ := newTestService(t)
	setupKey(t, svc)

	f, err := svc.PrepareForStorage("title", "details")
	require.NoError(t, err)

	t.Run("tampered secondary", func(t *testing.T) {
		bad := f
		bad.SecondaryEnc = flipAuthTag(t, f.SecondaryEnc)
		bad.Secondary = "fallback"
		_, _, err := svc.Extract(bad)
		require.ErrorIs(t, err, envelope.ErrDecryption)
	})

	t.Run("missing ciphertext", func(t *testing.T) {
		bad := f
		bad.PrimaryEnc = f.PrimaryEnc.Clone()
		bad.PrimaryEnc.Ciphertext = ""
		_, _, err := svc.Extract(bad)
		require.ErrorIs(t, err, envelope.ErrDecryption)
	})

	t.Run("key deleted", func(t *testing.T) {
		require.NoError(t, svc.DeleteKey())
		primary, secondary, err := svc.Extract(f)
		require.NoError(t, err)
		assert.Empty(t, primary)
		assert.Empty(t, secondary)
	})
}
