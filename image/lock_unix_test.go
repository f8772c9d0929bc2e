//go:build unix

package image_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/usbfat/fat32/image"
	"github.com/usbfat/fat32/internal/fixture"
)

func TestOpen_locked(t *testing.T) {
	fs := afero.NewOsFs()
	name := filepath.Join(t.TempDir(), "disk.img")
	require.NoError(t, fixture.Scenario().WriteTo(fs, name))

	first, err := image.Open(fs, name, image.WithLogger(nullLogger()))
	require.NoError(t, err)

	_, err = image.Open(fs, name, image.WithLogger(nullLogger()))
	assert.True(t, errors.Is(err, image.ErrLocked), "second Open() error = %v", err)

	require.NoError(t, first.Close())

	again, err := image.Open(fs, name, image.WithLogger(nullLogger()))
	require.NoError(t, err)
	assert.NoError(t, again.Close())
}
