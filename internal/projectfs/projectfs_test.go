package projectfs

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	assert.Equal(t, "New_Controls_V2_0", Slugify("New Controls V2.0"))
	assert.Equal(t, "Acme_Co", Slugify("  Acme & Co!  "))
	assert.Equal(t, "", Slugify("..."))
}

func TestCreateProjectFolders(t *testing.T) {
	base := t.TempDir()

	root, err := CreateProjectFolders(base, "Acme AG", "New Controls")
	require.NoError(t, err)

	year := fmt.Sprintf("%d", time.Now().Year())
	assert.Equal(t, filepath.Join(base, year, "New_Controls_Acme_AG_"+year+"001"), root)

	// A few representative template folders exist.
	for _, rel := range []string{"01_Management/03_Offer", "02_Engineering/01_CAD", "99_Archive"} {
		info, err := os.Stat(filepath.Join(root, rel))
		require.NoError(t, err, rel)
		assert.True(t, info.IsDir())
	}
}

func TestSequenceSkipsGaps(t *testing.T) {
	base := t.TempDir()
	year := time.Now().Year()
	yearDir := filepath.Join(base, fmt.Sprintf("%d", year))

	// Simulate an earlier project 007 whose siblings were deleted.
	require.NoError(t, os.MkdirAll(filepath.Join(yearDir, fmt.Sprintf("Old_Acme_%d007", year)), 0o755))

	root, err := CreateProjectFolders(base, "Acme", "Next")
	require.NoError(t, err)
	assert.Contains(t, root, fmt.Sprintf("%d008", year), "sequence continues past the highest code")
}
