package parcel

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDebugLs(t *testing.T) {
	dir := t.TempDir()
	writeParcelShapefile(t, filepath.Join(dir, "parcels.shp"))
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		t.Log(e.Name())
	}
}
