package show

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDirParsesCPLAndAssetMap(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "cpl.xml"), sampleCPL)
	writeFile(t, filepath.Join(dir, "ASSETMAP.xml"), sampleAssetMap)

	s, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(s.CPLs) != 1 {
		t.Fatalf("len(CPLs) = %d, want 1", len(s.CPLs))
	}
	picture, _, _, ok := s.FrameAt(0)
	if !ok {
		t.Fatal("FrameAt(0) not found")
	}
	if picture.Path == "" {
		t.Fatal("expected ResolveAssetMap to fill in Path")
	}
}

func TestLoadDirEmpty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(s.CPLs) != 0 {
		t.Fatalf("len(CPLs) = %d, want 0", len(s.CPLs))
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}
