package show

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadDir reads every *.xml file directly inside dir, treats the one
// named ASSETMAP.xml (case-insensitive) as the asset map and every other
// XML file as a candidate CPL, then builds and returns a fully resolved
// Show. Per AddCPLList's all-or-nothing rule, a directory containing any
// non-CPL XML file other than the asset map fails to load.
func LoadDir(dir string) (*Show, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("show: read dir %s: %w", dir, err)
	}

	cplFiles := make(map[string][]byte)
	var assetMapData []byte
	var assetMapPath string

	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".xml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("show: read %s: %w", path, err)
		}
		if strings.EqualFold(e.Name(), "ASSETMAP.xml") {
			assetMapData = data
			assetMapPath = path
			continue
		}
		cplFiles[path] = data
	}

	s := New()
	if len(cplFiles) > 0 {
		if _, err := s.AddCPLList(cplFiles); err != nil {
			return nil, fmt.Errorf("show: loading CPLs from %s: %w", dir, err)
		}
	}

	if assetMapData != nil {
		entries, err := ParseAssetMap(assetMapData)
		if err != nil {
			return nil, fmt.Errorf("show: parsing %s: %w", assetMapPath, err)
		}
		s.ResolveAssetMap(entries)
	}

	return s, nil
}
