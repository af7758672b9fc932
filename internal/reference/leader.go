package reference

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadEnumCatalog читает все enum-справочники (*.yaml, *.yml) из dir.
func LoadEnumCatalog(dir string) (map[string]EnumDirectory, error) {
	result := make(map[string]EnumDirectory)
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		ext := filepath.Ext(file.Name())
		if file.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, file.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var enumDir EnumDirectory
		if err := yaml.Unmarshal(data, &enumDir); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		// имя справочника — из name или из имени файла
		if enumDir.Name == "" {
			enumDir.Name = strings.TrimSuffix(file.Name(), ext)
		}
		if _, dup := result[enumDir.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate catalog %q", path, enumDir.Name)
		}
		result[enumDir.Name] = enumDir
	}
	return result, nil
}
