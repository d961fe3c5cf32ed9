package quiktracy

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/flanksource/commons/properties"

	"github.com/mtreglia-gpsw/quik-tracy/context"
)

// DefaultPropertiesFile is loaded from the working directory when present.
const DefaultPropertiesFile = "quik-tracy.properties"

// LoadPropertiesFile reads a key=value file into the global property
// registry. A missing default file is not an error.
func LoadPropertiesFile(ctx context.Context, filename string) error {
	props, err := ParsePropertiesFile(filename)
	if err != nil {
		if os.IsNotExist(err) && filename == DefaultPropertiesFile {
			return nil
		}
		return ctx.Oops().With("path", filename).Wrap(err)
	}

	for k, v := range props {
		properties.Set(k, v)
	}
	ctx.ClearCache()

	ctx.Logger.V(3).Infof("loaded %d properties from %s", len(props), filename)
	return nil
}

// ApplyPropertyOverrides applies -D key=value command line overrides on top
// of whatever the properties file set.
func ApplyPropertyOverrides(ctx context.Context, overrides []string) error {
	for _, kv := range overrides {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return ctx.Oops().Errorf("invalid property override %q, want key=value", kv)
		}
		properties.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	if len(overrides) != 0 {
		ctx.ClearCache()
	}
	return nil
}

func ParsePropertiesFile(filename string) (map[string]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var props = make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		tokens := strings.SplitN(line, "=", 2)
		if len(tokens) != 2 {
			return nil, fmt.Errorf("invalid line: %s", line)
		}

		key := strings.TrimSpace(tokens[0])
		value := strings.TrimSpace(tokens[1])
		props[key] = value
	}

	if scanner.Err() != nil {
		return nil, scanner.Err()
	}

	return props, nil
}
