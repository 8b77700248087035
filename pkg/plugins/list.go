// pkg/plugins/list.go

// Package plugins loads the monorepo plugin list.
//
// The list is a JSON (or YAML) document whose values are plugin identifiers;
// keys, when present, are ignored. Identifiers keep document order because
// the detector reports changed plugins in that order.
package plugins

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/CodeMonkeyCybersecurity/changefinder/pkg/cf_err"
	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a plugin list document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the format from the file extension; anything that is not
// .yaml/.yml is read as JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Load reads and validates the plugin list at path.
func Load(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cf_err.NewExpectedError(cf_err.NewValidationError("plugin list not found: "+path, err,
				"Pass --plugin-list or run from the directory containing plugin_list.json"))
		}
		return nil, cf_err.NewFilesystemError("read plugin list "+path, err)
	}

	ids, err := Parse(data, FormatFor(path))
	if err != nil {
		return nil, cerr.Wrapf(err, "plugin list %s", path)
	}
	return ids, nil
}

// Parse decodes a plugin list document and validates the identifiers.
func Parse(data []byte, format Format) ([]string, error) {
	var (
		ids []string
		err error
	)
	switch format {
	case FormatYAML:
		ids, err = parseYAML(data)
	default:
		ids, err = parseJSON(data)
	}
	if err != nil {
		return nil, cf_err.NewValidationError("malformed plugin list", err)
	}

	if err := Validate(ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Validate rejects empty and duplicate identifiers, reporting all of them.
func Validate(ids []string) error {
	var result error
	seen := make(map[string]int, len(ids))
	for i, id := range ids {
		if strings.TrimSpace(id) == "" {
			result = multierror.Append(result, cerr.Newf("entry %d: empty plugin identifier", i))
			continue
		}
		if first, ok := seen[id]; ok {
			result = multierror.Append(result, cerr.Newf("entry %d: duplicate plugin identifier %q (first at entry %d)", i, id, first))
			continue
		}
		seen[id] = i
	}
	if result != nil {
		return cf_err.NewValidationError("invalid plugin list", result)
	}
	return nil
}

func parseJSON(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, cerr.Wrap(err, "read document start")
	}
	delim, ok := tok.(json.Delim)
	if !ok || (delim != '{' && delim != '[') {
		return nil, cerr.Newf("expected a JSON object or array, got %v", tok)
	}

	ids := []string{}
	for dec.More() {
		if delim == '{' {
			if _, err := dec.Token(); err != nil {
				return nil, cerr.Wrap(err, "read key")
			}
		}
		var id string
		if err := dec.Decode(&id); err != nil {
			return nil, cerr.Wrapf(err, "entry %d must be a string", len(ids))
		}
		ids = append(ids, id)
	}

	if _, err := dec.Token(); err != nil {
		return nil, cerr.Wrap(err, "read document end")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, cerr.New("trailing data after plugin list")
	}
	return ids, nil
}

func parseYAML(data []byte) ([]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, cerr.Wrap(err, "decode yaml")
	}
	if len(doc.Content) == 0 {
		return []string{}, nil
	}

	root := doc.Content[0]
	var values []*yaml.Node
	switch root.Kind {
	case yaml.MappingNode:
		for i := 1; i < len(root.Content); i += 2 {
			values = append(values, root.Content[i])
		}
	case yaml.SequenceNode:
		values = root.Content
	default:
		return nil, cerr.Newf("expected a YAML mapping or sequence at line %d", root.Line)
	}

	ids := make([]string, 0, len(values))
	for _, v := range values {
		if v.Kind != yaml.ScalarNode || v.Tag != "!!str" {
			return nil, cerr.Newf("line %d: plugin identifier must be a string", v.Line)
		}
		ids = append(ids, v.Value)
	}
	return ids, nil
}
