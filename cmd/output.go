package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealsync/internal/model"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode output")
}

// readExtraction decodes an extraction record from path, or stdin for "-".
func readExtraction(path string, stdin io.Reader) (*model.Extraction, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "open extraction %s", path)
		}
		defer f.Close() //nolint:errcheck
		r = f
	}

	var ext model.Extraction
	if err := json.NewDecoder(r).Decode(&ext); err != nil {
		return nil, eris.Wrapf(err, "decode extraction %s", path)
	}
	return &ext, nil
}
