package decisionforest

import (
	"encoding/json"
	"io"
)

// Load reads a serialized forest back from r.
func Load(r io.Reader) (*Forest, error) {
	var forest Forest
	rd := json.NewDecoder(r)
	err := rd.Decode(&forest)
	if err != nil {
		return nil, err
	}
	return &forest, nil
}

// Save writes the forest to w as JSON.
func Save(w io.Writer, f *Forest) error {
	wr := json.NewEncoder(w)
	return wr.Encode(f)
}
