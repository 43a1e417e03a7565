package manifest

import (
	"encoding/json"

	"github.com/piligrim-code/manifesto/pkg/errors"
)

// Marshal encodes a Manifest into its wire form. The encoding is a lossless
// round trip with Unmarshal.
func Marshal(m Manifest) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, errors.New(errors.CodeSerialization, "encode manifest", err)
	}
	return payload, nil
}

// Unmarshal decodes a wire-form manifest.
func Unmarshal(payload []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(payload, &m); err != nil {
		return Manifest{}, errors.New(errors.CodeSerialization, "decode manifest", err)
	}
	return m, nil
}
