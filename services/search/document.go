package search

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/inboxia/mailcore/dto"
)

// blobVersion guards the serialized index layout. A blob with a newer
// version than this process understands is treated as corrupted.
const blobVersion = 1

// indexSnapshot is the durable form of one account's index.
type indexSnapshot struct {
	Version    int                   `json:"version"`
	Dimensions int                   `json:"dimensions"`
	Documents  []dto.IndexedDocument `json:"documents"`
}

// serialize writes the snapshot as a gzipped JSON blob.
func serialize(snapshot *indexSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)

	if err := json.NewEncoder(gz).Encode(snapshot); err != nil {
		return nil, errors.Wrap(err, "failed to encode index snapshot")
	}
	if err := gz.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to finalize index blob")
	}

	return buf.Bytes(), nil
}

// deserialize restores a snapshot from a blob. Any structural failure is a
// restore error; the caller maps it to ErrIndexCorrupted.
func deserialize(blob []byte) (*indexSnapshot, error) {
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, errors.Wrap(err, "blob is not gzip")
	}
	defer gz.Close()

	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decompress blob")
	}

	var snapshot indexSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, errors.Wrap(err, "failed to decode index snapshot")
	}

	if snapshot.Version > blobVersion {
		return nil, errors.Errorf("unsupported index blob version %d", snapshot.Version)
	}

	return &snapshot, nil
}
