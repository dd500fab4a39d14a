package persist

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"os"

	"github.com/NebulousLabs/errors"
	"github.com/cespare/xxhash/v2"
)

// jsonEnvelope is the on-disk structure written by SaveJSON. The checksum
// covers the raw bytes of Data so that a torn or corrupted write can be
// detected at load time instead of silently handing the caller a partial
// object.
type jsonEnvelope struct {
	Metadata Metadata        `json:"metadata"`
	Checksum string          `json:"checksum"`
	Data     json.RawMessage `json:"data"`
}

func checksumOf(b []byte) string {
	h := xxhash.Sum64(b)
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(h >> (8 * uint(i)))
	}
	return hex.EncodeToString(buf)
}

// SaveJSON saves a JSON-marshaled object to disk, tagging it with meta so
// that a subsequent LoadJSON call can confirm it is reading the file it
// expects. The write goes through a temp file that is synced and renamed
// into place, so a crash mid-write cannot corrupt the previous version of
// the file.
func SaveJSON(meta Metadata, object interface{}, filename string) error {
	data, err := json.MarshalIndent(object, "", "\t")
	if err != nil {
		return errors.Extend(err, errors.New("could not marshal object"))
	}
	env := jsonEnvelope{
		Metadata: meta,
		Checksum: checksumOf(data),
		Data:     data,
	}
	envData, err := json.MarshalIndent(env, "", "\t")
	if err != nil {
		return errors.Extend(err, errors.New("could not marshal envelope"))
	}

	sf, err := NewSafeFile(filename)
	if err != nil {
		return errors.Extend(err, errors.New("could not create safe file"))
	}
	if _, err := sf.Write(envData); err != nil {
		sf.Close()
		return errors.Extend(err, errors.New("could not write envelope"))
	}
	if _, err := sf.Write([]byte("\n")); err != nil {
		sf.Close()
		return errors.Extend(err, errors.New("could not write trailing newline"))
	}
	return sf.Commit()
}

// LoadJSON loads a JSON object that was previously written with SaveJSON,
// verifying that the file's metadata matches meta and that its checksum
// matches its data before unmarshaling into object.
func LoadJSON(meta Metadata, object interface{}, filename string) error {
	if len(filename) >= len(tempSuffix) && filename[len(filename)-len(tempSuffix):] == tempSuffix {
		return ErrBadFilenameSuffix
	}

	raw, err := os.ReadFile(filename)
	if err != nil {
		return errors.Extend(err, errors.New("could not read file"))
	}

	var env jsonEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return errors.Extend(err, errors.New("could not parse envelope"))
	}
	if env.Metadata.Header != meta.Header {
		return errors.New("mismatched header in persisted file")
	}
	if env.Metadata.Version != meta.Version {
		return errors.New("mismatched version in persisted file")
	}
	// The envelope re-indents Data when it is written, so restore the
	// indentation SaveJSON checksummed before comparing.
	var compact, data bytes.Buffer
	if err := json.Compact(&compact, env.Data); err != nil {
		return errors.Extend(err, errors.New("could not parse data"))
	}
	if err := json.Indent(&data, compact.Bytes(), "", "\t"); err != nil {
		return errors.Extend(err, errors.New("could not parse data"))
	}
	if checksumOf(data.Bytes()) != env.Checksum {
		return errors.New("checksum mismatch: persisted file is corrupted")
	}
	if err := json.Unmarshal(env.Data, object); err != nil {
		return errors.Extend(err, errors.New("could not unmarshal data"))
	}
	return nil
}
