package crypto

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
)

func TestHashBytesDeterministic(t *testing.T) {
	a := HashBytes([]byte("the quick brown fox"))
	b := HashBytes([]byte("the quick brown fox"))
	if a != b {
		t.Fatal("identical input produced different hashes")
	}
	c := HashBytes([]byte("the quick brown fix"))
	if a == c {
		t.Fatal("different input produced identical hashes")
	}
}

func TestHashJSONRoundTrip(t *testing.T) {
	h := HashBytes([]byte("round trip me"))
	b, err := json.Marshal(h)
	if err != nil {
		t.Fatal(err)
	}
	var h2 Hash
	if err := json.Unmarshal(b, &h2); err != nil {
		t.Fatal(err)
	}
	if h != h2 {
		t.Fatal("hash did not survive JSON round trip")
	}
}

func TestHashingReader(t *testing.T) {
	data := []byte(strings.Repeat("abcdefgh", 1024))
	hr := NewHashingReader(bytes.NewReader(data))
	out, err := io.ReadAll(hr)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Fatal("hashing reader altered the stream")
	}
	if hr.Count() != int64(len(data)) {
		t.Fatalf("expected count %d, got %d", len(data), hr.Count())
	}
	want := HashBytes(data)
	if hr.Sum() != want {
		t.Fatal("hashing reader digest does not match direct HashBytes")
	}
}
