package refs

import (
	"io"

	"github.com/opencontainers/go-digest"
)

func parseDigest(s string) digest.Digest {
	return digest.Digest(s)
}

// SHA256Hex returns the canonical "sha256:<hex>" digest of b.
func SHA256Hex(b []byte) string {
	return digest.Canonical.FromBytes(b).String()
}

// SHA256Stream consumes r to EOF, returning its canonical digest and the
// number of bytes read. It never buffers the whole input in memory.
func SHA256Stream(r io.Reader) (string, int64, error) {
	verifier := digest.Canonical.Digester()
	n, err := io.Copy(verifier.Hash(), r)
	if err != nil {
		return "", n, err
	}
	return verifier.Digest().String(), n, nil
}

// VerifyingReader wraps r so that reading it to EOF and then calling
// Verified reports whether the stream matched want.
type VerifyingReader struct {
	r        io.Reader
	verifier digest.Verifier
}

// NewVerifyingReader builds a VerifyingReader that checks the stream
// against want once fully consumed.
func NewVerifyingReader(r io.Reader, want string) *VerifyingReader {
	d := digest.Digest(want)
	v := d.Verifier()
	return &VerifyingReader{r: io.TeeReader(r, v), verifier: v}
}

func (v *VerifyingReader) Read(p []byte) (int, error) {
	return v.r.Read(p)
}

// Verified reports whether the bytes read so far match the expected
// digest. Only meaningful after the reader has been fully drained.
func (v *VerifyingReader) Verified() bool {
	return v.verifier.Verified()
}
