package ber

import "bufio"
import "io"
import "go.corvid.dev/x690/tlv"

// capturingReader wraps an io.Reader and appends every byte actually
// delivered to a caller (via Read or ReadByte) to buf. It implements both
// io.Reader and io.ByteReader so that [tlv.Decoder] uses it directly
// without interposing its own buffering, which keeps the captured image in
// lockstep with what the decoder consumes.
type capturingReader struct {
	br  *bufio.Reader
	buf []byte
}

func newCapturingReader(r io.Reader) *capturingReader {
	return &capturingReader{br: bufio.NewReader(r)}
}

func (c *capturingReader) Read(p []byte) (int, error) {
	n, err := c.br.Read(p)
	c.buf = append(c.buf, p[:n]...)
	return n, err
}

func (c *capturingReader) ReadByte() (byte, error) {
	b, err := c.br.ReadByte()
	if err == nil {
		c.buf = append(c.buf, b)
	}
	return b, err
}

// Capture wraps r in a byte-capturing reader and returns a *tlv.Decoder
// driven by it, together with a snapshot function returning a defensive
// copy of the bytes captured so far.
//
// Decode uses its own private capturingReader for a single flat top-level
// object; Capture is the same mechanism exported for package cms, which
// drives one Decoder across an entire streaming parse (ContentInfo,
// SignedData/EnvelopedData and their bounded sub-objects via [DecodeNode])
// instead of one Decode call per object. Every Node realised against the
// returned Decoder references an offset into whatever the snapshot
// function returns at or after that point; snapshot must be called again
// after further reads to see their bytes.
func Capture(r io.Reader) (*tlv.Decoder, func() Image) {
	cr := newCapturingReader(r)
	d := tlv.NewDecoder(cr)
	snapshot := func() Image {
		return Image(append([]byte(nil), cr.buf...))
	}
	return d, snapshot
}
