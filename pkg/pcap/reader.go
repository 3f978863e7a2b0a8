package pcap

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// pcapng files start with a section header block.
var ngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

type frameSource interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Reader reads frames from a classic pcap or a pcapng capture without cgo.
type Reader struct {
	src    frameSource
	closer io.Closer
}

// NewReader opens the capture file at filePath.
func NewReader(filePath string) (*Reader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	r, err := NewStreamReader(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	r.closer = file
	return r, nil
}

// NewStreamReader reads a capture from an arbitrary stream. The format is
// detected from the first block.
func NewStreamReader(stream io.Reader) (*Reader, error) {
	br := bufio.NewReader(stream)
	magic, err := br.Peek(len(ngMagic))
	if err != nil {
		return nil, fmt.Errorf("failed to read capture header: %w", err)
	}

	if bytes.Equal(magic, ngMagic) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to open pcapng stream: %w", err)
		}
		return &Reader{src: ng}, nil
	}
	classic, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap stream: %w", err)
	}
	return &Reader{src: classic}, nil
}

// LinkType returns the link layer of the captured frames.
func (r *Reader) LinkType() layers.LinkType {
	return r.src.LinkType()
}

// ReadPacketData returns the next frame. It returns io.EOF at the end of the capture.
func (r *Reader) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	return r.src.ReadPacketData()
}

// Close closes the underlying file, if the reader opened one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
