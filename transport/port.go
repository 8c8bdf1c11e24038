// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package transport

import (
	"context"
	"encoding/binary"
	"io"
	"sync"

	"github.com/pkg/errors"
)

// MaxFrameSize bounds a single port frame.
const MaxFrameSize = 64 << 20

// ErrFrameTooLarge is returned for frames above MaxFrameSize.
var ErrFrameTooLarge = errors.New("frame too large")

// ReadFrame reads one frame: a 4-byte little-endian length followed by that
// many bytes of JSON.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	if n > MaxFrameSize {
		return nil, errors.Wrapf(ErrFrameTooLarge, "%d bytes", n)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return data, nil
}

// WriteFrame writes data as one frame.
func WriteFrame(w io.Writer, data []byte) error {
	if len(data) > MaxFrameSize {
		return errors.Wrapf(ErrFrameTooLarge, "%d bytes", len(data))
	}
	buf := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[4:], data)
	_, err := w.Write(buf)
	return err
}

// Port exchanges framed payloads over a long-lived stream, such as the
// stdio of a native messaging host.
type Port struct {
	base
	rwc     io.ReadWriteCloser
	writeMu sync.Mutex
}

// NewPort wraps rwc and starts reading from it. The port owns rwc.
func NewPort(rwc io.ReadWriteCloser) *Port {
	p := &Port{
		base: base{kind: "port"},
		rwc:  rwc,
	}
	p.connected = true
	go p.readLoop()
	return p
}

// Open does nothing on a live port. A port cannot be reopened once its
// stream is gone.
func (p *Port) Open(ctx context.Context) error {
	if !p.Connected() {
		return ErrDisconnected
	}
	return nil
}

// Close closes the stream. Closing twice is a no-op.
func (p *Port) Close() error {
	if !p.setConnected(false) {
		return nil
	}
	err := p.rwc.Close()
	p.emit(EventClose, nil)
	return err
}

// Send writes payload as one frame.
func (p *Port) Send(ctx context.Context, payload interface{}) error {
	if err := p.Open(ctx); err != nil {
		return err
	}
	data, err := encode(payload)
	if err != nil {
		return err
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := WriteFrame(p.rwc, data); err != nil {
		return errors.Wrap(err, "write frame")
	}
	return nil
}

func (p *Port) readLoop() {
	for {
		data, err := ReadFrame(p.rwc)
		if err != nil {
			if p.Connected() && err != io.EOF {
				log.Debug("read frame failed", "err", err)
				p.emitError(err)
			}
			if p.setConnected(false) {
				p.rwc.Close()
				p.emit(EventClose, nil)
			}
			return
		}
		_ = p.emitPayloads(data)
	}
}
