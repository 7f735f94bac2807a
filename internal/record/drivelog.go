// Package record reads and writes .drivelog recordings: ordered streams of
// channel-tagged messages captured from a vehicle.
//
// A drivelog is a directory:
//
//	header.json               LogHeader
//	index.bin                 one IndexEntry per message, little-endian
//	messages/chunk_NNNN.bin   length-prefixed JSON envelopes
package record

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/banshee-data/drivecheck/internal/fsutil"
	"github.com/banshee-data/drivecheck/internal/version"
)

// FileExtension is the conventional extension for drivelog directories.
const FileExtension = ".drivelog"

// FormatVersion is written to every header.
const FormatVersion = "1.0"

// ChunkSize is the number of messages per chunk file.
const ChunkSize = 1000

// ErrClosed is returned when writing to a closed Writer.
var ErrClosed = errors.New("drivelog writer is closed")

// LogHeader contains metadata about a recorded drive.
type LogHeader struct {
	Version       string            `json:"version"`
	Generator     string            `json:"generator"`
	CreatedNs     int64             `json:"created_ns"`
	VehicleID     string            `json:"vehicle_id"`
	TotalMessages uint64            `json:"total_messages"`
	StartSec      float64           `json:"start_sec"`
	EndSec        float64           `json:"end_sec"`
	Channels      map[string]uint64 `json:"channels"`
}

// IndexEntry locates one message inside the chunk files.
type IndexEntry struct {
	Seq         uint64
	TimestampNs int64
	ChunkID     uint32
	Offset      uint32
}

// Message is one entry of a recorded stream. Payload is left encoded;
// DecodeLocalization and DecodePlanning interpret it.
type Message struct {
	Seq       uint64
	Channel   string
	Timestamp float64 // record time, seconds
	Payload   json.RawMessage
}

// envelope is the serialised form of a Message inside a chunk.
type envelope struct {
	Channel      string          `json:"channel"`
	TimestampSec float64         `json:"timestamp_sec"`
	Payload      json.RawMessage `json:"payload"`
}

// Source is an ordered message stream. Next returns io.EOF after the last
// message; any other error means the stream is unreadable.
type Source interface {
	Next() (Message, error)
}

// Writer appends messages to a drivelog.
type Writer struct {
	fs       fsutil.FileSystem
	basePath string

	header       LogHeader
	index        []IndexEntry
	currentChunk int
	chunkFile    io.WriteCloser
	chunkOffset  uint32

	count   uint64
	started bool

	mu     sync.Mutex
	closed bool
}

// NewWriter creates a drivelog at basePath on the local filesystem.
func NewWriter(basePath, vehicleID string) (*Writer, error) {
	return NewWriterFS(fsutil.OSFileSystem{}, basePath, vehicleID)
}

// NewWriterFS creates a drivelog at basePath on fsys.
func NewWriterFS(fsys fsutil.FileSystem, basePath, vehicleID string) (*Writer, error) {
	if basePath == "" {
		return nil, fmt.Errorf("drivelog path is required")
	}
	if err := fsys.MkdirAll(filepath.Join(basePath, "messages"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create drivelog directory: %w", err)
	}

	return &Writer{
		fs:           fsys,
		basePath:     basePath,
		currentChunk: -1,
		header: LogHeader{
			Version:   FormatVersion,
			Generator: version.String(),
			CreatedNs: time.Now().UnixNano(),
			VehicleID: vehicleID,
			Channels:  make(map[string]uint64),
		},
	}, nil
}

// Write encodes payload as JSON and appends it on channel.
func (w *Writer) Write(channel string, timestampSec float64, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	return w.WriteRaw(channel, timestampSec, raw)
}

// WriteRaw appends an already encoded payload on channel.
func (w *Writer) WriteRaw(channel string, timestampSec float64, payload json.RawMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	if !w.started {
		w.header.StartSec = timestampSec
		w.started = true
	}
	w.header.EndSec = timestampSec

	chunkIdx := int(w.count / ChunkSize)
	if chunkIdx != w.currentChunk {
		if err := w.rotateChunk(chunkIdx); err != nil {
			return err
		}
	}

	data, err := json.Marshal(envelope{Channel: channel, TimestampSec: timestampSec, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(data)))
	if _, err := w.chunkFile.Write(lenBuf); err != nil {
		return fmt.Errorf("failed to write message length: %w", err)
	}
	if _, err := w.chunkFile.Write(data); err != nil {
		return fmt.Errorf("failed to write message data: %w", err)
	}

	w.index = append(w.index, IndexEntry{
		Seq:         w.count,
		TimestampNs: int64(timestampSec * 1e9),
		ChunkID:     uint32(chunkIdx),
		Offset:      w.chunkOffset,
	})

	w.chunkOffset += uint32(4 + len(data))
	w.count++
	w.header.Channels[channel]++
	return nil
}

func chunkPath(basePath string, chunkIdx int) string {
	return filepath.Join(basePath, "messages", fmt.Sprintf("chunk_%04d.bin", chunkIdx))
}

// rotateChunk closes the current chunk and opens the next one.
func (w *Writer) rotateChunk(chunkIdx int) error {
	if w.chunkFile != nil {
		if err := w.chunkFile.Close(); err != nil {
			return err
		}
	}

	f, err := w.fs.Create(chunkPath(w.basePath, chunkIdx))
	if err != nil {
		return fmt.Errorf("failed to create chunk file: %w", err)
	}

	w.chunkFile = f
	w.currentChunk = chunkIdx
	w.chunkOffset = 0
	return nil
}

// Count returns the number of messages written so far.
func (w *Writer) Count() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Path returns the drivelog directory.
func (w *Writer) Path() string {
	return w.basePath
}

// Close flushes the last chunk and writes the header and index.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.chunkFile != nil {
		if err := w.chunkFile.Close(); err != nil {
			return fmt.Errorf("failed to close chunk: %w", err)
		}
	}

	w.header.TotalMessages = w.count
	headerData, err := json.MarshalIndent(w.header, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if err := w.fs.WriteFile(filepath.Join(w.basePath, "header.json"), headerData, 0644); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	buf := make([]byte, 0, len(w.index)*indexEntrySize)
	for _, e := range w.index {
		buf = binary.LittleEndian.AppendUint64(buf, e.Seq)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(e.TimestampNs))
		buf = binary.LittleEndian.AppendUint32(buf, e.ChunkID)
		buf = binary.LittleEndian.AppendUint32(buf, e.Offset)
	}
	if err := w.fs.WriteFile(filepath.Join(w.basePath, "index.bin"), buf, 0644); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	return nil
}

// indexEntrySize is the encoded size of one IndexEntry.
const indexEntrySize = 8 + 8 + 4 + 4

// Reader reads messages from a drivelog in recorded order.
type Reader struct {
	fs       fsutil.FileSystem
	basePath string
	header   LogHeader
	index    []IndexEntry

	next         int
	currentChunk int
	chunkData    []byte
}

// OpenReader opens a drivelog on the local filesystem.
func OpenReader(basePath string) (*Reader, error) {
	return OpenReaderFS(fsutil.OSFileSystem{}, basePath)
}

// OpenReaderFS opens a drivelog stored on fsys.
func OpenReaderFS(fsys fsutil.FileSystem, basePath string) (*Reader, error) {
	r := &Reader{fs: fsys, basePath: basePath, currentChunk: -1}

	headerData, err := fsys.ReadFile(filepath.Join(basePath, "header.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if err := json.Unmarshal(headerData, &r.header); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	indexData, err := fsys.ReadFile(filepath.Join(basePath, "index.bin"))
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	if len(indexData)%indexEntrySize != 0 {
		return nil, fmt.Errorf("corrupt index: %d bytes is not a multiple of %d", len(indexData), indexEntrySize)
	}

	r.index = make([]IndexEntry, 0, len(indexData)/indexEntrySize)
	for off := 0; off < len(indexData); off += indexEntrySize {
		b := indexData[off : off+indexEntrySize]
		r.index = append(r.index, IndexEntry{
			Seq:         binary.LittleEndian.Uint64(b[0:8]),
			TimestampNs: int64(binary.LittleEndian.Uint64(b[8:16])),
			ChunkID:     binary.LittleEndian.Uint32(b[16:20]),
			Offset:      binary.LittleEndian.Uint32(b[20:24]),
		})
	}
	if uint64(len(r.index)) != r.header.TotalMessages {
		return nil, fmt.Errorf("corrupt drivelog: header lists %d messages, index has %d", r.header.TotalMessages, len(r.index))
	}

	return r, nil
}

// Header returns the log header.
func (r *Reader) Header() LogHeader {
	return r.header
}

// Len returns the number of messages in the log.
func (r *Reader) Len() int {
	return len(r.index)
}

// Next returns the next message, or io.EOF after the last one.
func (r *Reader) Next() (Message, error) {
	if r.next >= len(r.index) {
		return Message{}, io.EOF
	}
	entry := r.index[r.next]

	if int(entry.ChunkID) != r.currentChunk {
		data, err := r.fs.ReadFile(chunkPath(r.basePath, int(entry.ChunkID)))
		if err != nil {
			return Message{}, fmt.Errorf("failed to read chunk %d: %w", entry.ChunkID, err)
		}
		r.chunkData = data
		r.currentChunk = int(entry.ChunkID)
	}

	offset := uint64(entry.Offset)
	if offset+4 > uint64(len(r.chunkData)) {
		return Message{}, fmt.Errorf("message %d: invalid offset %d", entry.Seq, offset)
	}
	msgLen := uint64(binary.LittleEndian.Uint32(r.chunkData[offset:]))
	offset += 4
	if offset+msgLen > uint64(len(r.chunkData)) {
		return Message{}, fmt.Errorf("message %d: invalid length %d", entry.Seq, msgLen)
	}

	var env envelope
	if err := json.Unmarshal(r.chunkData[offset:offset+msgLen], &env); err != nil {
		return Message{}, fmt.Errorf("message %d: failed to decode envelope: %w", entry.Seq, err)
	}

	r.next++
	return Message{
		Seq:       entry.Seq,
		Channel:   env.Channel,
		Timestamp: env.TimestampSec,
		Payload:   env.Payload,
	}, nil
}

// Close releases the cached chunk.
func (r *Reader) Close() error {
	r.chunkData = nil
	return nil
}

// SliceSource serves messages from memory.
type SliceSource struct {
	msgs []Message
	pos  int
}

// NewSliceSource returns a Source over msgs, assigning sequence numbers.
func NewSliceSource(msgs ...Message) *SliceSource {
	for i := range msgs {
		msgs[i].Seq = uint64(i)
	}
	return &SliceSource{msgs: msgs}
}

// Next returns the next message, or io.EOF.
func (s *SliceSource) Next() (Message, error) {
	if s.pos >= len(s.msgs) {
		return Message{}, io.EOF
	}
	m := s.msgs[s.pos]
	s.pos++
	return m, nil
}
