package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"cubelife/internal/model"
)

// SnapshotHeader is written as the first line of a snapshot so tools can
// identify a file without decoding the whole state.
type SnapshotHeader struct {
	Version    int     `json:"version"`
	RunID      string  `json:"run_id"`
	Generation int     `json:"generation"`
	Champion   string  `json:"champion,omitempty"`
	Fitness    float64 `json:"fitness,omitempty"`
	Mode       string  `json:"mode"`
}

type Snapshot struct {
	Header SnapshotHeader
	State  model.StateDocument
}

var ErrSnapshotHeader = errors.New("snapshot header mismatch")

func HeaderFor(runID string, doc model.StateDocument) SnapshotHeader {
	header := SnapshotHeader{
		Version:    doc.Version,
		RunID:      runID,
		Generation: doc.Generation,
		Mode:       doc.ActiveMode,
	}
	if doc.Champion != nil {
		header.Champion = doc.Champion.Name
		header.Fitness = doc.Champion.Fitness
	}
	return header
}

// WriteSnapshot stores a header line followed by the JSON state document,
// all inside one zstd stream.
func WriteSnapshot(path string, snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	payload, err := EncodeState(snap.State)
	if err != nil {
		return err
	}
	hb, err := json.Marshal(snap.Header)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if _, err := bw.Write(payload); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("zstd close: %w", err)
	}
	return f.Sync()
}

func ReadSnapshot(path string) (Snapshot, error) {
	var snap Snapshot
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	header, err := readHeader(br)
	if err != nil {
		return snap, err
	}
	payload, err := io.ReadAll(br)
	if err != nil {
		return snap, fmt.Errorf("zstd read: %w", err)
	}
	doc, err := DecodeState(payload)
	if err != nil {
		return snap, err
	}
	if header.Generation != doc.Generation || header.Version != doc.Version {
		return snap, fmt.Errorf("%w: header generation=%d version=%d, state generation=%d version=%d",
			ErrSnapshotHeader, header.Generation, header.Version, doc.Generation, doc.Version)
	}
	snap.Header = header
	snap.State = doc
	return snap, nil
}

// ReadSnapshotHeader decodes only the first line of a snapshot.
func ReadSnapshotHeader(path string) (SnapshotHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return SnapshotHeader{}, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return SnapshotHeader{}, err
	}
	defer dec.Close()
	return readHeader(bufio.NewReader(dec))
}

func readHeader(br *bufio.Reader) (SnapshotHeader, error) {
	var header SnapshotHeader
	line, err := br.ReadBytes('\n')
	if err != nil {
		return header, fmt.Errorf("read snapshot header: %w", err)
	}
	if err := json.Unmarshal(line, &header); err != nil {
		return header, fmt.Errorf("decode snapshot header: %w", err)
	}
	return header, nil
}
