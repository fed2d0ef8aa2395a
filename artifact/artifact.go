// Package artifact implements Grizzly's save/load artifact boundary: a
// small header (magic, version, codec name) framing an arbitrary payload,
// plus the codec registry SAVE DATABASE ... WITH COMPRESSION selects from
// (snappy, gzip, lz4, zstd, or none). It does not know or care what the
// payload bytes mean; what goes inside is the engine's business.
package artifact

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io"
	"os"

	"github.com/golang/snappy"
	"github.com/juju/errors"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/zhukovaskychina/grizzly/errs"
)

// magic identifies a Grizzly artifact file; version allows the header
// shape to change without breaking codec detection.
const (
	magic        = "GRZY"
	formatVersion = uint8(1)
)

// Codec names SAVE DATABASE ... WITH COMPRESSION accepts.
const (
	CodecNone   = "none"
	CodecSnappy = "snappy"
	CodecGzip   = "gzip"
	CodecLZ4    = "lz4"
	CodecZstd   = "zstd"
)

// Compress encodes payload with the named codec.
func Compress(codecName string, payload []byte) ([]byte, error) {
	switch codecName {
	case "", CodecNone:
		return payload, nil
	case CodecSnappy:
		return snappy.Encode(nil, payload), nil
	case CodecGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(payload); err != nil {
			return nil, errors.Annotate(err, "gzip compress")
		}
		if err := w.Close(); err != nil {
			return nil, errors.Annotate(err, "gzip compress")
		}
		return buf.Bytes(), nil
	case CodecLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(payload); err != nil {
			return nil, errors.Annotate(err, "lz4 compress")
		}
		if err := w.Close(); err != nil {
			return nil, errors.Annotate(err, "lz4 compress")
		}
		return buf.Bytes(), nil
	case CodecZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, errors.Annotate(err, "zstd compress")
		}
		defer enc.Close()
		return enc.EncodeAll(payload, nil), nil
	default:
		return nil, errs.New(errs.InvalidFileFormat, "unknown compression codec %q", codecName)
	}
}

// Decompress reverses Compress for the named codec.
func Decompress(codecName string, data []byte) ([]byte, error) {
	switch codecName {
	case "", CodecNone:
		return data, nil
	case CodecSnappy:
		out, err := snappy.Decode(nil, data)
		if err != nil {
			return nil, errors.Annotate(err, "snappy decompress")
		}
		return out, nil
	case CodecGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Annotate(err, "gzip decompress")
		}
		defer r.Close()
		return io.ReadAll(r)
	case CodecLZ4:
		r := lz4.NewReader(bytes.NewReader(data))
		return io.ReadAll(r)
	case CodecZstd:
		dec, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Annotate(err, "zstd decompress")
		}
		defer dec.Close()
		return io.ReadAll(dec)
	default:
		return nil, errs.New(errs.InvalidFileFormat, "unknown compression codec %q", codecName)
	}
}

// WriteHeader frames payload (already compressed) with the magic/version/
// codec-name header and writes it to w.
func WriteHeader(w io.Writer, codecName string, payload []byte) error {
	if _, err := w.Write([]byte(magic)); err != nil {
		return errors.Trace(err)
	}
	if err := binary.Write(w, binary.BigEndian, formatVersion); err != nil {
		return errors.Trace(err)
	}
	nameBytes := []byte(codecName)
	if err := binary.Write(w, binary.BigEndian, uint8(len(nameBytes))); err != nil {
		return errors.Trace(err)
	}
	if _, err := w.Write(nameBytes); err != nil {
		return errors.Trace(err)
	}
	if err := binary.Write(w, binary.BigEndian, uint64(len(payload))); err != nil {
		return errors.Trace(err)
	}
	_, err := w.Write(payload)
	return errors.Trace(err)
}

// ReadHeader parses the magic/version/codec-name header from r and
// returns the codec name plus the raw (still-compressed) payload bytes.
func ReadHeader(r io.Reader) (codecName string, payload []byte, err error) {
	var gotMagic [4]byte
	if _, err = io.ReadFull(r, gotMagic[:]); err != nil {
		return "", nil, errors.Annotate(err, "read artifact magic")
	}
	if string(gotMagic[:]) != magic {
		return "", nil, errs.New(errs.InvalidFileFormat, "not a grizzly artifact (bad magic)")
	}
	var version uint8
	if err = binary.Read(r, binary.BigEndian, &version); err != nil {
		return "", nil, errors.Annotate(err, "read artifact version")
	}
	if version != formatVersion {
		return "", nil, errs.New(errs.InvalidFileFormat, "unsupported artifact version %d", version)
	}
	var nameLen uint8
	if err = binary.Read(r, binary.BigEndian, &nameLen); err != nil {
		return "", nil, errors.Annotate(err, "read artifact codec name length")
	}
	nameBytes := make([]byte, nameLen)
	if _, err = io.ReadFull(r, nameBytes); err != nil {
		return "", nil, errors.Annotate(err, "read artifact codec name")
	}
	var payloadLen uint64
	if err = binary.Read(r, binary.BigEndian, &payloadLen); err != nil {
		return "", nil, errors.Annotate(err, "read artifact payload length")
	}
	payload = make([]byte, payloadLen)
	if _, err = io.ReadFull(r, payload); err != nil {
		return "", nil, errors.Annotate(err, "read artifact payload")
	}
	return string(nameBytes), payload, nil
}

// SaveToFile compresses payload with codecName and writes it to path,
// refusing to overwrite an existing file.
func SaveToFile(path, codecName string, payload []byte) error {
	compressed, err := Compress(codecName, payload)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return errs.New(errs.FileAlreadyExists, "artifact path %q already exists", path)
		}
		return errors.Annotatef(err, "open artifact %q", path)
	}
	defer f.Close()
	if err := WriteHeader(f, codecName, compressed); err != nil {
		return errors.Annotatef(err, "write artifact %q", path)
	}
	return nil
}

// LoadFromFile reads and decompresses the artifact at path.
func LoadFromFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.New(errs.FailedToLoadFile, "artifact path %q does not exist", path)
		}
		return nil, errors.Annotatef(err, "open artifact %q", path)
	}
	defer f.Close()

	codecName, compressed, err := ReadHeader(f)
	if err != nil {
		return nil, errors.Annotatef(err, "read artifact %q", path)
	}
	payload, err := Decompress(codecName, compressed)
	if err != nil {
		return nil, errors.Annotatef(err, "decompress artifact %q", path)
	}
	return payload, nil
}
