package jpeg

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// An ICC profile is carried in APP2 segments, each starting with
// "ICC_PROFILE\0", a 1-based sequence number and the total chunk count.
const (
	iccMarkerTag     = "ICC_PROFILE\x00"
	iccHeaderLen     = len(iccMarkerTag) + 2
	maxChunkDataSize = 65535 - 2 - iccHeaderLen
	maxICCChunks     = 255
)

type iccChunk struct {
	seq  int
	data []byte
}

// ExtractICC reassembles an ICC profile from APP2 marker payloads.
// Payloads that are not ICC chunks are ignored; nil means no profile.
func ExtractICC(markers [][]byte) ([]byte, error) {
	var chunks []iccChunk
	total := 0

	for _, m := range markers {
		if len(m) < iccHeaderLen || string(m[:len(iccMarkerTag)]) != iccMarkerTag {
			continue
		}
		seq, count := int(m[12]), int(m[13])
		if seq == 0 || seq > count {
			return nil, fmt.Errorf("invalid ICC chunk sequence %d/%d", seq, count)
		}
		switch {
		case total == 0:
			total = count
		case count != total:
			return nil, fmt.Errorf("inconsistent ICC chunk count: %d vs %d", count, total)
		}
		chunks = append(chunks, iccChunk{seq: seq, data: m[iccHeaderLen:]})
	}

	if len(chunks) == 0 {
		return nil, nil
	}
	if len(chunks) != total {
		return nil, fmt.Errorf("expected %d ICC chunks, found %d", total, len(chunks))
	}

	slices.SortFunc(chunks, func(a, b iccChunk) int { return cmp.Compare(a.seq, b.seq) })
	for i, c := range chunks {
		if c.seq != i+1 {
			return nil, fmt.Errorf("duplicate ICC chunk %d", c.seq)
		}
	}

	var buf bytes.Buffer
	for _, c := range chunks {
		buf.Write(c.data)
	}
	return buf.Bytes(), nil
}

// ChunkICC splits an ICC profile into APP2 payloads ready for jpeg_write_marker.
func ChunkICC(profile []byte) ([][]byte, error) {
	if len(profile) == 0 {
		return nil, errors.New("empty ICC profile")
	}

	n := (len(profile) + maxChunkDataSize - 1) / maxChunkDataSize
	if n > maxICCChunks {
		return nil, fmt.Errorf("ICC profile too large: needs %d chunks (max %d)", n, maxICCChunks)
	}

	chunks := make([][]byte, 0, n)
	for i, rest := 0, profile; len(rest) > 0; i++ {
		size := min(len(rest), maxChunkDataSize)
		chunk := make([]byte, 0, iccHeaderLen+size)
		chunk = append(chunk, iccMarkerTag...)
		chunk = append(chunk, byte(i+1), byte(n))
		chunk = append(chunk, rest[:size]...)
		chunks = append(chunks, chunk)
		rest = rest[size:]
	}
	return chunks, nil
}
