package cmd

import (
	"io"
)

// Stream copies size bytes of r, starting at offset, to out.
// It reads in fixed chunks so large sections are never held in memory.
func Stream(r io.ReaderAt, offset, size int64, out io.Writer) error {
	const bufSize = 64 * 1024 // 64KB chunks
	buf := make([]byte, bufSize)
	end := offset + size

	for offset < end {
		toRead := int64(bufSize)
		if offset+toRead > end {
			toRead = end - offset
		}

		n, err := r.ReadAt(buf[:toRead], offset)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return werr
			}
			offset += int64(n)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
	}

	return nil
}
