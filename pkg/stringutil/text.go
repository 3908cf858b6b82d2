// Package stringutil provides some string based helpers.
package stringutil

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// StringChunkDelimited is used to split a multiline string into strings with a max size defined as chunkSize.
// Rows longer than chunkSize are further split with ChunkString.
func StringChunkDelimited(data string, chunkSize int, sep ...string) []string {
	if len(data) <= chunkSize {
		return []string{data}
	}

	var ( //nolint:prealloc
		results   []string
		curPieces []string
		curSize   int
		sepChar   = "\n"
	)

	if len(sep) > 0 {
		sepChar = sep[0]
	}

	flush := func() {
		if len(curPieces) == 0 {
			return
		}

		results = append(results, strings.TrimSuffix(strings.Join(curPieces, sepChar), sepChar))
		curSize = 0
		curPieces = nil
	}

	for _, row := range strings.Split(data, sepChar) {
		if len(row) > chunkSize {
			flush()
			results = append(results, ChunkString(row, chunkSize)...)

			continue
		}

		curLineSize := len(row) + len(sepChar) // account for \n
		if curSize+curLineSize >= chunkSize {
			flush()
		}

		curPieces = append(curPieces, row)
		curSize += curLineSize
	}

	flush()

	return results
}

// ChunkString splits data into fixed size pieces. The final piece may be shorter.
func ChunkString(data string, chunkSize int) []string {
	if chunkSize <= 0 || len(data) <= chunkSize {
		return []string{data}
	}

	chunks := make([]string, 0, len(data)/chunkSize+1)
	for start := 0; start < len(data); start += chunkSize {
		end := min(start+chunkSize, len(data))
		chunks = append(chunks, data[start:end])
	}

	return chunks
}

// SecureRandomString returns a url safe random string of length n.
func SecureRandomString(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_"

	ret := make([]byte, n)

	for currentChar := range n {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		if err != nil {
			return ""
		}

		ret[currentChar] = letters[num.Int64()]
	}

	return string(ret)
}
