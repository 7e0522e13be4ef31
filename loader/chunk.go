package loader

// Default chunking parameters, in runes.
const (
	DefaultChunkSize = 1024
	DefaultOverlap   = 128
)

// Chunk splits text into windows of at most size runes. Consecutive windows
// share overlap runes. A text shorter than size is returned as is. A
// non-positive size disables chunking; an overlap outside [0, size) is
// treated as zero.
func Chunk(text string, size, overlap int) []string {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if size <= 0 || len(runes) <= size {
		return []string{text}
	}

	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	step := size - overlap
	chunks := make([]string, 0, (len(runes)-overlap+step-1)/step)

	for start := 0; ; start += step {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))

		if end == len(runes) {
			break
		}
	}

	return chunks
}
