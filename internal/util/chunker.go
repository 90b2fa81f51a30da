package util

// ChunkText splits text into fixed-size rune windows. Each window starts
// max(1, chunkSize-overlap) runes after the previous one; windows are not
// trimmed or filtered, so together they cover the whole input and the last
// one may be shorter than chunkSize.
func ChunkText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = 600
	}
	step := chunkSize - overlap
	if step < 1 {
		step = 1
	}
	runes := []rune(text)
	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}
