package cnv

// Run-length coding used by Ultima Underworld 2 .ark containers. A control
// byte with the high bit set introduces a run of (low7+3) repeated bytes; a
// clear high bit introduces (low7+1) literal bytes.

// ArkDecompress expands run-length coded container data.
func ArkDecompress(data []byte) []byte {
	var out []byte
	for i := 0; i < len(data); {
		ctrl := data[i]
		i++
		if ctrl&0x80 != 0 {
			count := int(ctrl&0x7F) + 3
			if i >= len(data) {
				break
			}
			v := data[i]
			i++
			for j := 0; j < count; j++ {
				out = append(out, v)
			}
		} else {
			count := int(ctrl&0x7F) + 1
			if i+count > len(data) {
				break
			}
			out = append(out, data[i:i+count]...)
			i += count
		}
	}
	return out
}

// ArkCompress run-length codes container data. Runs shorter than three
// bytes are emitted as literals; runs and literal stretches are capped at
// what one control byte can express.
func ArkCompress(data []byte) []byte {
	var out []byte
	for i := 0; i < len(data); {
		// Measure the run starting here.
		run := 1
		for i+run < len(data) && data[i+run] == data[i] && run < 130 {
			run++
		}
		if run >= 3 {
			out = append(out, 0x80|byte(run-3), data[i])
			i += run
			continue
		}

		// Literal stretch until the next run of three or the length cap.
		start := i
		for i < len(data) && i-start < 128 {
			if i+2 < len(data) && data[i] == data[i+1] && data[i] == data[i+2] {
				break
			}
			i++
		}
		out = append(out, byte(i-start-1))
		out = append(out, data[start:i]...)
	}
	return out
}

// ArkLooksCompressed applies the entropy heuristic used on UW2 containers:
// compressed data has many high-bit control bytes near the start.
func ArkLooksCompressed(data []byte) bool {
	n := len(data)
	if n > 256 {
		n = 256
	}
	high := 0
	for _, b := range data[:n] {
		if b&0x80 != 0 {
			high++
		}
	}
	return high > 64
}
