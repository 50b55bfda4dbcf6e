package indexing

import "bytes"

// binarySignatures are magic numbers of files that are never source
var binarySignatures = [][]byte{
	{0x1F, 0x8B},             // gzip
	{0x50, 0x4B, 0x03, 0x04}, // zip
	{0x7F, 0x45, 0x4C, 0x46}, // ELF
	{0xCA, 0xFE, 0xBA, 0xBE}, // Mach-O
	{0xCF, 0xFA, 0xED, 0xFE}, // Mach-O 64
	{0x89, 0x50, 0x4E, 0x47}, // PNG
}

// looksBinary samples the first 512 bytes: a known signature, NUL bytes
// or mostly control characters mean the content is not Ruby source.
// Bytes >= 0x80 are not counted so UTF-8 text passes.
func looksBinary(content []byte) bool {
	sample := content[:min(len(content), 512)]
	if len(sample) == 0 {
		return false
	}
	for _, sig := range binarySignatures {
		if bytes.HasPrefix(sample, sig) {
			return true
		}
	}

	nonPrintable := 0
	for _, b := range sample {
		if b == 0 {
			return true
		}
		if b < 0x20 && b != '\t' && b != '\n' && b != '\r' && b != '\f' && b != '\v' {
			nonPrintable++
		}
	}
	return nonPrintable > len(sample)*30/100
}
