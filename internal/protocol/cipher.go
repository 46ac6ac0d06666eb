package protocol

// key is the repeating XOR keystream applied to message bodies. The body
// offset, not the stream offset, selects the key byte.
var key = [3]byte{0x60, 0x3B, 0x0B}

// XOR applies the keystream to p in place. It both obfuscates and
// deobfuscates.
func XOR(p []byte) {
	for i := range p {
		p[i] ^= key[i%len(key)]
	}
}
