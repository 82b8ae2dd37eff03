package eligibility

import "crypto/sha256"

// bindingTagLen is the length of the SHA-256 binding tag appended to a
// reference proof, tying the opaque proof bytes to the specific public
// inputs it was produced against.
const bindingTagLen = sha256.Size

// bindingTag derives the tag a well-formed reference proof must carry.
func bindingTag(merkleRoot, electionID, nullifier []byte) []byte {
	h := sha256.New()
	h.Write(merkleRoot)
	h.Write(electionID)
	h.Write(nullifier)
	sum := h.Sum(nil)
	return sum
}
