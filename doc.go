// Package seenindex answers "has this string probably been seen?" with a
// fixed-size Bloom filter of 2^n bits.
//
// Filters are addressed with k rounds of MurmurHash3, bits are packed MSB
// first, and files hold nothing but the bit array (raw, gzip or zlib). The
// exponent and round count travel in a separate manifest.
//
//	f, _ := seenindex.New(27)
//	f.AddString("https://example.com/")
//	f.ContainsString("https://example.com/") // true
package seenindex
