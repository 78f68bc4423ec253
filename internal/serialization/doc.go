// Package serialization implements the .lmt container used for loss
// histories and model checkpoints.
//
//	Layout:
//	  0x00  [4 bytes: Magic "LMHT"]
//	  0x04  [4 bytes: Version (uint32 LE)]
//	  0x08  [4 bytes: Flags (uint32 LE)]
//	  0x0C  [4 bytes: reserved]
//	  0x10  [8 bytes: Header Size (uint64 LE)]
//	  0x18  [8 bytes: Data Size (uint64 LE)]
//	  0x20  [32 bytes: SHA-256 of the data section]
//	  0x40  [Header: JSON metadata]
//	        [padding to a 64-byte boundary]
//	        [Tensor data: float64 LE, row-major, in header order]
//
// Every read verifies the checksum before any tensor is returned.
//
// Example usage:
//
//	err := serialization.WriteFile("loss.lmt", map[string]serialization.Tensor{
//	    "loss": serialization.Vector(values),
//	}, serialization.Header{Kind: serialization.KindHistory})
//
//	tensors, header, err := serialization.ReadFile("loss.lmt")
package serialization
