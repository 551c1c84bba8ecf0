// SPDX-License-Identifier: Apache-2.0

package vsock

import (
	"encoding/binary"
)

// Layout of struct sockaddr_vm:
//
//	0  family    uint8
//	1  reserved  uint8
//	2  padding   [2]byte
//	4  port      uint32
//	8  cid       uint32
//	12 zero      [4]byte
//
// Linux reads the first two bytes as a native sa_family_t, so the family is
// written as a uint16. On little-endian hosts that is the family byte
// followed by a zero reserved byte.
const (
	sizeofSockaddr = 16

	offsetFamily = 0
	offsetPort   = 4
	offsetCID    = 8
)

type rawSockaddr [sizeofSockaddr]byte

func newRawSockaddr(family int, cid uint32, port uint32) rawSockaddr {
	var rsa rawSockaddr
	binary.NativeEndian.PutUint16(rsa[offsetFamily:offsetFamily+2], uint16(family))
	binary.NativeEndian.PutUint32(rsa[offsetPort:offsetPort+4], port)
	binary.NativeEndian.PutUint32(rsa[offsetCID:offsetCID+4], cid)
	return rsa
}

func (rsa *rawSockaddr) addr(length uint32) *Addr {
	return &Addr{
		Family:    uint8(binary.NativeEndian.Uint16(rsa[offsetFamily : offsetFamily+2])),
		Port:      binary.NativeEndian.Uint32(rsa[offsetPort : offsetPort+4]),
		ContextID: binary.NativeEndian.Uint32(rsa[offsetCID : offsetCID+4]),
		length:    length,
	}
}

// queryAddr runs a getsockname style lookup against a zeroed structure and
// decodes whatever the kernel wrote into it.
func queryAddr(query func(rsa *rawSockaddr, length *uint32) error) (*Addr, error) {
	var rsa rawSockaddr
	length := uint32(sizeofSockaddr)
	if err := query(&rsa, &length); err != nil {
		return nil, err
	}
	if length > sizeofSockaddr {
		return nil, TruncatedErr
	}
	return rsa.addr(length), nil
}
