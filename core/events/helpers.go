package events

import (
	"strconv"

	"mailboxchain/crypto"
)

func addr(b [20]byte) string {
	return crypto.MustAddressFromBytes(b[:]).String()
}

func uintToString(v uint64) string {
	return strconv.FormatUint(v, 10)
}
