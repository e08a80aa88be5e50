package state

import (
	"encoding/hex"

	"nftmarket/native/auction"
)

var (
	auctionPrefix   = []byte("auction/item/")
	auctionIndexKey = []byte("auction/item/index")
	badgePrefix     = []byte("auction/badge/")
	badgeNonceKey   = []byte("auction/badge/nonce")
	escrowPrefix    = []byte("auction/escrow/")
	itemOwnerPrefix = []byte("nft/owner/")
	accountPrefix   = []byte("account/")
)

func auctionKey(item auction.ItemID) []byte {
	encoded := item.String()
	buf := make([]byte, len(auctionPrefix)+len(encoded))
	copy(buf, auctionPrefix)
	copy(buf[len(auctionPrefix):], encoded)
	return buf
}

func badgeKey(id [32]byte) []byte {
	encoded := hex.EncodeToString(id[:])
	buf := make([]byte, len(badgePrefix)+len(encoded))
	copy(buf, badgePrefix)
	copy(buf[len(badgePrefix):], encoded)
	return buf
}

func escrowKey(item auction.ItemID) []byte {
	encoded := item.String()
	buf := make([]byte, len(escrowPrefix)+len(encoded))
	copy(buf, escrowPrefix)
	copy(buf[len(escrowPrefix):], encoded)
	return buf
}

func itemOwnerKey(item auction.ItemID) []byte {
	encoded := item.String()
	buf := make([]byte, len(itemOwnerPrefix)+len(encoded))
	copy(buf, itemOwnerPrefix)
	copy(buf[len(itemOwnerPrefix):], encoded)
	return buf
}

func accountKey(addr []byte) []byte {
	encoded := hex.EncodeToString(addr)
	buf := make([]byte, len(accountPrefix)+len(encoded))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], encoded)
	return buf
}
