// Package txcodec is the thin, intentionally minimal transaction-byte
// serializer the CMT core treats as an external collaborator: the core
// only ever needs the concatenated byte length and contents of a block's
// transactions, never their structure.
package txcodec

// Transaction is anything that can serialize itself to its wire bytes.
// CMT never inspects the contents; it only concatenates and pads them.
type Transaction interface {
	Bytes() []byte
}

// RawTransaction is a Transaction backed by an already-serialized byte
// string, for callers that have no richer transaction type of their own.
type RawTransaction []byte

// Bytes returns tx's raw bytes.
func (tx RawTransaction) Bytes() []byte { return tx }

// Concat concatenates the wire bytes of every transaction in order.
func Concat(txs []Transaction) []byte {
	total := 0
	for _, tx := range txs {
		total += len(tx.Bytes())
	}
	out := make([]byte, 0, total)
	for _, tx := range txs {
		out = append(out, tx.Bytes()...)
	}
	return out
}
