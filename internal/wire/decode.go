// Package wire decodes the validation core's raw transaction bytes into
// pkg/types.Transaction. The layout mirrors the teacher chain's
// Transaction.SigningBytes encoding (pkg/tx/transaction.go): a flat,
// little-endian, length-prefixed field sequence, minus the signature and
// lock-time fields the validator never consults.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/Klingon-tech/slp-validator/pkg/crypto"
	"github.com/Klingon-tech/slp-validator/pkg/types"
)

// Decode parses raw into a Transaction. Layout:
//
//	input_count(4) | [prevout_txid(32) prevout_index(4)]...
//	output_count(4) | [value(8) script_len(4) script_data]...
//
// The txid is derived from raw via crypto.TxIDOf rather than stored, so a
// decoded Transaction always round-trips through the same id its bytes hash
// to.
func Decode(raw []byte) (*types.Transaction, error) {
	r := &reader{buf: raw}

	inputCount, err := r.uint32()
	if err != nil {
		return nil, fmt.Errorf("wire: read input count: %w", err)
	}
	inputs := make([]types.Input, 0, inputCount)
	for i := uint32(0); i < inputCount; i++ {
		txidBytes, err := r.bytes(32)
		if err != nil {
			return nil, fmt.Errorf("wire: read input %d prevout txid: %w", i, err)
		}
		index, err := r.uint32()
		if err != nil {
			return nil, fmt.Errorf("wire: read input %d prevout index: %w", i, err)
		}
		var txid types.TxID
		copy(txid[:], txidBytes)
		inputs = append(inputs, types.Input{PrevOut: types.Outpoint{TxID: txid, Index: index}})
	}

	outputCount, err := r.uint32()
	if err != nil {
		return nil, fmt.Errorf("wire: read output count: %w", err)
	}
	outputs := make([]types.Output, 0, outputCount)
	for i := uint32(0); i < outputCount; i++ {
		value, err := r.uint64()
		if err != nil {
			return nil, fmt.Errorf("wire: read output %d value: %w", i, err)
		}
		scriptLen, err := r.uint32()
		if err != nil {
			return nil, fmt.Errorf("wire: read output %d script length: %w", i, err)
		}
		script, err := r.bytes(int(scriptLen))
		if err != nil {
			return nil, fmt.Errorf("wire: read output %d script: %w", i, err)
		}
		outputs = append(outputs, types.Output{Value: value, Script: script})
	}

	if !r.atEnd() {
		return nil, fmt.Errorf("wire: %d trailing bytes after parsing transaction", r.remaining())
	}

	raw = append([]byte(nil), raw...)
	return &types.Transaction{
		TxID:    crypto.TxIDOf(raw),
		Raw:     raw,
		Inputs:  inputs,
		Outputs: outputs,
	}, nil
}

// Encode serializes tx back into the layout Decode understands. Used by
// tests and tooling that need to build fixtures; the validation core itself
// only ever decodes.
func Encode(tx *types.Transaction) []byte {
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf = append(buf, in.PrevOut.TxID[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, in.PrevOut.Index)
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		buf = binary.LittleEndian.AppendUint64(buf, out.Value)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(out.Script)))
		buf = append(buf, out.Script...)
	}
	return buf
}

// reader is a small cursor over raw bytes, used to keep Decode's bounds
// checking in one place.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("unexpected end of input")
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) uint64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) atEnd() bool { return r.pos == len(r.buf) }

func (r *reader) remaining() int { return len(r.buf) - r.pos }
