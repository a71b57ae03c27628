package slp

import (
	"encoding/binary"
	"fmt"

	"github.com/Klingon-tech/slp-validator/pkg/types"
)

const (
	opReturn     = 0x6a
	opPushdata1  = 0x4c
	opPushdata2  = 0x4d
	opPushdata4  = 0x4e
	lokadIDSLP   = "SLP\x00"
	maxSendOuts  = 19
)

// ParseOutputScript parses an SLP message out of a transaction's first
// output script. Returns ErrNotSlp if the script is not an SLP OP_RETURN
// message, ErrUnsupportedTokenType if it names a token_type this parser
// doesn't implement, or ErrInvalidOutputMessage for any other malformed
// message.
func ParseOutputScript(script []byte) (*Message, error) {
	chunks, err := tokenize(script)
	if err != nil {
		return nil, ErrNotSlp
	}
	if len(chunks) < 3 {
		return nil, ErrNotSlp
	}
	if string(chunks[0]) != lokadIDSLP {
		return nil, ErrNotSlp
	}

	tokenType, err := parseTokenType(chunks[1])
	if err != nil {
		return nil, &ErrInvalidOutputMessage{Reason: err.Error()}
	}
	if tokenType != TokenTypeFungible && tokenType != TokenTypeNFT1Child && tokenType != TokenTypeNFT1Group {
		return nil, &ErrUnsupportedTokenType{TokenType: tokenType}
	}

	txType := TransactionType(chunks[2])
	switch txType {
	case Genesis:
		return parseGenesis(tokenType, chunks[3:])
	case Mint:
		return parseMint(tokenType, chunks[3:])
	case Send:
		return parseSend(tokenType, chunks[3:])
	case Commit:
		return &Message{TokenType: tokenType, TransactionType: Commit}, nil
	default:
		return nil, &ErrInvalidOutputMessage{Reason: fmt.Sprintf("unrecognized transaction_type %q", chunks[2])}
	}
}

func parseTokenType(chunk []byte) (int, error) {
	switch len(chunk) {
	case 1:
		return int(chunk[0]), nil
	case 2:
		return int(binary.LittleEndian.Uint16(chunk)), nil
	default:
		return 0, fmt.Errorf("bad token_type push length %d", len(chunk))
	}
}

func parseGenesis(tokenType int, fields [][]byte) (*Message, error) {
	if len(fields) != 7 {
		return nil, &ErrInvalidOutputMessage{Reason: fmt.Sprintf("GENESIS wants 7 fields, got %d", len(fields))}
	}
	decimals, ok := parseDecimals(fields[4])
	if !ok {
		return nil, &ErrInvalidOutputMessage{Reason: "bad decimals field"}
	}
	batonVout, err := parseBatonVout(fields[5])
	if err != nil {
		return nil, &ErrInvalidOutputMessage{Reason: err.Error()}
	}
	qty, ok := parseAmount(fields[6])
	if !ok {
		return nil, &ErrInvalidOutputMessage{Reason: "bad initial_token_mint_quantity field"}
	}
	var docHash []byte
	if len(fields[3]) != 0 {
		if len(fields[3]) != 32 {
			return nil, &ErrInvalidOutputMessage{Reason: "document_hash must be 0 or 32 bytes"}
		}
		docHash = fields[3]
	}
	return &Message{
		TokenType:            tokenType,
		TransactionType:       Genesis,
		Ticker:                string(fields[0]),
		Name:                  string(fields[1]),
		DocumentURI:           string(fields[2]),
		DocumentHash:          docHash,
		Decimals:              decimals,
		GenesisMintBatonVout:  batonVout,
		InitialMintQuantity:   qty,
	}, nil
}

func parseMint(tokenType int, fields [][]byte) (*Message, error) {
	if len(fields) != 3 {
		return nil, &ErrInvalidOutputMessage{Reason: fmt.Sprintf("MINT wants 3 fields, got %d", len(fields))}
	}
	tokenID, err := parseTokenID(fields[0])
	if err != nil {
		return nil, &ErrInvalidOutputMessage{Reason: err.Error()}
	}
	batonVout, err := parseBatonVout(fields[1])
	if err != nil {
		return nil, &ErrInvalidOutputMessage{Reason: err.Error()}
	}
	qty, ok := parseAmount(fields[2])
	if !ok {
		return nil, &ErrInvalidOutputMessage{Reason: "bad additional_token_quantity field"}
	}
	return &Message{
		TokenType:         tokenType,
		TransactionType:   Mint,
		TokenID:           tokenID,
		MintBatonVout:     batonVout,
		AdditionalMintQty: qty,
	}, nil
}

func parseSend(tokenType int, fields [][]byte) (*Message, error) {
	if len(fields) < 2 {
		return nil, &ErrInvalidOutputMessage{Reason: "SEND wants at least 2 fields"}
	}
	tokenID, err := parseTokenID(fields[0])
	if err != nil {
		return nil, &ErrInvalidOutputMessage{Reason: err.Error()}
	}
	amounts := fields[1:]
	if len(amounts) > maxSendOuts {
		return nil, &ErrInvalidOutputMessage{Reason: fmt.Sprintf("SEND has %d outputs, max %d", len(amounts), maxSendOuts)}
	}
	outs := make([]uint64, len(amounts))
	for i, a := range amounts {
		v, ok := parseAmount(a)
		if !ok {
			return nil, &ErrInvalidOutputMessage{Reason: fmt.Sprintf("bad token_output[%d] field", i)}
		}
		outs[i] = v
	}
	return &Message{
		TokenType:       tokenType,
		TransactionType: Send,
		TokenID:         tokenID,
		TokenOutputs:    outs,
	}, nil
}

func parseTokenID(chunk []byte) (types.TokenID, error) {
	var id types.TokenID
	if len(chunk) != 32 {
		return id, fmt.Errorf("token_id must be 32 bytes, got %d", len(chunk))
	}
	copy(id[:], chunk)
	return id, nil
}

func parseDecimals(chunk []byte) (uint8, bool) {
	if len(chunk) != 1 || chunk[0] > 9 {
		return 0, false
	}
	return chunk[0], true
}

// parseBatonVout returns 0 (no baton) for an empty push, or the single byte
// value for a 1-byte push. Any other length is malformed.
func parseBatonVout(chunk []byte) (int, error) {
	switch len(chunk) {
	case 0:
		return 0, nil
	case 1:
		return int(chunk[0]), nil
	default:
		return 0, fmt.Errorf("mint_baton_vout must be 0 or 1 bytes, got %d", len(chunk))
	}
}

// parseAmount decodes an 8-byte big-endian token quantity.
func parseAmount(chunk []byte) (uint64, bool) {
	if len(chunk) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(chunk), true
}

// tokenize splits an OP_RETURN script into its pushed data chunks, per
// Bitcoin script pushdata conventions (direct push, OP_PUSHDATA1/2/4).
// OP_0 produces an empty chunk; any other non-push opcode is rejected.
func tokenize(script []byte) ([][]byte, error) {
	if len(script) == 0 || script[0] != opReturn {
		return nil, fmt.Errorf("not an OP_RETURN script")
	}
	var chunks [][]byte
	i := 1
	for i < len(script) {
		op := script[i]
		i++
		var size int
		switch {
		case op == 0x00:
			chunks = append(chunks, []byte{})
			continue
		case op <= 0x4b:
			size = int(op)
		case op == opPushdata1:
			if i+1 > len(script) {
				return nil, fmt.Errorf("truncated PUSHDATA1")
			}
			size = int(script[i])
			i++
		case op == opPushdata2:
			if i+2 > len(script) {
				return nil, fmt.Errorf("truncated PUSHDATA2")
			}
			size = int(binary.LittleEndian.Uint16(script[i : i+2]))
			i += 2
		case op == opPushdata4:
			if i+4 > len(script) {
				return nil, fmt.Errorf("truncated PUSHDATA4")
			}
			size = int(binary.LittleEndian.Uint32(script[i : i+4]))
			i += 4
		default:
			return nil, fmt.Errorf("non-push opcode 0x%02x in SLP message", op)
		}
		if i+size > len(script) {
			return nil, fmt.Errorf("truncated push of %d bytes", size)
		}
		chunks = append(chunks, script[i:i+size])
		i += size
	}
	return chunks, nil
}
