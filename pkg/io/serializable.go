package io

// Serializable defines the binary encoding/decoding interface. Errors are
// returned via BinReader/BinWriter Err field. These functions must have safe
// behavior when the passed BinReader/BinWriter with Err is already set.
type Serializable interface {
	DecodeBinary(*BinReader)
	EncodeBinary(*BinWriter)
}

type decodable interface {
	DecodeBinary(*BinReader)
}

type encodable interface {
	EncodeBinary(*BinWriter)
}

// ToByteArray serializes the given item into a new byte slice.
func ToByteArray(item encodable) ([]byte, error) {
	w := NewBufBinWriter()
	item.EncodeBinary(w.BinWriter)
	if w.Err != nil {
		return nil, w.Err
	}
	return w.Bytes(), nil
}

// FromByteArray deserializes data into the given item and checks that the
// whole buffer was consumed.
func FromByteArray(item decodable, data []byte) error {
	r := NewBinReaderFromBuf(data)
	item.DecodeBinary(r)
	if r.Err != nil {
		return r.Err
	}
	if r.Len() != 0 {
		return ErrTrailingData
	}
	return nil
}
