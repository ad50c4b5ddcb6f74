// Copyright 2024 The Coldbrew Authors
// This file is part of Coldbrew.
//
// Coldbrew is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Coldbrew is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Coldbrew. If not, see <http://www.gnu.org/licenses/>.

package tkv

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/coldbrewdb/tkv/collate"
)

// noData is the sentinel type for NoData, the value §4.4's put()
// accepts to mean "delete this key" instead of writing it.
type noData struct{}

// NoData is passed as a Put value to mean "delete the key" (§4.4:
// "if value is the nil sentinel, delete the key").
var NoData = noData{}

// encodeKey shapes a key argument (byte slice, string, int32, int64)
// into the bytes actually stored, according to the collection's
// key_sort. Native-integer collections get native-endian fixed-width
// bytes, matching the engine's own integer collation (§9 "Integer
// endianness"); every other key_sort gets the Collatable signed-integer
// encoding for integer keys, so int keys still sort correctly under the
// engine's generic byte comparator even without IntegerKey set.
func encodeKey(sort KeySort, key interface{}) ([]byte, error) {
	return encodeItem(sort == KeyNativeInt, key)
}

// encodeValue is encodeKey's counterpart for values. It additionally
// recognizes NoData (and a nil interface) as "no value", returning
// isDelete=true.
func encodeValue(sort ValueSort, value interface{}) (b []byte, isDelete bool, err error) {
	if value == nil {
		return nil, true, nil
	}
	if _, ok := value.(noData); ok {
		return nil, true, nil
	}
	b, err = encodeItem(sort == ValueNativeInt, value)
	return b, false, err
}

func encodeItem(nativeInt bool, item interface{}) ([]byte, error) {
	switch v := item.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case int:
		return encodeItem(nativeInt, int64(v))
	case int32:
		if nativeInt {
			buf := make([]byte, 4)
			binary.NativeEndian.PutUint32(buf, uint32(v))
			return buf, nil
		}
		return collate.New().AddI64(int64(v)).Bytes(), nil
	case int64:
		if nativeInt {
			buf := make([]byte, 8)
			binary.NativeEndian.PutUint64(buf, uint64(v))
			return buf, nil
		}
		return collate.New().AddI64(v).Bytes(), nil
	default:
		return nil, errors.Errorf("tkv: unsupported key/value type %T", item)
	}
}
